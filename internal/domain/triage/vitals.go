package triage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// VitalSigns is the snapshot taken at the triage desk. Every field is
// optional; nil means the sign was not measured.
type VitalSigns struct {
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty" yaml:"oxygen_saturation,omitempty"`
	HeartRate        *int     `json:"heart_rate,omitempty" yaml:"heart_rate,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty" yaml:"respiratory_rate,omitempty"`
	BloodPressure    *string  `json:"blood_pressure,omitempty" yaml:"blood_pressure,omitempty"`
	PainScore        *int     `json:"pain_score,omitempty" yaml:"pain_score,omitempty"`
}

// Alert thresholds.
const (
	HighFeverCelsius      = 39.5
	ModerateFeverCelsius  = 38.5
	CriticalSaturationPct = 90
	LowSaturationPct      = 95
	TachycardiaBPM        = 120
	BradycardiaBPM        = 50
	SevereSystolicMmHg    = 180
	SevereDiastolicMmHg   = 120
	SeverePainScore       = 8
)

// Plausibility bounds applied before evaluation.
const (
	minTemperature     = 25.0
	maxTemperature     = 45.0
	maxHeartRate       = 300
	maxRespiratoryRate = 100
	maxPainScore       = 10
)

// Alert codes, stable across releases so callers can branch on them.
const (
	AlertHighFever          = "high_fever"
	AlertModerateFever      = "moderate_fever"
	AlertCriticalSaturation = "critical_saturation"
	AlertLowSaturation      = "low_saturation"
	AlertAbnormalHeartRate  = "abnormal_heart_rate"
	AlertSevereHypertension = "severe_hypertension"
	AlertSeverePain         = "severe_pain"
)

// VitalAlert is one threshold breach and the level it suggests.
type VitalAlert struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	SuggestedLevel Level  `json:"suggested_level"`
}

// Validate rejects physiologically implausible values. It never inspects the
// blood pressure string: a malformed reading is ignored by Evaluate rather
// than treated as an input error.
func (v VitalSigns) Validate() error {
	var problems []string
	if v.Temperature != nil && (*v.Temperature < minTemperature || *v.Temperature > maxTemperature) {
		problems = append(problems, fmt.Sprintf("temperature %.1f outside %.0f-%.0f", *v.Temperature, minTemperature, maxTemperature))
	}
	if v.OxygenSaturation != nil && (*v.OxygenSaturation < 0 || *v.OxygenSaturation > 100) {
		problems = append(problems, fmt.Sprintf("oxygen_saturation %d outside 0-100", *v.OxygenSaturation))
	}
	if v.HeartRate != nil && (*v.HeartRate < 0 || *v.HeartRate > maxHeartRate) {
		problems = append(problems, fmt.Sprintf("heart_rate %d outside 0-%d", *v.HeartRate, maxHeartRate))
	}
	if v.RespiratoryRate != nil && (*v.RespiratoryRate < 0 || *v.RespiratoryRate > maxRespiratoryRate) {
		problems = append(problems, fmt.Sprintf("respiratory_rate %d outside 0-%d", *v.RespiratoryRate, maxRespiratoryRate))
	}
	if v.PainScore != nil && (*v.PainScore < 0 || *v.PainScore > maxPainScore) {
		problems = append(problems, fmt.Sprintf("pain_score %d outside 0-%d", *v.PainScore, maxPainScore))
	}
	if len(problems) > 0 {
		return invalidVitals(strings.Join(problems, "; "))
	}
	return nil
}

var bloodPressurePattern = regexp.MustCompile(`^\s*(\d{2,3})\s*[/xX]\s*(\d{2,3})\s*$`)

// ParseBloodPressure reads "120/80" or "120x80". ok is false for anything
// else.
func ParseBloodPressure(s string) (systolic, diastolic int, ok bool) {
	m := bloodPressurePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	systolic, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	diastolic, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return systolic, diastolic, true
}

// IsSevereHypertension reports whether the reading meets the hypertensive
// crisis threshold. Unparseable or missing readings are not severe.
func IsSevereHypertension(bp *string) bool {
	if bp == nil {
		return false
	}
	sys, dia, ok := ParseBloodPressure(*bp)
	if !ok {
		return false
	}
	return sys >= SevereSystolicMmHg || dia >= SevereDiastolicMmHg
}

// EvaluateVitals maps a snapshot to zero or more alerts, in a fixed order:
// temperature, saturation, heart rate, blood pressure, pain. It is pure and
// total for validated input.
func EvaluateVitals(v VitalSigns) []VitalAlert {
	var alerts []VitalAlert

	if v.Temperature != nil {
		switch t := *v.Temperature; {
		case t >= HighFeverCelsius:
			alerts = append(alerts, VitalAlert{AlertHighFever, fmt.Sprintf("high fever (%.1f°C)", t), LevelOrange})
		case t >= ModerateFeverCelsius:
			alerts = append(alerts, VitalAlert{AlertModerateFever, fmt.Sprintf("moderate fever (%.1f°C)", t), LevelYellow})
		}
	}

	if v.OxygenSaturation != nil {
		switch s := *v.OxygenSaturation; {
		case s < CriticalSaturationPct:
			alerts = append(alerts, VitalAlert{AlertCriticalSaturation, fmt.Sprintf("critical saturation (%d%%)", s), LevelRed})
		case s < LowSaturationPct:
			alerts = append(alerts, VitalAlert{AlertLowSaturation, fmt.Sprintf("low saturation (%d%%)", s), LevelOrange})
		}
	}

	if v.HeartRate != nil {
		if hr := *v.HeartRate; hr > TachycardiaBPM || hr < BradycardiaBPM {
			alerts = append(alerts, VitalAlert{AlertAbnormalHeartRate, fmt.Sprintf("abnormal heart rate (%d bpm)", hr), LevelYellow})
		}
	}

	if v.BloodPressure != nil {
		if sys, dia, ok := ParseBloodPressure(*v.BloodPressure); ok && (sys >= SevereSystolicMmHg || dia >= SevereDiastolicMmHg) {
			alerts = append(alerts, VitalAlert{AlertSevereHypertension, fmt.Sprintf("severe hypertension (%d/%d mmHg)", sys, dia), LevelRed})
		}
	}

	if v.PainScore != nil && *v.PainScore >= SeverePainScore {
		alerts = append(alerts, VitalAlert{AlertSeverePain, fmt.Sprintf("severe pain (%d/10)", *v.PainScore), LevelOrange})
	}

	return alerts
}
