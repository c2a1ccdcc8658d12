package triage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Level is a Manchester-style urgency tier. Lower values are more urgent;
// the integer value is the priority used for every comparison.
type Level int

const (
	LevelRed    Level = 1
	LevelOrange Level = 2
	LevelYellow Level = 3
	LevelGreen  Level = 4
	LevelBlue   Level = 5
)

// LevelInfo describes how a level is displayed and how long a patient in that
// tier may wait before being seen.
type LevelInfo struct {
	Code        string        `json:"code" yaml:"code"`
	Color       string        `json:"color" yaml:"color"`
	DisplayName string        `json:"display_name" yaml:"display_name"`
	MaxWait     time.Duration `json:"-" yaml:"-"`
	MaxWaitMins int           `json:"max_wait_minutes" yaml:"max_wait_minutes"`
}

// levelTable is the single source for level metadata.
var levelTable = map[Level]LevelInfo{
	LevelRed:    {Code: "red", Color: "#D32F2F", DisplayName: "Vermelho - Emergência", MaxWaitMins: 0},
	LevelOrange: {Code: "orange", Color: "#F57C00", DisplayName: "Laranja - Muito urgente", MaxWaitMins: 10},
	LevelYellow: {Code: "yellow", Color: "#FBC02D", DisplayName: "Amarelo - Urgente", MaxWaitMins: 60},
	LevelGreen:  {Code: "green", Color: "#388E3C", DisplayName: "Verde - Pouco urgente", MaxWaitMins: 120},
	LevelBlue:   {Code: "blue", Color: "#1976D2", DisplayName: "Azul - Não urgente", MaxWaitMins: 240},
}

func init() {
	for l, info := range levelTable {
		info.MaxWait = time.Duration(info.MaxWaitMins) * time.Minute
		levelTable[l] = info
	}
}

// Levels returns every level from most to least urgent.
func Levels() []Level {
	return []Level{LevelRed, LevelOrange, LevelYellow, LevelGreen, LevelBlue}
}

// Describe returns the metadata for l.
func Describe(l Level) (LevelInfo, bool) {
	info, ok := levelTable[l]
	return info, ok
}

// Priority returns the integer priority, 1 being the most urgent.
func (l Level) Priority() int { return int(l) }

// Valid reports whether l is one of the five known tiers.
func (l Level) Valid() bool {
	_, ok := levelTable[l]
	return ok
}

// MoreUrgentThan reports whether l must be seen before other.
func (l Level) MoreUrgentThan(other Level) bool {
	return l.Priority() < other.Priority()
}

func (l Level) String() string {
	if info, ok := levelTable[l]; ok {
		return info.Code
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts a level code ("red"), its Portuguese color name
// ("vermelho") or its priority ("1").
func ParseLevel(s string) (Level, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "red", "vermelho", "1":
		return LevelRed, nil
	case "orange", "laranja", "2":
		return LevelOrange, nil
	case "yellow", "amarelo", "3":
		return LevelYellow, nil
	case "green", "verde", "4":
		return LevelGreen, nil
	case "blue", "azul", "5":
		return LevelBlue, nil
	}
	return 0, fmt.Errorf("unknown classification level %q", s)
}

// MarshalJSON encodes the level as its code.
func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("cannot encode invalid level %d", int(l))
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts either the code string or the numeric priority.
func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("classification level must be a string or number")
		}
		s = fmt.Sprint(n)
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalYAML encodes the level as its code.
func (l Level) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}

// MostUrgent returns the most urgent of the given levels, ignoring nil
// entries. ok is false when every entry is nil.
func MostUrgent(levels ...*Level) (Level, bool) {
	var best Level
	found := false
	for _, l := range levels {
		if l == nil {
			continue
		}
		if !found || l.MoreUrgentThan(best) {
			best = *l
			found = true
		}
	}
	return best, found
}
