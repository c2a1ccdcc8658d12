package triage

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// VitalsRule is the vital-sign half of a protocol predicate. Zero-valued
// fields impose no condition. When more than one field is set, all of them
// must hold.
type VitalsRule struct {
	TemperatureAbove   float64 `json:"temperature_above,omitempty" yaml:"temperature_above,omitempty"`
	SaturationBelow    int     `json:"saturation_below,omitempty" yaml:"saturation_below,omitempty"`
	SevereHypertension bool    `json:"severe_hypertension,omitempty" yaml:"severe_hypertension,omitempty"`
}

func (r VitalsRule) empty() bool {
	return r.TemperatureAbove == 0 && r.SaturationBelow == 0 && !r.SevereHypertension
}

func (r VitalsRule) holds(v VitalSigns) bool {
	if r.TemperatureAbove != 0 && (v.Temperature == nil || *v.Temperature <= r.TemperatureAbove) {
		return false
	}
	if r.SaturationBelow != 0 && (v.OxygenSaturation == nil || *v.OxygenSaturation >= r.SaturationBelow) {
		return false
	}
	if r.SevereHypertension && !IsSevereHypertension(v.BloodPressure) {
		return false
	}
	return true
}

// Protocol is one clinical rule of the catalog. The predicate is the
// conjunction of the keyword condition and the vitals rule:
//   - at least MinKeywordHits of Keywords appear in the complaint, and
//   - when RequiredKeywords is non-empty, at least one of them appears, and
//   - Vitals holds.
type Protocol struct {
	Code               string     `json:"code" yaml:"code"`
	Name               string     `json:"name" yaml:"name"`
	Keywords           []string   `json:"keywords" yaml:"keywords"`
	RequiredKeywords   []string   `json:"required_keywords,omitempty" yaml:"required_keywords,omitempty"`
	MinKeywordHits     int        `json:"min_keyword_hits" yaml:"min_keyword_hits"`
	Vitals             VitalsRule `json:"vitals,omitempty" yaml:"vitals,omitempty"`
	Criteria           string     `json:"criteria" yaml:"criteria"`
	SuggestedLevel     Level      `json:"suggested_level" yaml:"suggested_level"`
	SuggestedDiagnoses []string   `json:"suggested_diagnoses" yaml:"suggested_diagnoses"`
	SuggestedConduct   string     `json:"suggested_conduct" yaml:"suggested_conduct"`
}

// Check validates the protocol definition itself.
func (p *Protocol) Check() error {
	if p.Code == "" {
		return fmt.Errorf("protocol without code")
	}
	if !p.SuggestedLevel.Valid() {
		return fmt.Errorf("protocol %s: invalid suggested level %d", p.Code, int(p.SuggestedLevel))
	}
	if p.MinKeywordHits < 0 || p.MinKeywordHits > len(p.Keywords) {
		return fmt.Errorf("protocol %s: min_keyword_hits %d with %d keywords", p.Code, p.MinKeywordHits, len(p.Keywords))
	}
	if p.MinKeywordHits == 0 && len(p.RequiredKeywords) == 0 && p.Vitals.empty() {
		return fmt.Errorf("protocol %s: predicate matches everything", p.Code)
	}
	return nil
}

// Matches evaluates the predicate against a complaint already passed through
// NormalizeComplaint. It returns an error when the definition is malformed.
func (p *Protocol) Matches(complaint string, v VitalSigns) (bool, error) {
	if err := p.Check(); err != nil {
		return false, err
	}
	if len(p.RequiredKeywords) > 0 && countHits(complaint, p.RequiredKeywords) == 0 {
		return false, nil
	}
	if countHits(complaint, p.Keywords) < p.MinKeywordHits {
		return false, nil
	}
	return p.Vitals.holds(v), nil
}

// countHits counts the keywords present in complaint as whole words. A
// keyword contained in a longer keyword that also matched is not counted,
// so "tosse seca" is one symptom even when "tosse" is listed too.
func countHits(complaint string, keywords []string) int {
	padded := " " + complaint + " "
	var found []string
	for _, kw := range keywords {
		k := NormalizeComplaint(kw)
		if k != "" && strings.Contains(padded, " "+k+" ") {
			found = append(found, k)
		}
	}
	hits := 0
	for i, k := range found {
		subsumed := false
		for j, other := range found {
			if i != j && len(other) > len(k) && strings.Contains(" "+other+" ", " "+k+" ") {
				subsumed = true
				break
			}
		}
		if !subsumed {
			hits++
		}
	}
	return hits
}

// NormalizeComplaint lower-cases free text, strips accents and punctuation
// and collapses whitespace, so that "Dor no PEITO!" and "dor no peito"
// compare equal. Keyword matching works on whole words of this form.
func NormalizeComplaint(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

// Catalog is an ordered list of protocols. Order is significant: the first
// match wins.
type Catalog []Protocol

// Lookup returns the protocol with the given code.
func (c Catalog) Lookup(code string) (*Protocol, bool) {
	for i := range c {
		if c[i].Code == code {
			return &c[i], true
		}
	}
	return nil, false
}

// DefaultCatalog returns the Ministry of Health protocols in evaluation order.
// Protocols gated on vital signs come first because their keyword lists
// overlap with the purely symptomatic ones.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Code:               "DENGUE",
			Name:               "Protocolo de Dengue",
			Keywords:           []string{"dor no corpo", "febre", "dor de cabeça", "olhos vermelhos", "falta de apetite", "náusea", "vômito", "dor atrás dos olhos"},
			MinKeywordHits:     2,
			Vitals:             VitalsRule{TemperatureAbove: 38.0},
			Criteria:           "Febre alta (>38°C), cefaleia, mialgia, artralgia, dor retro-orbital",
			SuggestedLevel:     LevelOrange,
			SuggestedDiagnoses: []string{"Dengue clássica", "Dengue hemorrágica", "Síndrome do choque da dengue"},
			SuggestedConduct:   "Hidratação oral abundante, paracetamol para febre/dor, repouso, retorno em 24h ou se piora",
		},
		{
			Code:               "COVID19",
			Name:               "Protocolo COVID-19",
			Keywords:           []string{"febre", "tosse seca", "tosse", "cansaço", "falta de ar", "perda de olfato", "perda de paladar", "dor de garganta"},
			MinKeywordHits:     2,
			Vitals:             VitalsRule{SaturationBelow: 95},
			Criteria:           "Febre, tosse, dispneia, anosmia, ageusia",
			SuggestedLevel:     LevelYellow,
			SuggestedDiagnoses: []string{"COVID-19 leve", "COVID-19 moderada", "COVID-19 grave", "Síndrome respiratória aguda"},
			SuggestedConduct:   "Isolamento domiciliar, sintomáticos, hidratação, O2 se saturação <95%",
		},
		{
			Code:               "HYPERTENSIVE_CRISIS",
			Name:               "Protocolo Crise Hipertensiva",
			Keywords:           []string{"dor de cabeça intensa", "tontura", "visão turva", "dor no peito", "falta de ar"},
			MinKeywordHits:     1,
			Vitals:             VitalsRule{SevereHypertension: true},
			Criteria:           "PA sistólica ≥180mmHg ou diastólica ≥120mmHg + sintomas",
			SuggestedLevel:     LevelRed,
			SuggestedDiagnoses: []string{"Crise hipertensiva", "Emergência hipertensiva", "Urgência hipertensiva"},
			SuggestedConduct:   "Anti-hipertensivo, monitorização contínua, investigar lesão de órgão-alvo",
		},
		{
			Code:               "ACUTE_MI",
			Name:               "Protocolo Infarto Agudo do Miocárdio",
			Keywords:           []string{"dor no peito", "dor precordial", "dor torácica", "chest pain", "dor no braço esquerdo", "falta de ar", "suor frio", "náusea"},
			RequiredKeywords:   []string{"dor no peito", "dor precordial", "dor torácica", "chest pain"},
			MinKeywordHits:     1,
			Criteria:           "Dor precordial típica + irradiação + sintomas associados",
			SuggestedLevel:     LevelRed,
			SuggestedDiagnoses: []string{"Infarto agudo do miocárdio", "Síndrome coronariana aguda", "Angina instável"},
			SuggestedConduct:   "ECG imediato, AAS 300mg, clopidogrel 300mg, O2 se saturação <94%, acesso venoso, troponina",
		},
		{
			Code:               "ACUTE_STROKE",
			Name:               "Protocolo AVC Agudo",
			Keywords:           []string{"perda de força", "dificuldade para falar", "boca torta", "perda de visão", "dor de cabeça súbita", "formigamento em um lado"},
			MinKeywordHits:     1,
			Criteria:           "Déficit neurológico focal súbito",
			SuggestedLevel:     LevelRed,
			SuggestedDiagnoses: []string{"AVC isquêmico", "AVC hemorrágico", "AIT - Ataque isquêmico transitório"},
			SuggestedConduct:   "TC crânio urgente, glicemia, PA, via aérea pérvia, NIH Stroke Scale",
		},
	}
}
