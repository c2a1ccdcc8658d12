package triage

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Pathway is the care flow a triage belongs to.
type Pathway string

const (
	PathwayUPA        Pathway = "upa"
	PathwayAmbulatory Pathway = "ambulatory"
)

// ParsePathway returns the pathway for s; an empty string means UPA.
func ParsePathway(s string) (Pathway, error) {
	switch Pathway(strings.ToLower(strings.TrimSpace(s))) {
	case "", PathwayUPA:
		return PathwayUPA, nil
	case PathwayAmbulatory:
		return PathwayAmbulatory, nil
	}
	return "", fmt.Errorf("unknown pathway %q", s)
}

// PathwayPolicy configures how the engine treats one pathway.
type PathwayPolicy struct {
	EscalationEnabled bool `json:"escalation_enabled"`
	BaselineRequired  bool `json:"baseline_required"`
}

// Policies maps each pathway to its policy.
type Policies map[Pathway]PathwayPolicy

// DefaultPolicies escalates and requires a baseline on the UPA pathway only.
func DefaultPolicies() Policies {
	return Policies{
		PathwayUPA:        {EscalationEnabled: true, BaselineRequired: true},
		PathwayAmbulatory: {EscalationEnabled: false, BaselineRequired: false},
	}
}

// Input is everything the engine looks at.
type Input struct {
	Pathway   Pathway
	Baseline  *Level
	Complaint string
	Vitals    VitalSigns
}

// Result is the outcome of one classification. It is not persisted by the
// engine.
type Result struct {
	Final              Level        `json:"final_level"`
	Baseline           *Level       `json:"baseline_level,omitempty"`
	Original           *Level       `json:"original_level,omitempty"`
	Protocol           *Protocol    `json:"-"`
	ProtocolCode       string       `json:"protocol_code,omitempty"`
	SuggestedDiagnoses []string     `json:"suggested_diagnoses,omitempty"`
	SuggestedConduct   string       `json:"suggested_conduct,omitempty"`
	Alerts             []VitalAlert `json:"alerts,omitempty"`
	EscalationReasons  []string     `json:"escalation_reasons"`
	EscalationApplied  bool         `json:"escalation_applied"`
}

// Escalated reports whether the final level differs from the level the
// classification started from.
func (r *Result) Escalated() bool { return r.Original != nil }

// Engine combines the protocol matcher and the vital-sign evaluator against a
// manual baseline. It only ever raises urgency.
type Engine struct {
	matcher      *Matcher
	policies     Policies
	defaultLevel Level
	logger       zerolog.Logger
}

// NewEngine creates an engine. defaultLevel is used when no baseline is
// given and nothing else suggests a level.
func NewEngine(matcher *Matcher, policies Policies, defaultLevel Level, logger zerolog.Logger) *Engine {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if !defaultLevel.Valid() {
		defaultLevel = LevelGreen
	}
	return &Engine{matcher: matcher, policies: policies, defaultLevel: defaultLevel, logger: logger}
}

// Policy returns the policy for p. Unknown pathways get escalation with an
// optional baseline.
func (e *Engine) Policy(p Pathway) PathwayPolicy {
	if pol, ok := e.policies[p]; ok {
		return pol
	}
	return PathwayPolicy{EscalationEnabled: true}
}

// Catalog returns the protocol catalog used by the engine.
func (e *Engine) Catalog() Catalog { return e.matcher.Catalog() }

type signal struct {
	level  Level
	reason string
}

// Classify computes the final level for in. Vital-sign alerts are always
// reported; protocol and escalation are applied only when the pathway
// policy enables escalation.
func (e *Engine) Classify(in Input) Result {
	res := Result{
		Baseline:          in.Baseline,
		Alerts:            EvaluateVitals(in.Vitals),
		EscalationReasons: []string{},
	}

	if !e.Policy(in.Pathway).EscalationEnabled {
		if in.Baseline != nil {
			res.Final = *in.Baseline
		} else {
			res.Final = e.defaultLevel
		}
		return res
	}
	res.EscalationApplied = true

	var signals []signal
	if p := e.matcher.Match(in.Complaint, in.Vitals); p != nil {
		res.Protocol = p
		res.ProtocolCode = p.Code
		res.SuggestedDiagnoses = append([]string(nil), p.SuggestedDiagnoses...)
		res.SuggestedConduct = p.SuggestedConduct
		signals = append(signals, signal{p.SuggestedLevel, fmt.Sprintf("protocol %s (%s)", p.Code, p.Name)})
	}
	for _, a := range res.Alerts {
		signals = append(signals, signal{a.SuggestedLevel, a.Message})
	}

	candidates := make([]*Level, 0, len(signals)+1)
	candidates = append(candidates, in.Baseline)
	for i := range signals {
		candidates = append(candidates, &signals[i].level)
	}
	final, ok := MostUrgent(candidates...)
	if !ok {
		res.Final = e.defaultLevel
		return res
	}
	res.Final = final

	if in.Baseline != nil {
		// Only signals that beat the baseline explain the escalation.
		for _, s := range signals {
			if s.level.MoreUrgentThan(*in.Baseline) {
				res.EscalationReasons = append(res.EscalationReasons, s.reason)
			}
		}
		if final != *in.Baseline {
			orig := *in.Baseline
			res.Original = &orig
		}
	} else {
		for _, s := range signals {
			res.EscalationReasons = append(res.EscalationReasons, s.reason)
		}
		// Without a baseline the first computed level is the reference point.
		if first := signals[0].level; final != first {
			res.Original = &first
		}
	}

	if res.Original != nil {
		e.logger.Debug().
			Str("from", res.Original.String()).
			Str("to", res.Final.String()).
			Strs("reasons", res.EscalationReasons).
			Msg("classification escalated")
	}
	return res
}
