package triage

import (
	"time"

	"github.com/google/uuid"
)

// Record status values.
const (
	StatusActive     = "active"
	StatusCancelled  = "cancelled"
	StatusSuperseded = "superseded"
)

// TriageRecord maps to the triage_record table. Classification fields are
// written once at creation; afterwards only the status columns change.
type TriageRecord struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	EncounterID        uuid.UUID  `db:"encounter_id" json:"encounter_id"`
	PatientID          *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Pathway            Pathway    `db:"pathway" json:"pathway"`
	ChiefComplaint     string     `db:"chief_complaint" json:"chief_complaint"`
	Vitals             VitalSigns `db:"-" json:"vitals"`
	BaselineLevel      *Level     `db:"baseline_level" json:"baseline_level,omitempty"`
	FinalLevel         Level      `db:"final_level" json:"final_level"`
	OriginalLevel      *Level     `db:"original_level" json:"original_level,omitempty"`
	ProtocolCode       *string    `db:"protocol_code" json:"protocol_code,omitempty"`
	SuggestedDiagnoses []string   `db:"suggested_diagnoses" json:"suggested_diagnoses,omitempty"`
	SuggestedConduct   *string    `db:"suggested_conduct" json:"suggested_conduct,omitempty"`
	EscalationReasons  []string   `db:"escalation_reasons" json:"escalation_reasons"`
	EvaluatorID        string     `db:"evaluator_id" json:"evaluator_id"`
	WaitingSince       time.Time  `db:"waiting_since" json:"waiting_since"`
	PatientBirthDate   *time.Time `db:"patient_birth_date" json:"patient_birth_date,omitempty"`
	Status             string     `db:"status" json:"status"`
	CancelReason       *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	SupersededBy       *uuid.UUID `db:"superseded_by" json:"superseded_by,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// IsActive reports whether the record still belongs in the waiting queue.
func (t *TriageRecord) IsActive() bool { return t.Status == StatusActive }

// Escalated reports whether the engine raised the level.
func (t *TriageRecord) Escalated() bool { return t.OriginalLevel != nil }

// applyResult copies the engine output onto the record.
func (t *TriageRecord) applyResult(res Result) {
	t.BaselineLevel = res.Baseline
	t.FinalLevel = res.Final
	t.OriginalLevel = res.Original
	t.EscalationReasons = append([]string{}, res.EscalationReasons...)
	if res.Protocol != nil {
		code := res.Protocol.Code
		conduct := res.SuggestedConduct
		t.ProtocolCode = &code
		t.SuggestedConduct = &conduct
		t.SuggestedDiagnoses = append([]string(nil), res.SuggestedDiagnoses...)
	}
}

// Submission is what the admission side sends to have an encounter triaged.
type Submission struct {
	EncounterID   uuid.UUID  `json:"encounter_id"`
	Pathway       string     `json:"pathway"`
	Complaint     string     `json:"chief_complaint"`
	Vitals        VitalSigns `json:"vitals"`
	BaselineLevel *Level     `json:"baseline_level,omitempty"`
}

// EncounterRef is the admission collaborator's view of an encounter.
type EncounterRef struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	PatientBirthDate *time.Time
	ArrivedAt        time.Time
}
