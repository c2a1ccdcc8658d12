package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Encounter is the admission record a triage is attached to.
type Encounter struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientBirthDate *time.Time `db:"patient_birth_date" json:"patient_birth_date,omitempty"`
	Status           string     `db:"status" json:"status"`
	ClassCode        string     `db:"class_code" json:"class_code"`
	PeriodStart      time.Time  `db:"period_start" json:"period_start"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

const (
	StatusArrived    = "arrived"
	StatusTriaged    = "triaged"
	StatusInProgress = "in-progress"
	StatusFinished   = "finished"
	StatusCancelled  = "cancelled"
)

var validStatuses = map[string]bool{
	StatusArrived:    true,
	StatusTriaged:    true,
	StatusInProgress: true,
	StatusFinished:   true,
	StatusCancelled:  true,
}

// Class codes follow the v3 ActCode subset used at the front desk.
var validClasses = map[string]bool{
	"EMER": true,
	"AMB":  true,
}
