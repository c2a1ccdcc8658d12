package triage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists triage records. Implementations must enforce at most
// one active record per encounter at write time and report a violation as
// ErrAlreadyTriaged.
type Repository interface {
	Create(ctx context.Context, t *TriageRecord) error
	// Supersede marks oldID superseded by t and inserts t in one transaction.
	// It returns ErrNotFound when oldID is not active.
	Supersede(ctx context.Context, oldID uuid.UUID, t *TriageRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*TriageRecord, error)
	// Cancel moves an active record to cancelled. It returns ErrNotFound when
	// the record does not exist or is already terminal.
	Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	ListActive(ctx context.Context) ([]*TriageRecord, error)
	ListByEncounter(ctx context.Context, encounterID uuid.UUID, limit, offset int) ([]*TriageRecord, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TriageRecord, int, error)
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TriageRecord, int, error)
	CountByLevel(ctx context.Context, from, to time.Time) (map[Level]int, error)
}

// EncounterLookup resolves encounters owned by the admission service.
// It returns ErrEncounterNotFound for unknown ids.
type EncounterLookup interface {
	LookupEncounter(ctx context.Context, id uuid.UUID) (*EncounterRef, error)
}
