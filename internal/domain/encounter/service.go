package encounter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateEncounter(ctx context.Context, enc *Encounter) error {
	if enc.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalid)
	}
	enc.ClassCode = strings.ToUpper(strings.TrimSpace(enc.ClassCode))
	if enc.ClassCode == "" {
		enc.ClassCode = "EMER"
	}
	if !validClasses[enc.ClassCode] {
		return fmt.Errorf("%w: class_code %q", ErrInvalid, enc.ClassCode)
	}
	if enc.Status == "" {
		enc.Status = StatusArrived
	}
	if !validStatuses[enc.Status] {
		return fmt.Errorf("%w: status %q", ErrInvalid, enc.Status)
	}
	if enc.PeriodStart.IsZero() {
		enc.PeriodStart = time.Now().UTC()
	}
	return s.repo.Create(ctx, enc)
}

func (s *Service) GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.repo.GetByID(ctx, id)
}
