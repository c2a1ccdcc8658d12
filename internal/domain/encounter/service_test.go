package encounter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	mu         sync.Mutex
	encounters map[uuid.UUID]*Encounter
	gets       int
}

func newMockRepo() *mockRepo {
	return &mockRepo{encounters: make(map[uuid.UUID]*Encounter)}
}

func (m *mockRepo) Create(_ context.Context, enc *Encounter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	enc.ID = uuid.New()
	enc.CreatedAt = time.Now()
	m.encounters[enc.ID] = enc
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	enc, ok := m.encounters[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *enc
	return &cp, nil
}

func TestService_CreateEncounter(t *testing.T) {
	svc := NewService(newMockRepo())
	enc := &Encounter{PatientID: uuid.New()}
	if err := svc.CreateEncounter(context.Background(), enc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if enc.Status != StatusArrived {
		t.Errorf("expected status arrived, got %s", enc.Status)
	}
	if enc.ClassCode != "EMER" {
		t.Errorf("expected class EMER, got %s", enc.ClassCode)
	}
	if enc.PeriodStart.IsZero() {
		t.Error("expected period_start to default to now")
	}
}

func TestService_CreateEncounter_Validation(t *testing.T) {
	tests := []struct {
		name string
		enc  Encounter
	}{
		{"missing patient", Encounter{}},
		{"bad class", Encounter{PatientID: uuid.New(), ClassCode: "IMP"}},
		{"bad status", Encounter{PatientID: uuid.New(), Status: "onleave"}},
	}
	svc := NewService(newMockRepo())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.enc
			err := svc.CreateEncounter(context.Background(), &enc)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestService_CreateEncounter_NormalizesClass(t *testing.T) {
	svc := NewService(newMockRepo())
	enc := &Encounter{PatientID: uuid.New(), ClassCode: " amb "}
	if err := svc.CreateEncounter(context.Background(), enc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.ClassCode != "AMB" {
		t.Errorf("expected AMB, got %q", enc.ClassCode)
	}
}

func TestService_GetEncounter(t *testing.T) {
	svc := NewService(newMockRepo())
	enc := &Encounter{PatientID: uuid.New()}
	svc.CreateEncounter(context.Background(), enc)

	got, err := svc.GetEncounter(context.Background(), enc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PatientID != enc.PatientID {
		t.Errorf("expected patient %s, got %s", enc.PatientID, got.PatientID)
	}

	if _, err := svc.GetEncounter(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
