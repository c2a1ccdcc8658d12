package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/triage/internal/domain/encounter"
	"github.com/ehr/triage/internal/domain/triage"
	"github.com/ehr/triage/internal/platform/db"
)

// ---------------------------------------------------------------------------
// EncounterLookupAdapter
// ---------------------------------------------------------------------------

type stubEncounterRepo struct {
	enc *encounter.Encounter
	err error
}

func (s *stubEncounterRepo) Create(context.Context, *encounter.Encounter) error { return nil }

func (s *stubEncounterRepo) GetByID(_ context.Context, id uuid.UUID) (*encounter.Encounter, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.enc == nil || s.enc.ID != id {
		return nil, encounter.ErrNotFound
	}
	return s.enc, nil
}

func TestEncounterLookupAdapter_MapsEncounter(t *testing.T) {
	birth := time.Date(1948, 2, 10, 0, 0, 0, 0, time.UTC)
	arrived := time.Date(2024, 3, 1, 7, 45, 0, 0, time.UTC)
	enc := &encounter.Encounter{
		ID:               uuid.New(),
		PatientID:        uuid.New(),
		PatientBirthDate: &birth,
		PeriodStart:      arrived,
	}
	a := NewEncounterLookupAdapter(&stubEncounterRepo{enc: enc})

	ref, err := a.LookupEncounter(context.Background(), enc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID != enc.ID || ref.PatientID != enc.PatientID {
		t.Errorf("ids not carried over: %+v", ref)
	}
	if !ref.ArrivedAt.Equal(arrived) {
		t.Errorf("ArrivedAt = %s, want %s", ref.ArrivedAt, arrived)
	}
	if ref.PatientBirthDate == nil || !ref.PatientBirthDate.Equal(birth) {
		t.Errorf("PatientBirthDate = %v, want %s", ref.PatientBirthDate, birth)
	}
}

func TestEncounterLookupAdapter_NotFound(t *testing.T) {
	a := NewEncounterLookupAdapter(&stubEncounterRepo{})
	_, err := a.LookupEncounter(context.Background(), uuid.New())
	if !errors.Is(err, triage.ErrEncounterNotFound) {
		t.Errorf("expected ErrEncounterNotFound, got %v", err)
	}
}

func TestEncounterLookupAdapter_StorageError(t *testing.T) {
	boom := errors.New("connection reset")
	a := NewEncounterLookupAdapter(&stubEncounterRepo{err: boom})
	_, err := a.LookupEncounter(context.Background(), uuid.New())
	if !errors.Is(err, boom) {
		t.Errorf("expected storage error to pass through, got %v", err)
	}
	if errors.Is(err, triage.ErrEncounterNotFound) {
		t.Error("storage error must not read as not found")
	}
}

// ---------------------------------------------------------------------------
// CLI commands
// ---------------------------------------------------------------------------

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TRIAGE_DEFAULT_LEVEL", "green")
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestProtocolsCmd(t *testing.T) {
	out, err := execute(t, "protocols")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, code := range []string{"ACUTE_MI", "ACUTE_STROKE", "DENGUE", "COVID19", "HYPERTENSIVE_CRISIS"} {
		if !strings.Contains(out, "code: "+code) {
			t.Errorf("protocol %s missing from output", code)
		}
	}
	if !strings.Contains(out, "suggested_level: red") {
		t.Error("expected levels to render as codes")
	}
}

func TestClassifyCmd_ChestPain(t *testing.T) {
	out, err := execute(t, "classify", "--baseline", "green", "--complaint", "dor no peito", "--saturation", "97")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res struct {
		FinalLevel    string `json:"final_level"`
		OriginalLevel string `json:"original_level"`
		ProtocolCode  string `json:"protocol_code"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if res.FinalLevel != "red" || res.OriginalLevel != "green" || res.ProtocolCode != "ACUTE_MI" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestClassifyCmd_YAML(t *testing.T) {
	out, err := execute(t, "classify", "--baseline", "green", "--complaint", "mal estar", "--temperature", "39.6", "-o", "yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "final_level: orange") {
		t.Errorf("expected orange in yaml output, got:\n%s", out)
	}
}

func TestClassifyCmd_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing baseline on upa", []string{"classify", "--complaint", "dor no peito"}},
		{"unknown baseline", []string{"classify", "--baseline", "purple", "--complaint", "x"}},
		{"missing complaint", []string{"classify", "--baseline", "green"}},
		{"implausible saturation", []string{"classify", "--baseline", "green", "--complaint", "x", "--saturation", "140"}},
		{"unknown format", []string{"classify", "--baseline", "green", "--complaint", "x", "-o", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "encounter", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "triage_record"},
	})
	out := buf.String()
	if !strings.Contains(out, "2024-03-01 08:00:00") {
		t.Errorf("applied timestamp missing:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 || !strings.Contains(lines[3], "pending") {
		t.Errorf("unexpected status table:\n%s", out)
	}
}
