package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/triage/pkg/pagination"
)

type Service struct {
	repo       Repository
	engine     *Engine
	encounters EncounterLookup
	metrics    *Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, engine *Engine, logger zerolog.Logger) *Service {
	return &Service{repo: repo, engine: engine, logger: logger, now: time.Now}
}

// SetEncounterLookup attaches the optional admission collaborator. Without
// it, encounters are not verified and the waiting time starts at triage.
func (s *Service) SetEncounterLookup(l EncounterLookup) {
	s.encounters = l
}

// SetMetrics attaches optional Prometheus metrics.
func (s *Service) SetMetrics(m *Metrics) {
	s.metrics = m
	if m != nil && s.engine != nil {
		s.engine.matcher.OnProtocolError(m.observeProtocolError)
	}
}

// Engine returns the classification engine.
func (s *Service) Engine() *Engine { return s.engine }

// prepare validates a submission and returns the resolved engine input.
func (s *Service) prepare(sub Submission) (Input, error) {
	pathway, err := ParsePathway(sub.Pathway)
	if err != nil {
		return Input{}, invalidRequest("%v", err)
	}
	complaint := strings.TrimSpace(sub.Complaint)
	if complaint == "" {
		return Input{}, invalidRequest("chief_complaint is required")
	}
	if sub.BaselineLevel != nil && !sub.BaselineLevel.Valid() {
		return Input{}, invalidRequest("baseline_level %d is not a valid level", int(*sub.BaselineLevel))
	}
	if sub.BaselineLevel == nil && s.engine.Policy(pathway).BaselineRequired {
		return Input{}, invalidRequest("baseline_level is required on the %s pathway", pathway)
	}
	if err := sub.Vitals.Validate(); err != nil {
		return Input{}, err
	}
	return Input{
		Pathway:   pathway,
		Baseline:  sub.BaselineLevel,
		Complaint: complaint,
		Vitals:    sub.Vitals,
	}, nil
}

// Classify runs the engine on a submission without storing anything.
func (s *Service) Classify(sub Submission) (Result, error) {
	in, err := s.prepare(sub)
	if err != nil {
		return Result{}, err
	}
	return s.engine.Classify(in), nil
}

// SubmitTriage classifies and stores a new record for the encounter.
func (s *Service) SubmitTriage(ctx context.Context, sub Submission, evaluatorID string) (*TriageRecord, error) {
	rec, res, err := s.build(ctx, sub, evaluatorID)
	if err != nil {
		s.metrics.observeRejection(err)
		return nil, err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		err = storageErr("create triage record", err)
		s.metrics.observeRejection(err)
		return nil, err
	}
	s.recorded(rec, res)
	return rec, nil
}

// Retriage replaces the active record triageID with a fresh classification
// for the same encounter.
func (s *Service) Retriage(ctx context.Context, triageID uuid.UUID, sub Submission, evaluatorID string) (*TriageRecord, error) {
	old, err := s.repo.GetByID(ctx, triageID)
	if err != nil {
		return nil, storageErr("get triage record", err)
	}
	if !old.IsActive() {
		return nil, ErrNotFound
	}
	if sub.EncounterID != uuid.Nil && sub.EncounterID != old.EncounterID {
		return nil, invalidRequest("encounter_id does not match the record being replaced")
	}
	sub.EncounterID = old.EncounterID
	if sub.Pathway == "" {
		sub.Pathway = string(old.Pathway)
	}

	rec, res, err := s.build(ctx, sub, evaluatorID)
	if err != nil {
		s.metrics.observeRejection(err)
		return nil, err
	}
	if err := s.repo.Supersede(ctx, triageID, rec); err != nil {
		return nil, storageErr("supersede triage record", err)
	}
	s.logger.Info().Str("old_id", triageID.String()).Str("new_id", rec.ID.String()).Msg("triage record superseded")
	s.recorded(rec, res)
	return rec, nil
}

func (s *Service) build(ctx context.Context, sub Submission, evaluatorID string) (*TriageRecord, Result, error) {
	if sub.EncounterID == uuid.Nil {
		return nil, Result{}, invalidRequest("encounter_id is required")
	}
	in, err := s.prepare(sub)
	if err != nil {
		return nil, Result{}, err
	}

	now := s.now().UTC()
	rec := &TriageRecord{
		EncounterID:    sub.EncounterID,
		Pathway:        in.Pathway,
		ChiefComplaint: in.Complaint,
		Vitals:         in.Vitals,
		EvaluatorID:    evaluatorID,
		WaitingSince:   now,
		Status:         StatusActive,
		CreatedAt:      now,
	}
	if s.encounters != nil {
		enc, err := s.encounters.LookupEncounter(ctx, sub.EncounterID)
		if err != nil {
			return nil, Result{}, storageErr("lookup encounter", err)
		}
		pid := enc.PatientID
		rec.PatientID = &pid
		rec.PatientBirthDate = enc.PatientBirthDate
		if !enc.ArrivedAt.IsZero() {
			rec.WaitingSince = enc.ArrivedAt.UTC()
		}
	}

	res := s.engine.Classify(in)
	rec.applyResult(res)
	return rec, res, nil
}

func (s *Service) recorded(rec *TriageRecord, res Result) {
	s.metrics.observeClassification(rec.Pathway, res)
	evt := s.logger.Info().
		Str("triage_id", rec.ID.String()).
		Str("encounter_id", rec.EncounterID.String()).
		Str("pathway", string(rec.Pathway)).
		Str("level", rec.FinalLevel.String())
	if rec.OriginalLevel != nil {
		evt = evt.Str("original_level", rec.OriginalLevel.String()).Strs("reasons", rec.EscalationReasons)
	}
	if rec.ProtocolCode != nil {
		evt = evt.Str("protocol", *rec.ProtocolCode)
	}
	evt.Msg("triage recorded")
}

// CancelTriage terminates an active record.
func (s *Service) CancelTriage(ctx context.Context, id uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalidRequest("cancellation reason is required")
	}
	if err := s.repo.Cancel(ctx, id, reason, s.now().UTC()); err != nil {
		return storageErr("cancel triage record", err)
	}
	s.metrics.observeCancellation()
	s.logger.Info().Str("triage_id", id.String()).Str("reason", reason).Msg("triage cancelled")
	return nil
}

func (s *Service) GetTriage(ctx context.Context, id uuid.UUID) (*TriageRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get triage record", err)
	}
	return rec, nil
}

// ListWaitingQueue returns active records in the order they should be seen.
// It is recomputed from a single store read on every call.
func (s *Service) ListWaitingQueue(ctx context.Context, criticalOnly bool) ([]QueueEntry, error) {
	records, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, storageErr("list active triage records", err)
	}
	now := s.now().UTC()
	ordered := OrderQueue(records)
	entries := make([]QueueEntry, 0, len(ordered))
	for _, r := range ordered {
		if criticalOnly && !IsCritical(r.FinalLevel) {
			continue
		}
		entries = append(entries, Summarize(r, now))
	}
	if !criticalOnly {
		s.metrics.observeQueue(entries)
	}
	return entries, nil
}

// GetHistory lists records for an encounter id, falling back to a patient id
// when the encounter has none.
func (s *Service) GetHistory(ctx context.Context, id uuid.UUID, limit, offset int) ([]*TriageRecord, int, error) {
	pg := pagination.New(limit, offset)
	items, total, err := s.repo.ListByEncounter(ctx, id, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, storageErr("list triage history", err)
	}
	if total > 0 {
		return items, total, nil
	}
	items, total, err = s.repo.ListByPatient(ctx, id, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, storageErr("list triage history", err)
	}
	return items, total, nil
}

func (s *Service) SearchTriages(ctx context.Context, in map[string]string, limit, offset int) ([]*TriageRecord, int, error) {
	params := make(map[string]string, len(in))
	for k, v := range in {
		params[k] = v
	}
	if lv, ok := params["level"]; ok {
		l, err := ParseLevel(lv)
		if err != nil {
			return nil, 0, invalidRequest("%v", err)
		}
		params["level"] = l.String()
	}
	if pw, ok := params["pathway"]; ok {
		p, err := ParsePathway(pw)
		if err != nil {
			return nil, 0, invalidRequest("%v", err)
		}
		params["pathway"] = string(p)
	}
	pg := pagination.New(limit, offset)
	items, total, err := s.repo.Search(ctx, params, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, storageErr("search triage records", err)
	}
	return items, total, nil
}

// CountByLevel returns the number of records per final level created in
// [from, to). Levels with no records are reported as zero.
func (s *Service) CountByLevel(ctx context.Context, from, to time.Time) (map[string]int, error) {
	if !to.After(from) {
		return nil, invalidRequest("'to' must be after 'from'")
	}
	counts, err := s.repo.CountByLevel(ctx, from, to)
	if err != nil {
		return nil, storageErr("count triage records", err)
	}
	out := make(map[string]int, 5)
	for _, l := range Levels() {
		out[l.String()] = counts[l]
	}
	return out, nil
}

// storageErr passes typed errors through and wraps anything else as INTERNAL.
func storageErr(op string, err error) error {
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return internal(op, err)
}
