package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/triage/internal/platform/db"
)

type triageRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &triageRepoPG{pool: pool} }

func (r *triageRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const triageCols = `id, encounter_id, patient_id, pathway, chief_complaint,
	temperature, oxygen_saturation, heart_rate, respiratory_rate, blood_pressure, pain_score,
	baseline_level, final_level, original_level, protocol_code,
	suggested_diagnoses, suggested_conduct, escalation_reasons,
	evaluator_id, waiting_since, patient_birth_date,
	status, cancel_reason, cancelled_at, superseded_by, created_at`

func (r *triageRepoPG) scanTriage(row pgx.Row) (*TriageRecord, error) {
	var (
		t                  TriageRecord
		pathway            string
		baseline, original *int16
		final              int16
		diagnoses, reasons []string
	)
	err := row.Scan(&t.ID, &t.EncounterID, &t.PatientID, &pathway, &t.ChiefComplaint,
		&t.Vitals.Temperature, &t.Vitals.OxygenSaturation, &t.Vitals.HeartRate, &t.Vitals.RespiratoryRate,
		&t.Vitals.BloodPressure, &t.Vitals.PainScore,
		&baseline, &final, &original, &t.ProtocolCode,
		&diagnoses, &t.SuggestedConduct, &reasons,
		&t.EvaluatorID, &t.WaitingSince, &t.PatientBirthDate,
		&t.Status, &t.CancelReason, &t.CancelledAt, &t.SupersededBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Pathway = Pathway(pathway)
	t.FinalLevel = Level(final)
	t.BaselineLevel = levelPtr(baseline)
	t.OriginalLevel = levelPtr(original)
	t.SuggestedDiagnoses = diagnoses
	t.EscalationReasons = reasons
	if t.EscalationReasons == nil {
		t.EscalationReasons = []string{}
	}
	return &t, nil
}

func levelPtr(v *int16) *Level {
	if v == nil {
		return nil
	}
	l := Level(*v)
	return &l
}

func levelArg(l *Level) *int16 {
	if l == nil {
		return nil
	}
	v := int16(*l)
	return &v
}

func (r *triageRepoPG) insert(ctx context.Context, t *TriageRecord) error {
	t.ID = uuid.New()
	if t.EscalationReasons == nil {
		t.EscalationReasons = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO triage_record (id, encounter_id, patient_id, pathway, chief_complaint,
			temperature, oxygen_saturation, heart_rate, respiratory_rate, blood_pressure, pain_score,
			baseline_level, final_level, original_level, protocol_code,
			suggested_diagnoses, suggested_conduct, escalation_reasons,
			evaluator_id, waiting_since, patient_birth_date, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		t.ID, t.EncounterID, t.PatientID, string(t.Pathway), t.ChiefComplaint,
		t.Vitals.Temperature, t.Vitals.OxygenSaturation, t.Vitals.HeartRate, t.Vitals.RespiratoryRate,
		t.Vitals.BloodPressure, t.Vitals.PainScore,
		levelArg(t.BaselineLevel), int16(t.FinalLevel), levelArg(t.OriginalLevel), t.ProtocolCode,
		t.SuggestedDiagnoses, t.SuggestedConduct, t.EscalationReasons,
		t.EvaluatorID, t.WaitingSince, t.PatientBirthDate, t.Status, t.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrAlreadyTriaged
	}
	return err
}

// Create relies on the partial unique index on encounter_id for active rows,
// so two concurrent submissions for one encounter cannot both succeed.
func (r *triageRepoPG) Create(ctx context.Context, t *TriageRecord) error {
	return r.insert(ctx, t)
}

func (r *triageRepoPG) Supersede(ctx context.Context, oldID uuid.UUID, t *TriageRecord) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE triage_record SET status = $2
			WHERE id = $1 AND status = $3`,
			oldID, StatusSuperseded, StatusActive)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if err := r.insert(ctx, t); err != nil {
			return err
		}
		_, err = r.conn(ctx).Exec(ctx, `UPDATE triage_record SET superseded_by = $2 WHERE id = $1`, oldID, t.ID)
		return err
	})
}

func (r *triageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TriageRecord, error) {
	return r.scanTriage(r.conn(ctx).QueryRow(ctx, `SELECT `+triageCols+` FROM triage_record WHERE id = $1`, id))
}

func (r *triageRepoPG) Cancel(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE triage_record SET status = $2, cancel_reason = $3, cancelled_at = $4
		WHERE id = $1 AND status = $5`,
		id, StatusCancelled, reason, at, StatusActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *triageRepoPG) ListActive(ctx context.Context) ([]*TriageRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+triageCols+` FROM triage_record
		WHERE status = $1 ORDER BY final_level, created_at, id`, StatusActive)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *triageRepoPG) ListByEncounter(ctx context.Context, encounterID uuid.UUID, limit, offset int) ([]*TriageRecord, int, error) {
	return r.Search(ctx, map[string]string{"encounter_id": encounterID.String()}, limit, offset)
}

func (r *triageRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TriageRecord, int, error) {
	return r.Search(ctx, map[string]string{"patient_id": patientID.String()}, limit, offset)
}

func (r *triageRepoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*TriageRecord, int, error) {
	query := `SELECT ` + triageCols + ` FROM triage_record WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM triage_record WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(clause string, arg interface{}) {
		cond := fmt.Sprintf(clause, idx)
		query += cond
		countQuery += cond
		args = append(args, arg)
		idx++
	}

	if p, ok := params["patient_id"]; ok {
		add(` AND patient_id = $%d`, p)
	}
	if p, ok := params["encounter_id"]; ok {
		add(` AND encounter_id = $%d`, p)
	}
	if p, ok := params["level"]; ok {
		l, err := ParseLevel(p)
		if err != nil {
			return nil, 0, invalidRequest("%v", err)
		}
		add(` AND final_level = $%d`, int16(l))
	}
	if p, ok := params["pathway"]; ok {
		add(` AND pathway = $%d`, p)
	}
	if p, ok := params["status"]; ok {
		add(` AND status = $%d`, p)
	}
	if p, ok := params["protocol"]; ok {
		add(` AND protocol_code = $%d`, p)
	}
	if p, ok := params["complaint"]; ok {
		add(` AND chief_complaint ILIKE '%%' || $%d || '%%'`, p)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountByLevel counts records created in [from, to). Superseded records are
// left out so a re-triaged encounter is counted once.
func (r *triageRepoPG) CountByLevel(ctx context.Context, from, to time.Time) (map[Level]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT final_level, COUNT(*) FROM triage_record
		WHERE created_at >= $1 AND created_at < $2 AND status <> $3
		GROUP BY final_level`, from, to, StatusSuperseded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Level]int)
	for rows.Next() {
		var (
			level int16
			n     int
		)
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		counts[Level(level)] = n
	}
	return counts, rows.Err()
}

func (r *triageRepoPG) collect(rows pgx.Rows) ([]*TriageRecord, error) {
	defer rows.Close()
	var items []*TriageRecord
	for rows.Next() {
		t, err := r.scanTriage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
