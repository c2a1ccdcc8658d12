package encounter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/triage/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const encCols = `id, patient_id, patient_birth_date, status, class_code, period_start, created_at`

func (r *repoPG) Create(ctx context.Context, enc *Encounter) error {
	enc.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO encounter (id, patient_id, patient_birth_date, status, class_code, period_start)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		enc.ID, enc.PatientID, enc.PatientBirthDate, enc.Status, enc.ClassCode, enc.PeriodStart,
	).Scan(&enc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert encounter: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	var enc Encounter
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+encCols+` FROM encounter WHERE id = $1`, id).Scan(
		&enc.ID, &enc.PatientID, &enc.PatientBirthDate, &enc.Status, &enc.ClassCode,
		&enc.PeriodStart, &enc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get encounter: %w", err)
	}
	return &enc, nil
}
