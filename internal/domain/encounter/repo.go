package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("encounter not found")
	ErrInvalid  = errors.New("invalid encounter")
)

type Repository interface {
	Create(ctx context.Context, enc *Encounter) error
	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
}
