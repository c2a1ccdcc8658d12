package encounter

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/triage/internal/platform/cache"
)

// CachedRepository serves GetByID from a cache.Store before falling back to
// the wrapped repository. Cache failures are logged and bypassed.
type CachedRepository struct {
	Repository
	store  cache.Store
	keys   cache.KeyClass
	logger zerolog.Logger
}

func NewCachedRepository(repo Repository, store cache.Store, keys cache.KeyClass, logger zerolog.Logger) *CachedRepository {
	return &CachedRepository{Repository: repo, store: store, keys: keys, logger: logger}
}

func (r *CachedRepository) GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	key := r.keys.Key(id.String())

	data, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("encounter cache read failed")
	} else if ok {
		var enc Encounter
		if err := json.Unmarshal(data, &enc); err == nil {
			return &enc, nil
		}
		r.logger.Warn().Str("key", key).Msg("discarding undecodable encounter cache entry")
	}

	enc, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(enc); err == nil {
		if err := r.store.Set(ctx, key, data, r.keys.TTL); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("encounter cache write failed")
		}
	}
	return enc, nil
}
