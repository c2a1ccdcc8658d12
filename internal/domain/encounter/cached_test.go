package encounter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/triage/internal/platform/cache"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

var testKeys = cache.KeyClass{Prefix: "encounter", TTL: time.Minute}

func seed(t *testing.T, repo *mockRepo) *Encounter {
	t.Helper()
	birth := time.Date(1950, 6, 1, 0, 0, 0, 0, time.UTC)
	enc := &Encounter{PatientID: uuid.New(), PatientBirthDate: &birth, Status: StatusArrived, ClassCode: "EMER",
		PeriodStart: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	if err := repo.Create(context.Background(), enc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return enc
}

func TestCachedRepository_HitsStoreAfterFirstRead(t *testing.T) {
	repo := newMockRepo()
	enc := seed(t, repo)
	store := cache.NewMemoryStore()
	cached := NewCachedRepository(repo, store, testKeys, zerolog.Nop())

	for i := 0; i < 3; i++ {
		got, err := cached.GetByID(context.Background(), enc.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.PatientID != enc.PatientID || !got.PeriodStart.Equal(enc.PeriodStart) {
			t.Errorf("unexpected encounter: %+v", got)
		}
		if got.PatientBirthDate == nil || !got.PatientBirthDate.Equal(*enc.PatientBirthDate) {
			t.Errorf("birth date lost through cache: %v", got.PatientBirthDate)
		}
	}
	if repo.gets != 1 {
		t.Errorf("expected 1 repository read, got %d", repo.gets)
	}
	if _, ok, _ := store.Get(context.Background(), "encounter:"+enc.ID.String()); !ok {
		t.Error("expected entry under encounter:<id>")
	}
}

func TestCachedRepository_NotFoundIsNotCached(t *testing.T) {
	repo := newMockRepo()
	store := cache.NewMemoryStore()
	cached := NewCachedRepository(repo, store, testKeys, zerolog.Nop())

	id := uuid.New()
	for i := 0; i < 2; i++ {
		if _, err := cached.GetByID(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if repo.gets != 2 {
		t.Errorf("expected 2 repository reads, got %d", repo.gets)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", store.Len())
	}
}

func TestCachedRepository_StoreFailureFallsThrough(t *testing.T) {
	repo := newMockRepo()
	enc := seed(t, repo)
	cached := NewCachedRepository(repo, brokenStore{}, testKeys, zerolog.Nop())

	got, err := cached.GetByID(context.Background(), enc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != enc.ID {
		t.Errorf("expected %s, got %s", enc.ID, got.ID)
	}
}

func TestCachedRepository_CorruptEntryIsReplaced(t *testing.T) {
	repo := newMockRepo()
	enc := seed(t, repo)
	store := cache.NewMemoryStore()
	store.Set(context.Background(), testKeys.Key(enc.ID.String()), []byte("{not json"), time.Minute)
	cached := NewCachedRepository(repo, store, testKeys, zerolog.Nop())

	got, err := cached.GetByID(context.Background(), enc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != enc.ID {
		t.Errorf("expected %s, got %s", enc.ID, got.ID)
	}
	if repo.gets != 1 {
		t.Errorf("expected fallback read, got %d", repo.gets)
	}
}
