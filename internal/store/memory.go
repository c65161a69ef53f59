package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu      sync.RWMutex
	intents map[string]models.IntentRecord
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		intents: make(map[string]models.IntentRecord),
	}
}

// SaveIntent stores rec, replacing any record with the same id
func (s *InMemoryStore) SaveIntent(ctx context.Context, rec models.IntentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	s.intents[rec.ID] = rec
	return nil
}

func (s *InMemoryStore) GetIntent(ctx context.Context, id string) (*models.IntentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.intents[id]
	if !ok {
		return nil, &apperrors.NotFoundError{Resource: "intent", ID: id}
	}
	return &rec, nil
}

func (s *InMemoryStore) MarkPaid(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.intents[id]
	if !ok {
		return &apperrors.NotFoundError{Resource: "intent", ID: id}
	}
	if rec.Status == models.StatusSuccess {
		return nil
	}
	at = at.UTC()
	rec.Status = models.StatusSuccess
	rec.PaidAt = &at
	s.intents[id] = rec
	return nil
}

func (s *InMemoryStore) ListPending(ctx context.Context, since time.Time, limit int) ([]models.IntentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.IntentRecord
	for _, rec := range s.intents {
		if rec.Status == models.StatusPending && !rec.CreatedAt.Before(since) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}
