package store

import (
	"context"
	"time"

	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// Store records the intents the proxy has issued
type Store interface {
	SaveIntent(ctx context.Context, rec models.IntentRecord) error
	// GetIntent returns a NotFoundError for unknown ids
	GetIntent(ctx context.Context, id string) (*models.IntentRecord, error)
	// MarkPaid moves an intent to SUCCESS. Already paid intents keep their
	// original paid_at.
	MarkPaid(ctx context.Context, id string, at time.Time) error
	// ListPending returns up to limit PENDING intents created at or after
	// since, oldest first
	ListPending(ctx context.Context, since time.Time, limit int) ([]models.IntentRecord, error)
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
