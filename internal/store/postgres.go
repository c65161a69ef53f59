package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS payment_intents (
		id           TEXT PRIMARY KEY,
		provider     TEXT NOT NULL,
		external_id  TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		buyer_email  TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'PENDING',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		paid_at      TIMESTAMPTZ,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS payment_intents_external_id_idx ON payment_intents (external_id);
	CREATE INDEX IF NOT EXISTS payment_intents_pending_idx ON payment_intents (created_at) WHERE status = 'PENDING';
`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the payment_intents table when missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if err := s.db.Exec(ctx, schemaSQL); err != nil {
		return apperrors.DatabaseError{Operation: "ensure schema", Err: err}
	}
	return nil
}

// SaveIntent inserts rec. A repeated id only refreshes the bookkeeping
// columns; status never moves backwards.
func (s *PostgresStore) SaveIntent(ctx context.Context, rec models.IntentRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}

	query := `
		INSERT INTO payment_intents (
			id, provider, external_id, amount_cents, buyer_email, status, created_at, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			external_id = EXCLUDED.external_id,
			amount_cents = EXCLUDED.amount_cents,
			buyer_email = EXCLUDED.buyer_email,
			updated_at = NOW()
	`
	err := s.db.Exec(ctx, query,
		rec.ID, rec.Provider, rec.ExternalID, rec.AmountCents, rec.BuyerEmail,
		string(rec.Status), rec.CreatedAt, rec.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("save intent %s: %w", rec.ID, err)
	}
	return nil
}

// GetIntent retrieves a single intent by ID
func (s *PostgresStore) GetIntent(ctx context.Context, id string) (*models.IntentRecord, error) {
	query := `
		SELECT id, provider, external_id, amount_cents, buyer_email, status, created_at, paid_at
		FROM payment_intents
		WHERE id = $1
	`

	rowInterface := s.db.QueryRow(ctx, query, id)
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return nil, fmt.Errorf("invalid row type")
	}

	var rec models.IntentRecord
	var status string
	err := row.Scan(
		&rec.ID, &rec.Provider, &rec.ExternalID, &rec.AmountCents, &rec.BuyerEmail,
		&status, &rec.CreatedAt, &rec.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "intent", ID: id}
		}
		return nil, fmt.Errorf("scan intent: %w", err)
	}
	rec.Status = models.Status(status)
	return &rec, nil
}

// MarkPaid sets status SUCCESS; paid_at is only written the first time
func (s *PostgresStore) MarkPaid(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE payment_intents
		SET status = $2, paid_at = COALESCE(paid_at, $3), updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`
	rowInterface := s.db.QueryRow(ctx, query, id, string(models.StatusSuccess), at.UTC())
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return fmt.Errorf("invalid row type")
	}
	var got string
	if err := row.Scan(&got); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &apperrors.NotFoundError{Resource: "intent", ID: id}
		}
		return fmt.Errorf("mark intent %s paid: %w", id, err)
	}
	return nil
}

// ListPending feeds the reconciler; the partial index keeps it cheap
func (s *PostgresStore) ListPending(ctx context.Context, since time.Time, limit int) ([]models.IntentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, provider, external_id, amount_cents, buyer_email, status, created_at, paid_at
		FROM payment_intents
		WHERE status = $1 AND created_at >= $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	rowsInterface, err := s.db.Query(ctx, query, string(models.StatusPending), since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending intents: %w", err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var out []models.IntentRecord
	for rows.Next() {
		var rec models.IntentRecord
		var status string
		if err := rows.Scan(
			&rec.ID, &rec.Provider, &rec.ExternalID, &rec.AmountCents, &rec.BuyerEmail,
			&status, &rec.CreatedAt, &rec.PaidAt,
		); err != nil {
			return nil, fmt.Errorf("scan pending intent: %w", err)
		}
		rec.Status = models.Status(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending intents: %w", err)
	}
	return out, nil
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}
