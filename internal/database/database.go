package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajasatyajit/balanca-checkout/config"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/metrics"
)

const (
	connectTimeout = 30 * time.Second
	execTimeout    = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// ErrNotConfigured is returned by reads when DATABASE_URL is empty
var ErrNotConfigured = errors.New("database not configured")

// DB wraps a pgx pool. A DB without a pool is valid and turns the store
// into its in-memory fallback.
type DB struct {
	pool *pgxpool.Pool
	cfg  config.DatabaseConfig
	stop context.CancelFunc
}

// New creates a new database connection
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.URL == "" {
		logger.Info("DATABASE_URL not set; intents are kept in memory only")
		return &DB{pool: nil, cfg: cfg}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		logger.Debug("Database connection established", "pid", conn.PgConn().PID())
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	metricsCtx, stop := context.WithCancel(context.Background())
	db := &DB{pool: pool, cfg: cfg, stop: stop}
	go db.collectMetrics(metricsCtx)

	logger.Info("Database pool ready",
		"max_conns", poolCfg.MaxConns,
		"min_conns", poolCfg.MinConns,
	)
	return db, nil
}

// Close stops the metrics collector and closes the pool
func (d *DB) Close(ctx context.Context) {
	if d.stop != nil {
		d.stop()
	}
	if d.pool != nil {
		d.pool.Close()
		logger.Info("Database connection closed")
	}
}

// collectMetrics periodically publishes pool usage
func (d *DB) collectMetrics(ctx context.Context) {
	if d.pool == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := d.pool.Stat()
			metrics.SetDBConnectionsActive(float64(stat.AcquiredConns()))
		}
	}
}

// Exec executes a statement; without a pool it is a no-op
func (d *DB) Exec(ctx context.Context, sql string, args ...any) error {
	if d.pool == nil {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	_, err := d.pool.Exec(ctx, sql, args...)
	d.observe("exec", sql, start, err)
	return err
}

// Query executes a query and returns pgx.Rows. The caller's context bounds
// the whole iteration, so no per-call timeout is applied here.
func (d *DB) Query(ctx context.Context, sql string, args ...any) (interface{}, error) {
	if d.pool == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	rows, err := d.pool.Query(ctx, sql, args...)
	d.observe("query", sql, start, err)
	return rows, err
}

// QueryRow executes a query that returns a single pgx.Row
func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) interface{} {
	if d.pool == nil {
		return nil
	}
	metrics.RecordDBQuery("query_row", "issued")
	return d.pool.QueryRow(ctx, sql, args...)
}

func (d *DB) observe(op, sql string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		logger.Error("Database "+op+" failed", "error", err, "sql", sql)
	} else {
		logger.Debug("Database "+op, "sql", sql, "duration_ms", time.Since(start).Milliseconds())
	}
	metrics.RecordDBQuery(op, status)
}

// Health checks database connectivity
func (d *DB) Health(ctx context.Context) error {
	if d.pool == nil {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return d.pool.Ping(ctx)
}

// IsConfigured returns true if database is configured
func (d *DB) IsConfigured() bool {
	return d.pool != nil
}
