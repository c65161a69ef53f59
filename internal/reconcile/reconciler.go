// Package reconcile settles intents the checkout page stopped polling.
// A buyer who pays and closes the tab never triggers another status check,
// so the record would stay PENDING without a webhook. The reconciler sweeps
// recent PENDING intents on an interval and asks the gateway again.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rajasatyajit/balanca-checkout/config"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/metrics"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// Store lists the intents still waiting for payment
type Store interface {
	ListPending(ctx context.Context, since time.Time, limit int) ([]models.IntentRecord, error)
}

// Checker refreshes one intent. payment.Service records SUCCESS itself.
type Checker interface {
	GetStatus(ctx context.Context, id string) (models.Status, error)
}

// Result summarizes one sweep
type Result struct {
	Checked int
	Settled int
	Failed  int
}

// Reconciler periodically re-checks pending intents
type Reconciler struct {
	store    Store
	checker  Checker
	cfg      config.ReconcileConfig
	lookback time.Duration
	sem      *semaphore.Weighted
	now      func() time.Time
	mu       sync.Mutex
	running  bool
}

// New creates a reconciler. Intents older than lookback are left alone;
// their PIX charge has expired upstream.
func New(st Store, checker Checker, cfg config.ReconcileConfig, lookback time.Duration) *Reconciler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reconciler{
		store:    st,
		checker:  checker,
		cfg:      cfg,
		lookback: lookback,
		sem:      semaphore.NewWeighted(int64(cfg.Workers)),
		now:      time.Now,
	}
}

// Run sweeps until ctx is cancelled
func (r *Reconciler) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	logger.Info("Starting reconciler", "interval", r.cfg.Interval, "workers", r.cfg.Workers)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Reconciler stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Reconcile sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sweep
func (r *Reconciler) RunOnce(ctx context.Context) (Result, error) {
	start := r.now()
	var since time.Time
	if r.lookback > 0 {
		since = start.Add(-r.lookback)
	}

	pending, err := r.store.ListPending(ctx, since, r.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return Result{}, nil
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		res Result
	)
	for _, rec := range pending {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer r.sem.Release(1)

			status, err := r.checker.GetStatus(logger.WithIntentID(ctx, id), id)
			mu.Lock()
			defer mu.Unlock()
			res.Checked++
			switch {
			case err != nil:
				res.Failed++
				if !errors.Is(err, apperrors.ErrNotFound) {
					logger.Debug("Reconcile check failed", "payment_id", id, "error", err)
				}
			case status == models.StatusSuccess:
				res.Settled++
			}
		}(rec.ID)
	}
	wg.Wait()

	metrics.RecordReconcileRun(res.Checked, res.Settled, r.now().Sub(start))
	if res.Settled > 0 {
		logger.Info("Reconciled pending intents", "checked", res.Checked, "settled", res.Settled, "failed", res.Failed)
	}
	return res, ctx.Err()
}

// IsRunning reports whether Run is active
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
