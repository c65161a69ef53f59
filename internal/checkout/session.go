// Package checkout drives one buyer through the PIX checkout: form
// validation, intent creation and status polling until the payment settles.
//
// A Session runs at most one worker goroutine. The worker creates the intent
// and then polls sequentially, so no poll is issued before creation resolves
// and at most one poll is in flight. Every worker carries the generation it
// was started for; results from a superseded generation are discarded.
package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// DefaultPollInterval matches the cadence the checkout page has always used
const DefaultPollInterval = 3 * time.Second

var (
	// ErrNotInForm is returned by Submit outside the Form state
	ErrNotInForm = errors.New("checkout: session is not accepting a submission")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("checkout: session closed")
	// ErrExpired is the cause recorded when MaxPending elapses
	ErrExpired = errors.New("checkout: payment window elapsed")
)

// Proxy is the payment proxy as seen from the checkout
type Proxy interface {
	CreatePayment(ctx context.Context, buyer models.BuyerInfo) (*models.PaymentIntent, error)
	PaymentStatus(ctx context.Context, id string) (models.Status, error)
}

// Options tunes a Session. Zero values select the defaults.
type Options struct {
	PollInterval time.Duration
	// MaxPending bounds how long Pending may last; zero waits indefinitely
	MaxPending time.Duration
}

// Snapshot is an immutable view of a session
type Snapshot struct {
	State       State
	Intent      *models.PaymentIntent
	FieldErrors map[string]string
	Narrative   Narrative
	// Err records why the session ended in Error or Expired. The narrative
	// stays generic regardless of cause.
	Err error
}

// Session is one checkout attempt. It is safe for concurrent use.
type Session struct {
	proxy Proxy
	opts  Options

	mu          sync.Mutex
	state       State
	intent      *models.PaymentIntent
	fieldErrors apperrors.FieldErrors
	err         error
	closed      bool

	// generation is the liveness token; bumped whenever the running worker
	// is superseded
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}

	subs    map[int]chan Snapshot
	nextSub int
}

func NewSession(proxy Proxy, opts Options) *Session {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Session{proxy: proxy, opts: opts, state: StateForm, subs: make(map[int]chan Snapshot)}
}

// Snapshot returns the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state, Narrative: NarrativeFor(s.state), Err: s.err}
	if s.state == StatePending && s.intent != nil {
		intent := *s.intent
		snap.Intent = &intent
	}
	if len(s.fieldErrors) > 0 {
		snap.FieldErrors = make(map[string]string, len(s.fieldErrors))
		for k, v := range s.fieldErrors {
			snap.FieldErrors[k] = v
		}
	}
	return snap
}

// Subscribe delivers a snapshot after every transition. Slow readers only
// miss intermediate snapshots; the latest one is always kept. The returned
// func unsubscribes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 8)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Session) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// drop the oldest so the newest transition is never lost
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Submit validates buyer and, when valid, starts intent creation. Invalid
// input keeps the session in Form with per-field errors and makes no call.
func (s *Session) Submit(buyer models.BuyerInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StateForm {
		return ErrNotInForm
	}
	if err := buyer.Validate(); err != nil {
		var fe apperrors.FieldErrors
		if errors.As(err, &fe) {
			s.fieldErrors = fe
		}
		s.publishLocked()
		return err
	}

	s.fieldErrors = nil
	s.err = nil
	s.state = StateGenerating
	s.generation++

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.generation, buyer, s.done)

	s.publishLocked()
	return nil
}

// run creates the intent and polls until a terminal state or cancellation
func (s *Session) run(ctx context.Context, gen uint64, buyer models.BuyerInfo, done chan struct{}) {
	defer close(done)
	log := logger.WithContext(ctx)

	intent, err := s.proxy.CreatePayment(ctx, buyer)
	if err != nil {
		log.Warn("Checkout could not create payment", "error", err)
		s.finish(gen, StateError, err)
		return
	}
	if !s.apply(gen, func() {
		s.intent = intent
		s.state = StatePending
	}) {
		return
	}

	var deadline <-chan time.Time
	if s.opts.MaxPending > 0 {
		t := time.NewTimer(s.opts.MaxPending)
		defer t.Stop()
		deadline = t.C
	}

	ticker := time.NewTimer(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			s.finish(gen, StateExpired, ErrExpired)
			return
		case <-ticker.C:
		}

		status, err := s.proxy.PaymentStatus(ctx, intent.ID)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err != nil:
			log.Warn("Checkout status poll failed", "error", err, "payment_id", intent.ID)
			s.finish(gen, StateError, err)
			return
		case status == models.StatusSuccess:
			s.finish(gen, StateSuccess, nil)
			return
		}
		ticker.Reset(s.opts.PollInterval)
	}
}

// apply runs mutate and publishes, unless gen has been superseded
func (s *Session) apply(gen uint64, mutate func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.closed {
		return false
	}
	mutate()
	s.publishLocked()
	return true
}

func (s *Session) finish(gen uint64, state State, cause error) {
	s.apply(gen, func() {
		s.state = state
		s.err = cause
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Reset abandons the current attempt and returns to Form. Any in-flight
// request is cancelled and Reset waits for the worker to exit.
func (s *Session) Reset() {
	s.mu.Lock()
	done := s.stopLocked()
	if !s.closed {
		s.state = StateForm
		s.intent = nil
		s.fieldErrors = nil
		s.err = nil
		s.publishLocked()
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Close stops the session for good; subscriber channels are closed
func (s *Session) Close() {
	s.mu.Lock()
	done := s.stopLocked()
	if !s.closed {
		s.closed = true
		for id, ch := range s.subs {
			close(ch)
			delete(s.subs, id)
		}
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// stopLocked invalidates the running worker and returns its done channel
func (s *Session) stopLocked() chan struct{} {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	done := s.done
	s.done = nil
	return done
}

// Wait blocks until the session reaches a terminal state
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	if snap := s.Snapshot(); snap.State.Terminal() {
		return snap, nil
	}
	for {
		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return s.Snapshot(), ErrClosed
			}
			if snap.State.Terminal() {
				return snap, nil
			}
		}
	}
}
