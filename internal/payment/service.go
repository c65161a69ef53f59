// Package payment is the proxy between the checkout and the PIX gateway.
// It validates buyer data, issues exactly one upstream charge per request and
// reports settlement as PENDING or SUCCESS.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rajasatyajit/balanca-checkout/config"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/gateway"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/metrics"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
	"github.com/rajasatyajit/balanca-checkout/internal/store"
	"github.com/rajasatyajit/balanca-checkout/pkg/utils"
)

// MsgMissingFields is the client-facing message for absent buyer fields
const MsgMissingFields = "Todos os campos são obrigatórios."

// Service creates PIX intents and answers status polls
type Service struct {
	gw    gateway.Gateway
	store store.Store
	cfg   config.PaymentConfig

	polls singleflight.Group

	now           func() time.Time
	newExternalID func() string
}

func NewService(gw gateway.Gateway, st store.Store, cfg config.PaymentConfig) *Service {
	s := &Service{gw: gw, store: st, cfg: cfg, now: time.Now}
	s.newExternalID = s.externalID
	return s
}

// Provider names the configured gateway
func (s *Service) Provider() string { return s.gw.Name() }

// CreateIntent validates buyer, forwards one charge upstream and records it
func (s *Service) CreateIntent(ctx context.Context, buyer models.BuyerInfo) (*models.PaymentIntent, error) {
	if missing := buyer.MissingFields(); len(missing) > 0 {
		metrics.RecordIntentCreated(s.Provider(), "invalid")
		return nil, apperrors.ValidationError{Field: strings.Join(missing, ","), Message: MsgMissingFields}
	}
	if err := buyer.Validate(); err != nil {
		metrics.RecordIntentCreated(s.Provider(), "invalid")
		return nil, err
	}
	buyer = buyer.Normalized()

	req := gateway.CreateRequest{
		AmountCents: s.cfg.AmountCents,
		ExpiresIn:   s.cfg.ExpiresIn,
		Description: s.cfg.Description,
		ExternalID:  s.newExternalID(),
		Customer:    buyer,
	}
	log := logger.WithContext(ctx)
	log.Info("Creating PIX intent",
		"provider", s.Provider(),
		"external_id", req.ExternalID,
		"email", utils.MaskEmail(buyer.Email),
		"phone", utils.MaskDigits(buyer.Phone, 4),
		"cpf_fp", utils.Fingerprint(buyer.CPF),
	)

	intent, err := s.gw.CreateIntent(ctx, req)
	if err != nil {
		metrics.RecordIntentCreated(s.Provider(), "error")
		attrs := []any{"error", err, "external_id", req.ExternalID}
		var gerr *apperrors.GatewayError
		if errors.As(err, &gerr) {
			attrs = append(attrs, "upstream_status", gerr.StatusCode, "upstream_body", gerr.Detail)
		}
		log.Error("PIX intent creation failed", attrs...)
		return nil, err
	}

	rec := models.IntentRecord{
		ID:          intent.ID,
		Provider:    s.Provider(),
		ExternalID:  req.ExternalID,
		AmountCents: req.AmountCents,
		BuyerEmail:  buyer.Email,
		Status:      models.StatusPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.SaveIntent(ctx, rec); err != nil {
		log.Error("Failed to record intent", "error", err, "payment_id", intent.ID)
	}

	metrics.RecordIntentCreated(s.Provider(), "created")
	log.Info("PIX intent created", "payment_id", intent.ID, "external_id", req.ExternalID)
	return intent, nil
}

// GetStatus reports PENDING or SUCCESS for id. Concurrent polls for the same
// id share one upstream request.
func (s *Service) GetStatus(ctx context.Context, id string) (models.Status, error) {
	ctx = logger.WithIntentID(ctx, id)

	if rec, err := s.store.GetIntent(ctx, id); err == nil && rec.Status == models.StatusSuccess {
		metrics.RecordStatusPoll(s.Provider(), "success_cached")
		return models.StatusSuccess, nil
	} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logger.WithContext(ctx).Warn("Intent store lookup failed", "error", err)
	}

	ch := s.polls.DoChan(id, func() (interface{}, error) {
		return s.pollUpstream(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(models.Status), nil
	}
}

func (s *Service) pollUpstream(ctx context.Context, id string) (models.Status, error) {
	log := logger.WithContext(ctx)
	status, err := s.gw.GetStatus(ctx, id)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		metrics.RecordStatusPoll(s.Provider(), "not_found")
		log.Info("Payment not found upstream")
		return "", err
	case err != nil:
		metrics.RecordStatusPoll(s.Provider(), "error")
		attrs := []any{"error", err}
		var gerr *apperrors.GatewayError
		if errors.As(err, &gerr) {
			attrs = append(attrs, "upstream_status", gerr.StatusCode, "upstream_body", gerr.Detail)
		}
		log.Error("Payment status check failed", attrs...)
		return "", err
	}

	metrics.RecordStatusPoll(s.Provider(), strings.ToLower(string(status)))
	if status == models.StatusSuccess {
		s.markPaid(ctx, id)
	}
	log.Debug("Payment status checked", "status", status)
	return status, nil
}

// ApplyWebhook records a settlement pushed by the gateway
func (s *Service) ApplyWebhook(ctx context.Context, evt *gateway.WebhookEvent) {
	ctx = logger.WithIntentID(ctx, evt.IntentID)
	if evt.Ignored || evt.Status != models.StatusSuccess {
		logger.WithContext(ctx).Debug("Webhook event carries no settlement", "type", evt.Type)
		return
	}
	s.markPaid(ctx, evt.IntentID)
}

func (s *Service) markPaid(ctx context.Context, id string) {
	err := s.store.MarkPaid(ctx, id, s.now())
	switch {
	case err == nil:
		logger.WithContext(ctx).Info("Payment confirmed")
	case errors.Is(err, apperrors.ErrNotFound):
		// issued by another instance or before a restart with the memory store
		logger.WithContext(ctx).Warn("Confirmed payment has no intent record")
	default:
		logger.WithContext(ctx).Error("Failed to record payment confirmation", "error", err)
	}
}

// externalID is time ordered so gateway dashboards sort by creation
func (s *Service) externalID() string {
	prefix := s.cfg.ExternalIDPrefix
	if prefix == "" {
		prefix = "balanca-web"
	}
	id, err := uuid.NewV7()
	if err != nil {
		return prefix + "-" + uuid.NewString()
	}
	return prefix + "-" + id.String()
}
