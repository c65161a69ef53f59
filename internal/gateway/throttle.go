package gateway

import (
	"context"

	"golang.org/x/time/rate"

	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// throttled bounds the request rate towards the upstream gateway
type throttled struct {
	next    Gateway
	limiter *rate.Limiter
}

// Throttle wraps g so that at most rps calls per second reach it
func Throttle(g Gateway, rps float64) Gateway {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &throttled{next: g, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *throttled) Name() string { return t.next.Name() }

func (t *throttled) Unwrap() Gateway { return t.next }

func (t *throttled) CreateIntent(ctx context.Context, req CreateRequest) (*models.PaymentIntent, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &apperrors.GatewayError{Provider: t.Name(), Operation: "create", Err: err}
	}
	return t.next.CreateIntent(ctx, req)
}

func (t *throttled) GetStatus(ctx context.Context, id string) (models.Status, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", &apperrors.GatewayError{Provider: t.Name(), Operation: "status", Err: err}
	}
	return t.next.GetStatus(ctx, id)
}
