// Package gateway isolates the upstream PIX gateways behind one narrow
// interface. Gateway-specific field names and status vocabularies never
// leave this package.
package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rajasatyajit/balanca-checkout/config"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// ErrInvalidSignature is returned when a webhook cannot be authenticated
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Gateway creates PIX charges and reports their settlement status
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req CreateRequest) (*models.PaymentIntent, error)
	GetStatus(ctx context.Context, id string) (models.Status, error)
}

// WebhookParser is implemented by gateways that push settlement events
type WebhookParser interface {
	ParseWebhook(r *http.Request, body []byte) (*WebhookEvent, error)
}

// CreateRequest carries one charge. Customer must already be normalized.
type CreateRequest struct {
	AmountCents int64
	ExpiresIn   time.Duration
	Description string
	ExternalID  string
	Customer    models.BuyerInfo
}

// WebhookEvent is the provider-neutral view of a settlement notification.
// Ignored is set for events that carry no settlement information.
type WebhookEvent struct {
	Type     string
	IntentID string
	Status   models.Status
	Ignored  bool
}

// New builds the gateway selected by cfg, throttled to cfg.RPS
func New(cfg config.GatewayConfig) (Gateway, error) {
	var g Gateway
	switch cfg.Provider {
	case config.ProviderAbacatePay:
		a, err := NewAbacatePay(cfg)
		if err != nil {
			return nil, err
		}
		g = a
	case config.ProviderStripe:
		g = NewStripe(cfg)
	case config.ProviderSandbox:
		g = NewSandbox(cfg.SandboxPolls)
	default:
		return nil, fmt.Errorf("unknown gateway provider %q", cfg.Provider)
	}
	return Throttle(g, cfg.RPS), nil
}

// AsWebhookParser unwraps g until it finds a WebhookParser
func AsWebhookParser(g Gateway) (WebhookParser, bool) {
	for g != nil {
		if p, ok := g.(WebhookParser); ok {
			return p, true
		}
		u, ok := g.(interface{ Unwrap() Gateway })
		if !ok {
			return nil, false
		}
		g = u.Unwrap()
	}
	return nil, false
}

const pngDataURIPrefix = "data:image/png;base64,"

// ImageDataURI turns a base64 PNG payload into an embeddable data URI.
// Payloads that already are data URIs pass through unchanged.
func ImageDataURI(b64 string) string {
	if strings.HasPrefix(b64, "data:") {
		return b64
	}
	return pngDataURIPrefix + b64
}

// PNGDataURI encodes raw PNG bytes as a data URI
func PNGDataURI(png []byte) string {
	return pngDataURIPrefix + base64.StdEncoding.EncodeToString(png)
}
