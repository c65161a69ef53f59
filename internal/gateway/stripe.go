package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/rajasatyajit/balanca-checkout/config"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/metrics"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

const qrImageSize = 256

// Stripe charges through PaymentIntents confirmed with the pix payment method
type Stripe struct {
	intents       *paymentintent.Client
	webhookSecret string
}

// NewStripe builds a Stripe adapter with its own backend so the API key
// never touches the stripe package globals
func NewStripe(cfg config.GatewayConfig) *Stripe {
	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.BaseURL != "" {
		bc.URL = stripe.String(cfg.BaseURL)
	}
	return &Stripe{
		intents:       &paymentintent.Client{B: stripe.GetBackendWithConfig(stripe.APIBackend, bc), Key: cfg.APIKey},
		webhookSecret: cfg.WebhookSecret,
	}
}

func (s *Stripe) Name() string { return config.ProviderStripe }

func (s *Stripe) CreateIntent(ctx context.Context, req CreateRequest) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountCents),
		Currency:           stripe.String("brl"),
		PaymentMethodTypes: stripe.StringSlice([]string{"pix"}),
		Confirm:            stripe.Bool(true),
		Description:        stripe.String(req.Description),
		ReceiptEmail:       stripe.String(req.Customer.Email),
	}
	params.Context = ctx
	params.AddExtra("payment_method_data[type]", "pix")
	params.AddExtra("payment_method_data[billing_details][name]", req.Customer.Name)
	params.AddExtra("payment_method_data[billing_details][email]", req.Customer.Email)
	params.AddExtra("payment_method_data[billing_details][phone]", req.Customer.Phone)
	params.AddExtra("payment_method_data[billing_details][tax_id]", req.Customer.CPF)
	if req.ExpiresIn > 0 {
		params.AddExtra("payment_method_options[pix][expires_after_seconds]", fmt.Sprintf("%d", int64(req.ExpiresIn.Seconds())))
	}
	params.AddMetadata("external_id", req.ExternalID)
	params.SetIdempotencyKey(req.ExternalID)

	start := time.Now()
	pi, err := s.intents.New(params)
	metrics.RecordGatewayCall(s.Name(), "create", stripeStatusCode(err), time.Since(start))
	if err != nil {
		return nil, s.wrap("create", err)
	}

	code, err := pixQRData(pi)
	if err != nil {
		return nil, &apperrors.GatewayError{Provider: s.Name(), Operation: "create", Err: err}
	}
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, &apperrors.GatewayError{Provider: s.Name(), Operation: "create", Err: fmt.Errorf("render qr code: %w", err)}
	}
	return &models.PaymentIntent{ID: pi.ID, QRCode: PNGDataURI(png), CopiaECola: code}, nil
}

func (s *Stripe) GetStatus(ctx context.Context, id string) (models.Status, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	start := time.Now()
	pi, err := s.intents.Get(id, params)
	metrics.RecordGatewayCall(s.Name(), "status", stripeStatusCode(err), time.Since(start))
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && (serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripe.ErrorCodeResourceMissing) {
			return "", &apperrors.NotFoundError{Resource: "payment", ID: id}
		}
		return "", s.wrap("status", err)
	}
	status, _ := stripeStatuses.Normalize(string(pi.Status))
	return status, nil
}

// ParseWebhook verifies the Stripe-Signature header and maps payment_intent events
func (s *Stripe) ParseWebhook(r *http.Request, body []byte) (*WebhookEvent, error) {
	if s.webhookSecret == "" {
		return nil, ErrInvalidSignature
	}
	evt, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &WebhookEvent{Type: string(evt.Type)}
	switch evt.Type {
	case "payment_intent.succeeded", "payment_intent.processing", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
		out.Status, _ = stripeStatuses.Normalize(string(pi.Status))
	default:
		out.Ignored = true
	}
	return out, nil
}

func (s *Stripe) wrap(op string, err error) error {
	gerr := &apperrors.GatewayError{Provider: s.Name(), Operation: op, Err: err}
	var serr *stripe.Error
	if errors.As(err, &serr) {
		gerr.StatusCode = serr.HTTPStatusCode
		gerr.Detail = serr.Msg
	}
	return gerr
}

func stripeStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return serr.HTTPStatusCode
	}
	return 0
}

// pixQRData reads next_action.pix_display_qr_code.data from the raw response
func pixQRData(pi *stripe.PaymentIntent) (string, error) {
	if pi.LastResponse == nil {
		return "", errors.New("payment intent response missing")
	}
	var raw struct {
		NextAction *struct {
			PixDisplayQRCode *struct {
				Data string `json:"data"`
			} `json:"pix_display_qr_code"`
		} `json:"next_action"`
	}
	if err := json.Unmarshal(pi.LastResponse.RawJSON, &raw); err != nil {
		return "", fmt.Errorf("decode payment intent: %w", err)
	}
	if raw.NextAction == nil || raw.NextAction.PixDisplayQRCode == nil || raw.NextAction.PixDisplayQRCode.Data == "" {
		return "", errors.New("payment intent has no pix qr code")
	}
	return raw.NextAction.PixDisplayQRCode.Data, nil
}
