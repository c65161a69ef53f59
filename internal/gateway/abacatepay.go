package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rajasatyajit/balanca-checkout/config"
	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/metrics"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

const abacatePayDefaultURL = "https://api.abacatepay.com"

// AbacatePay talks to the AbacatePay PIX QR code API. The API has shipped
// two incompatible schemas; schema selects which one is spoken.
type AbacatePay struct {
	client        *resty.Client
	schema        abacateSchema
	webhookSecret string
}

// abacateSchema is one version of the AbacatePay wire format
type abacateSchema interface {
	create(r *resty.Request, req CreateRequest) (*resty.Response, error)
	decodeCreate(body []byte) (*models.PaymentIntent, error)
	status(r *resty.Request, id string) (*resty.Response, error)
	decodeStatus(body []byte) (raw string, found bool, err error)
	statuses() StatusTable
}

// NewAbacatePay builds the adapter; cfg.APIKey is sent as a bearer token
func NewAbacatePay(cfg config.GatewayConfig) (*AbacatePay, error) {
	var schema abacateSchema
	switch cfg.Schema {
	case config.SchemaLegacy, "":
		schema = legacySchema{}
	case config.SchemaV1:
		schema = v1Schema{}
	default:
		return nil, fmt.Errorf("unknown abacatepay schema %q", cfg.Schema)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = abacatePayDefaultURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	return &AbacatePay{client: client, schema: schema, webhookSecret: cfg.WebhookSecret}, nil
}

func (a *AbacatePay) Name() string { return config.ProviderAbacatePay }

// CreateIntent issues exactly one upstream request
func (a *AbacatePay) CreateIntent(ctx context.Context, req CreateRequest) (*models.PaymentIntent, error) {
	start := time.Now()
	resp, err := a.schema.create(a.client.R().SetContext(ctx), req)
	if err != nil {
		metrics.RecordGatewayCall(a.Name(), "create", 0, time.Since(start))
		return nil, &apperrors.GatewayError{Provider: a.Name(), Operation: "create", Err: err}
	}
	metrics.RecordGatewayCall(a.Name(), "create", resp.StatusCode(), time.Since(start))
	if resp.IsError() {
		return nil, &apperrors.GatewayError{
			Provider:   a.Name(),
			Operation:  "create",
			StatusCode: resp.StatusCode(),
			Detail:     resp.String(),
			Err:        errors.New(resp.Status()),
		}
	}
	intent, err := a.schema.decodeCreate(resp.Body())
	if err != nil {
		return nil, &apperrors.GatewayError{
			Provider:   a.Name(),
			Operation:  "create",
			StatusCode: resp.StatusCode(),
			Detail:     resp.String(),
			Err:        err,
		}
	}
	return intent, nil
}

// GetStatus queries the charge and normalizes its status
func (a *AbacatePay) GetStatus(ctx context.Context, id string) (models.Status, error) {
	start := time.Now()
	resp, err := a.schema.status(a.client.R().SetContext(ctx), id)
	if err != nil {
		metrics.RecordGatewayCall(a.Name(), "status", 0, time.Since(start))
		return "", &apperrors.GatewayError{Provider: a.Name(), Operation: "status", Err: err}
	}
	metrics.RecordGatewayCall(a.Name(), "status", resp.StatusCode(), time.Since(start))
	if resp.StatusCode() == http.StatusNotFound {
		return "", &apperrors.NotFoundError{Resource: "payment", ID: id}
	}
	if resp.IsError() {
		return "", &apperrors.GatewayError{
			Provider:   a.Name(),
			Operation:  "status",
			StatusCode: resp.StatusCode(),
			Detail:     resp.String(),
			Err:        errors.New(resp.Status()),
		}
	}
	raw, found, err := a.schema.decodeStatus(resp.Body())
	if err != nil {
		return "", &apperrors.GatewayError{
			Provider:   a.Name(),
			Operation:  "status",
			StatusCode: resp.StatusCode(),
			Detail:     resp.String(),
			Err:        err,
		}
	}
	if !found {
		return "", &apperrors.NotFoundError{Resource: "payment", ID: id}
	}
	status, _ := a.schema.statuses().Normalize(raw)
	return status, nil
}

// ParseWebhook authenticates the webhookSecret query parameter and extracts
// the charge id from billing.paid / pix.paid events
func (a *AbacatePay) ParseWebhook(r *http.Request, body []byte) (*WebhookEvent, error) {
	secret := r.URL.Query().Get("webhookSecret")
	if a.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(a.webhookSecret)) != 1 {
		return nil, ErrInvalidSignature
	}
	var evt struct {
		Event string `json:"event"`
		Data  struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			PixQrCode *struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"pixQrCode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("decode abacatepay webhook: %w", err)
	}
	id, raw := evt.Data.ID, evt.Data.Status
	if evt.Data.PixQrCode != nil {
		id, raw = evt.Data.PixQrCode.ID, evt.Data.PixQrCode.Status
	}
	out := &WebhookEvent{Type: evt.Event, IntentID: id}
	switch evt.Event {
	case "billing.paid", "pix.paid":
		if raw == "" {
			raw = "PAID"
		}
		out.Status, _ = a.schema.statuses().Normalize(raw)
	default:
		out.Ignored = true
	}
	if id == "" && !out.Ignored {
		return nil, fmt.Errorf("abacatepay webhook %s without charge id", evt.Event)
	}
	return out, nil
}

type abacateCustomer struct {
	Name      string `json:"name"`
	Cellphone string `json:"cellphone"`
	Email     string `json:"email"`
	TaxID     string `json:"tax_id,omitempty"`
	TaxIDV1   string `json:"taxId,omitempty"`
}

type abacateMetadata struct {
	ExternalID string `json:"externalId"`
}

// legacySchema speaks /v1/pix-qrcodes with snake_case fields
type legacySchema struct{}

func (legacySchema) create(r *resty.Request, req CreateRequest) (*resty.Response, error) {
	payload := struct {
		Amount      int64           `json:"amount"`
		ExpiresIn   int64           `json:"expires_in"`
		Description string          `json:"description"`
		Customer    abacateCustomer `json:"customer"`
		Metadata    abacateMetadata `json:"metadata"`
	}{
		Amount:      req.AmountCents,
		ExpiresIn:   int64(req.ExpiresIn.Seconds()),
		Description: req.Description,
		Customer: abacateCustomer{
			Name:      req.Customer.Name,
			Cellphone: req.Customer.Phone,
			Email:     req.Customer.Email,
			TaxID:     req.Customer.CPF,
		},
		Metadata: abacateMetadata{ExternalID: req.ExternalID},
	}
	return r.SetBody(payload).Post("/v1/pix-qrcodes")
}

func (legacySchema) decodeCreate(body []byte) (*models.PaymentIntent, error) {
	var out struct {
		ID           string `json:"id"`
		QRCodeBase64 string `json:"qr_code_base64"`
		QRCodeText   string `json:"qr_code_text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	if out.ID == "" || out.QRCodeBase64 == "" || out.QRCodeText == "" {
		return nil, errors.New("create response missing id or qr code")
	}
	return &models.PaymentIntent{ID: out.ID, QRCode: ImageDataURI(out.QRCodeBase64), CopiaECola: out.QRCodeText}, nil
}

func (legacySchema) status(r *resty.Request, id string) (*resty.Response, error) {
	return r.SetPathParam("id", id).Get("/v1/pix-qrcodes/{id}")
}

func (legacySchema) decodeStatus(body []byte) (string, bool, error) {
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, fmt.Errorf("decode status response: %w", err)
	}
	return out.Status, out.ID != "" || out.Status != "", nil
}

func (legacySchema) statuses() StatusTable { return abacateLegacyStatuses }

// v1Schema speaks /v1/pixQrCode with camelCase fields and a data/error envelope
type v1Schema struct{}

type v1Envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *string         `json:"error"`
}

func (e v1Envelope) unwrap(v any) (bool, error) {
	if e.Error != nil && *e.Error != "" {
		return false, errors.New(*e.Error)
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return false, nil
	}
	return true, json.Unmarshal(e.Data, v)
}

func (v1Schema) create(r *resty.Request, req CreateRequest) (*resty.Response, error) {
	payload := struct {
		Amount      int64           `json:"amount"`
		ExpiresIn   int64           `json:"expiresIn"`
		Description string          `json:"description"`
		Customer    abacateCustomer `json:"customer"`
		Metadata    abacateMetadata `json:"metadata"`
	}{
		Amount:      req.AmountCents,
		ExpiresIn:   int64(req.ExpiresIn.Seconds()),
		Description: req.Description,
		Customer: abacateCustomer{
			Name:      req.Customer.Name,
			Cellphone: req.Customer.Phone,
			Email:     req.Customer.Email,
			TaxIDV1:   req.Customer.CPF,
		},
		Metadata: abacateMetadata{ExternalID: req.ExternalID},
	}
	return r.SetBody(payload).Post("/v1/pixQrCode/create")
}

func (v1Schema) decodeCreate(body []byte) (*models.PaymentIntent, error) {
	var env v1Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	var data struct {
		ID           string `json:"id"`
		BrCode       string `json:"brCode"`
		BrCodeBase64 string `json:"brCodeBase64"`
	}
	ok, err := env.unwrap(&data)
	if err != nil {
		return nil, err
	}
	if !ok || data.ID == "" || data.BrCode == "" || data.BrCodeBase64 == "" {
		return nil, errors.New("create response missing id or qr code")
	}
	return &models.PaymentIntent{ID: data.ID, QRCode: ImageDataURI(data.BrCodeBase64), CopiaECola: data.BrCode}, nil
}

func (v1Schema) status(r *resty.Request, id string) (*resty.Response, error) {
	return r.SetQueryParam("id", id).Get("/v1/pixQrCode/check")
}

func (v1Schema) decodeStatus(body []byte) (string, bool, error) {
	var env v1Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", false, fmt.Errorf("decode status response: %w", err)
	}
	var data struct {
		Status string `json:"status"`
	}
	ok, err := env.unwrap(&data)
	if err != nil {
		return "", false, err
	}
	return data.Status, ok, nil
}

func (v1Schema) statuses() StatusTable { return abacateV1Statuses }
