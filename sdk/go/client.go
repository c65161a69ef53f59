// Package sdk is a client for the checkout payment proxy. *Client satisfies
// checkout.Proxy, so a checkout.Session can drive a real deployment.
package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// Messages used when the proxy answers without a usable error body
const (
	FallbackCreateMessage = "Falha ao criar o pagamento PIX."
	FallbackStatusMessage = "Falha ao verificar status do pagamento."
)

type Client struct {
	BaseURL string
	http    *resty.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:4000"
	}
	return &Client{
		BaseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(20*time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// WithHTTPClient swaps the transport, mostly for tests
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = resty.NewWithClient(hc).SetBaseURL(c.BaseURL).SetHeader("Accept", "application/json")
	return c
}

// APIError is a non-2xx answer from the proxy. Message is fit to show the buyer.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
	Fields     map[string]string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("checkout api: %d %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("checkout api: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case apperrors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case apperrors.ErrInvalidInput:
		return e.StatusCode == http.StatusBadRequest
	case apperrors.ErrRateLimit:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

type errorBody struct {
	Error     string            `json:"error"`
	Details   string            `json:"details"`
	Fields    map[string]string `json:"fields"`
	RequestID string            `json:"request_id"`
}

// apiError keeps the proxy's message when the body carried one; an
// unparseable body still yields the fallback
func apiError(resp *resty.Response, fallback string) *APIError {
	e := &APIError{StatusCode: resp.StatusCode(), Message: fallback}
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		if body.Error != "" {
			e.Message = body.Error
		}
		e.Details = body.Details
		e.Fields = body.Fields
		e.RequestID = body.RequestID
	}
	return e
}

// CreatePayment issues a PIX charge for buyer
func (c *Client) CreatePayment(ctx context.Context, buyer models.BuyerInfo) (*models.PaymentIntent, error) {
	var out models.PaymentIntent
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(buyer).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/create-payment")
	if resp != nil && resp.IsError() {
		return nil, apiError(resp, FallbackCreateMessage)
	}
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if out.ID == "" {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: FallbackCreateMessage, Details: "response without paymentId"}
	}
	return &out, nil
}

// PaymentStatus reports PENDING or SUCCESS for id
func (c *Client) PaymentStatus(ctx context.Context, id string) (models.Status, error) {
	var out struct {
		Status models.Status `json:"status"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/payment-status/" + url.PathEscape(id))
	if resp != nil && resp.IsError() {
		return "", apiError(resp, FallbackStatusMessage)
	}
	if err != nil {
		return "", fmt.Errorf("payment status: %w", err)
	}
	if !out.Status.Valid() {
		return "", &APIError{StatusCode: resp.StatusCode(), Message: FallbackStatusMessage, Details: fmt.Sprintf("unexpected status %q", out.Status)}
	}
	return out.Status, nil
}
