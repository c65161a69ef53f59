package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rajasatyajit/balanca-checkout/internal/gateway"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
	"github.com/rajasatyajit/balanca-checkout/internal/store"
)

// Payments is the proxy service behind the HTTP surface
type Payments interface {
	CreateIntent(ctx context.Context, buyer models.BuyerInfo) (*models.PaymentIntent, error)
	GetStatus(ctx context.Context, id string) (models.Status, error)
	ApplyWebhook(ctx context.Context, evt *gateway.WebhookEvent)
	Provider() string
}

// Handler handles HTTP requests for the API
type Handler struct {
	payments    Payments
	store       store.Store
	webhooks    gateway.WebhookParser
	limitCreate func(http.Handler) http.Handler
	version     string
	buildTime   string
	gitCommit   string
	startTime   time.Time
}

// NewHandler creates a new API handler. webhooks may be nil when the
// configured gateway does not push events.
func NewHandler(payments Payments, st store.Store, webhooks gateway.WebhookParser, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		payments:  payments,
		store:     st,
		webhooks:  webhooks,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// WithCreateLimit guards POST /create-payment with mw
func (h *Handler) WithCreateLimit(mw func(http.Handler) http.Handler) *Handler {
	h.limitCreate = mw
	return h
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	create := r
	if h.limitCreate != nil {
		create = r.With(h.limitCreate)
	}
	create.Post("/create-payment", h.createPaymentHandler)
	r.Get("/payment-status/{id}", h.paymentStatusHandler)
	r.Post("/webhooks/{provider}", h.webhookHandler)

	// Health check endpoints
	r.Get("/health", h.healthHandler)
	r.Get("/health/ready", h.readinessHandler)
	r.Get("/health/live", h.livenessHandler)

	// System info
	r.Get("/version", h.versionHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store":   "ok",
		"gateway": h.payments.Provider(),
	}

	statusCode := http.StatusOK
	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}
	if statusCode != http.StatusOK {
		response["status"] = "not_ready"
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes the error shape the checkout page reads: error
// is always a message fit to show the buyer
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, resp ErrorResponse) {
	resp.RequestID = middleware.GetReqID(r.Context())
	h.writeJSONResponse(w, statusCode, resp)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string            `json:"error"`
	Details   string            `json:"details,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}
