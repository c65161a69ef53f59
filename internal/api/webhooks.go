package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rajasatyajit/balanca-checkout/internal/gateway"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
)

const maxWebhookBodyBytes = 1 << 20

// webhookHandler handles POST /webhooks/{provider}
func (h *Handler) webhookHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if h.webhooks == nil || provider != h.payments.Provider() {
		h.writeErrorResponse(w, r, http.StatusNotFound, ErrorResponse{Error: "unknown webhook provider"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
		return
	}

	log := logger.WithContext(r.Context())
	evt, err := h.webhooks.ParseWebhook(r, payload)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			log.Warn("Rejected webhook with invalid signature", "provider", provider)
			h.writeErrorResponse(w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid signature"})
			return
		}
		log.Warn("Rejected malformed webhook", "provider", provider, "error", err)
		h.writeErrorResponse(w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid payload"})
		return
	}

	log.Info("Webhook received", "provider", provider, "type", evt.Type, "payment_id", evt.IntentID)
	h.payments.ApplyWebhook(r.Context(), evt)
	h.writeJSONResponse(w, http.StatusOK, map[string]bool{"received": true})
}
