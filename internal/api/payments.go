package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/rajasatyajit/balanca-checkout/internal/errors"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/models"
)

// Buyer-facing messages
const (
	MsgCreateFailed    = "Erro ao gerar o PIX."
	MsgGatewayDetails  = "Falha na comunicação com o provedor de pagamento."
	MsgInvalidBody     = "Corpo da requisição inválido."
	MsgInvalidFields   = "Verifique os dados informados."
	MsgNotFound        = "Pagamento não encontrado."
	MsgStatusFailed    = "Erro ao verificar o status do pagamento."
	maxCreateBodyBytes = 16 << 10
)

// createPaymentHandler handles POST /create-payment
func (h *Handler) createPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var buyer models.BuyerInfo
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&buyer); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, ErrorResponse{Error: MsgInvalidBody})
		return
	}

	intent, err := h.payments.CreateIntent(r.Context(), buyer)
	if err != nil {
		var verr apperrors.ValidationError
		var fe apperrors.FieldErrors
		switch {
		case errors.As(err, &verr):
			h.writeErrorResponse(w, r, http.StatusBadRequest, ErrorResponse{Error: verr.Message})
		case errors.As(err, &fe):
			h.writeErrorResponse(w, r, http.StatusBadRequest, ErrorResponse{Error: MsgInvalidFields, Fields: fe})
		default:
			// upstream detail stays in the logs
			h.writeErrorResponse(w, r, http.StatusInternalServerError, ErrorResponse{Error: MsgCreateFailed, Details: MsgGatewayDetails})
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.writeJSONResponse(w, http.StatusCreated, intent)
}

// paymentStatusHandler handles GET /payment-status/{id}
func (h *Handler) paymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeErrorResponse(w, r, http.StatusNotFound, ErrorResponse{Error: MsgNotFound})
		return
	}

	status, err := h.payments.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeErrorResponse(w, r, http.StatusNotFound, ErrorResponse{Error: MsgNotFound})
			return
		}
		if !errors.Is(err, apperrors.ErrGateway) {
			logger.WithContext(r.Context()).Error("Status check failed", "error", err, "payment_id", id)
		}
		h.writeErrorResponse(w, r, http.StatusInternalServerError, ErrorResponse{Error: MsgStatusFailed})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.writeJSONResponse(w, http.StatusOK, map[string]models.Status{"status": status})
}
