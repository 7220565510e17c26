package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/internal/payments"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
)

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	service *payments.Service
	logger  *logger.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service *payments.Service, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  log,
	}
}

type paymentRequest struct {
	To          string            `json:"to"`
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Create handles POST /api/v1/payments
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.CreateCheckout(r.Context(), payments.Request{
		To:          req.To,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.logger.Error("checkout creation failed",
			zap.String("to", req.To),
			zap.Error(err),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// StripeWebhook handles POST /webhooks/stripe
func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := h.service.HandleStripeWebhook(r.Context(), body, r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.Warn("Stripe webhook rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
