package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/internal/agent"
	"github.com/capitalize-ai/whatsapp-platform/internal/webhook"
	"github.com/capitalize-ai/whatsapp-platform/internal/workflow"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
)

const maxWebhookBody = 1 << 20 // 1MB

// WebhookHandler receives inbound WhatsApp webhooks.
type WebhookHandler struct {
	engine    *workflow.Engine
	agent     *agent.Agent // nil disables auto-reply
	appSecret string
	logger    *logger.Logger
}

// NewWebhookHandler creates a webhook handler. An empty appSecret disables
// signature verification; a nil agent disables auto-reply.
func NewWebhookHandler(engine *workflow.Engine, ag *agent.Agent, appSecret string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		engine:    engine,
		agent:     ag,
		appSecret: appSecret,
		logger:    log,
	}
}

// Receive handles POST /webhooks/whatsapp. The raw body is read before any
// decoding so the signature covers the exact bytes on the wire. Processing
// failures after a verified, well-formed payload are logged but acknowledged
// with 200 so the provider does not redeliver.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if h.appSecret != "" {
		signature := r.Header.Get("X-Hub-Signature-256")
		if !webhook.VerifySignature(h.appSecret, body, signature) {
			h.logger.Warn("webhook signature rejected",
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.engine.HandleWebhook(r.Context(), payload); err != nil {
		h.logger.Error("webhook handler failed", zap.Error(err))
	}

	if h.agent != nil {
		if err := h.agent.HandleWebhook(r.Context(), payload); err != nil {
			h.logger.Error("auto-reply failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
