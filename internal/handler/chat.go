package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/internal/agent"
	"github.com/capitalize-ai/whatsapp-platform/internal/middleware"
	"github.com/capitalize-ai/whatsapp-platform/internal/model"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
)

// ChatHandler handles conversational agent endpoints.
type ChatHandler struct {
	agent  *agent.Agent
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(ag *agent.Agent, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		agent:  ag,
		logger: log,
	}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.agent.Chat(r.Context(), req)
	if err != nil {
		if errors.Is(err, agent.ErrInvalidSender) || errors.Is(err, agent.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("chat failed",
			zap.String("from", req.From),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "completion failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetContext handles GET /api/v1/chat/{userId}/context
func (h *ChatHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	turns := h.agent.Context(userID)
	if turns == nil {
		turns = []model.Turn{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"turns":   turns,
	})
}

// ClearContext handles DELETE /api/v1/chat/{userId}/context
func (h *ChatHandler) ClearContext(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.agent.ClearContext(userID)
	w.WriteHeader(http.StatusNoContent)
}
