package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/whatsapp-platform/internal/agent"
	"github.com/capitalize-ai/whatsapp-platform/internal/llm"
	"github.com/capitalize-ai/whatsapp-platform/internal/model"
	"github.com/capitalize-ai/whatsapp-platform/internal/store"
	"github.com/capitalize-ai/whatsapp-platform/internal/whatsapp"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
)

type stubLLM struct {
	err error
}

func (s *stubLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: "stub reply", Model: "stub-model", TotalTokens: 7}, nil
}

func (s *stubLLM) Name() string { return "stub" }

type nopSender struct{}

func (nopSender) SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error) {
	return &whatsapp.SendResponse{MessageID: "wamid.stub"}, nil
}

func newChatRouter(t *testing.T) (*chi.Mux, *agent.Agent) {
	t.Helper()
	ag := agent.New(&stubLLM{}, nopSender{}, store.NewContextStore(), agent.Config{}, logger.NewNop())
	h := NewChatHandler(ag, logger.NewNop())

	r := chi.NewRouter()
	r.Post("/api/v1/chat", h.Chat)
	r.Get("/api/v1/chat/{userId}/context", h.GetContext)
	r.Delete("/api/v1/chat/{userId}/context", h.ClearContext)
	return r, ag
}

func TestChatEndpoint(t *testing.T) {
	r, _ := newChatRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"from": "+15551234567", "message": "hello"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "stub reply", resp.Message)
	assert.Equal(t, "stub-model", resp.Model)
	assert.Equal(t, 7, resp.TokensUsed)
}

func TestChatEndpointValidation(t *testing.T) {
	r, _ := newChatRouter(t)

	for _, body := range []string{
		`{not json`,
		`{"from": "+15551234567", "message": "   "}`,
		`{"from": "  ", "message": "hello"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestChatContextRoundTrip(t *testing.T) {
	r, _ := newChatRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"from": "u1", "message": "hello"}`))
	r.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chat/u1/context", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserID string       `json:"user_id"`
		Turns  []model.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.UserID)
	require.Len(t, resp.Turns, 2)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/chat/u1/context", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chat/u1/context", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Turns)
}

func TestChatContextUnknownUserIsEmpty(t *testing.T) {
	r, _ := newChatRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chat/nobody/context", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"turns":[]`)
}
