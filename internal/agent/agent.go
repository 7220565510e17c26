// Package agent implements the LLM-backed conversation controller.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/internal/llm"
	"github.com/capitalize-ai/whatsapp-platform/internal/model"
	"github.com/capitalize-ai/whatsapp-platform/internal/store"
	"github.com/capitalize-ai/whatsapp-platform/internal/whatsapp"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
	"github.com/capitalize-ai/whatsapp-platform/pkg/metrics"
)

// Defaults for unset config fields.
const (
	DefaultContextWindow  = 10
	DefaultSessionTimeout = 5 * time.Minute
)

// Validation failures on the chat path.
var (
	ErrInvalidSender = errors.New("invalid sender identifier")
	ErrEmptyMessage  = errors.New("message is required")
)

// Sender delivers outbound text messages.
type Sender interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error)
}

// Config holds conversation policy settings.
type Config struct {
	SystemPrompt   string
	ContextWindow  int
	SessionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ContextWindow == 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	return c
}

// Agent turns inbound user messages into LLM completions over a sliding
// per-identity context window, and replies over the messaging transport.
type Agent struct {
	llm    llm.Client
	sender Sender
	store  *store.ContextStore
	cfg    Config
	logger *logger.Logger
	now    func() time.Time
}

// New creates an agent.
func New(client llm.Client, sender Sender, st *store.ContextStore, cfg Config, log *logger.Logger) *Agent {
	return &Agent{
		llm:    client,
		sender: sender,
		store:  st,
		cfg:    cfg.withDefaults(),
		logger: log,
		now:    time.Now,
	}
}

// SetSystemPrompt replaces the system prompt for subsequent chats.
func (a *Agent) SetSystemPrompt(prompt string) {
	a.cfg.SystemPrompt = prompt
}

// Chat runs one conversation turn for the sender. The user turn is appended
// before the completion call, so a provider failure leaves it recorded and
// no assistant turn is added.
func (a *Agent) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	userID := strings.TrimSpace(req.From)
	if userID == "" {
		return nil, ErrInvalidSender
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	now := a.now()
	if lastUpdated, ok := a.store.GetLastUpdated(userID); ok && a.cfg.SessionTimeout > 0 {
		if now.Sub(lastUpdated) > a.cfg.SessionTimeout {
			a.store.Clear(userID)
			a.logger.Debug("conversation session expired",
				zap.String("user_id", userID),
				zap.Time("last_updated", lastUpdated),
			)
		}
	}

	a.store.Add(userID, model.Turn{
		Role:      model.RoleUser,
		Content:   message,
		Timestamp: now,
	}, a.cfg.ContextWindow)

	completion := &llm.CompletionRequest{
		Model:     req.Model,
		Messages:  a.buildMessages(userID),
		MaxTokens: req.MaxTokens,
	}

	start := a.now()
	resp, err := a.llm.Complete(ctx, completion)
	if err != nil {
		metrics.RecordLLMRequest(req.Model, "error", a.now().Sub(start).Seconds(), 0)
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		metrics.RecordLLMRequest(resp.Model, "empty", a.now().Sub(start).Seconds(), resp.TotalTokens)
		return nil, errors.New("completion provider returned no message")
	}
	metrics.RecordLLMRequest(resp.Model, "success", a.now().Sub(start).Seconds(), resp.TotalTokens)

	a.store.Add(userID, model.Turn{
		Role:      model.RoleAssistant,
		Content:   reply,
		Timestamp: a.now(),
	}, a.cfg.ContextWindow)

	return &model.ChatResponse{
		Message:        reply,
		Model:          resp.Model,
		TokensUsed:     resp.TotalTokens,
		Cost:           0, // providers expose no pricing; reported as a placeholder
		ConversationID: resp.ID,
	}, nil
}

// buildMessages assembles the prompt: the system prompt first when non-empty,
// then the retained window oldest-first.
func (a *Agent) buildMessages(userID string) []llm.ChatMessage {
	turns := a.store.Get(userID)
	messages := make([]llm.ChatMessage, 0, len(turns)+1)
	if prompt := strings.TrimSpace(a.cfg.SystemPrompt); prompt != "" {
		messages = append(messages, llm.ChatMessage{Role: string(model.RoleSystem), Content: prompt})
	}
	for _, turn := range turns {
		messages = append(messages, llm.ChatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	return messages
}

// HandleWebhook extracts inbound text messages from a webhook payload, chats
// each one through the model, and replies to the sender. Outbound and echoed
// messages are skipped. Per-message failures are logged and do not abort the
// remaining messages; the first error is returned.
func (a *Agent) HandleWebhook(ctx context.Context, payload any) error {
	var firstErr error
	for _, msg := range extractInbound(payload) {
		resp, err := a.Chat(ctx, model.ChatRequest{From: msg.From, Message: msg.Body})
		if err != nil {
			a.logger.Warn("auto-reply chat failed",
				zap.String("from", msg.From),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, err := a.sender.SendText(ctx, msg.From, resp.Message); err != nil {
			a.logger.Warn("auto-reply delivery failed",
				zap.String("to", msg.From),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Context returns the retained conversation window for userID.
func (a *Agent) Context(userID string) []model.Turn {
	return a.store.Get(userID)
}

// ClearContext drops the conversation window for userID.
func (a *Agent) ClearContext(userID string) {
	a.store.Clear(userID)
}

// AddContext appends a turn to userID's window under the configured window
// size, for hosts that seed or splice conversations.
func (a *Agent) AddContext(userID string, turn model.Turn) {
	a.store.Add(userID, turn, a.cfg.ContextWindow)
}
