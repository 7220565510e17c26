package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/whatsapp-platform/internal/llm"
	"github.com/capitalize-ai/whatsapp-platform/internal/model"
	"github.com/capitalize-ai/whatsapp-platform/internal/store"
	"github.com/capitalize-ai/whatsapp-platform/internal/whatsapp"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
)

type fakeLLM struct {
	requests []*llm.CompletionRequest
	reply    string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{
		Content:     f.reply,
		Model:       "test-model",
		TotalTokens: 42,
		ID:          "cmpl-1",
	}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

type fakeSender struct {
	sent []sentMessage
	err  error
}

type sentMessage struct {
	to   string
	body string
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return &whatsapp.SendResponse{MessageID: "wamid.test"}, nil
}

type fixture struct {
	agent  *Agent
	llm    *fakeLLM
	sender *fakeSender
	store  *store.ContextStore
	clock  time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		llm:    &fakeLLM{reply: "hello there"},
		sender: &fakeSender{},
		store:  store.NewContextStore(),
		clock:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.agent = New(f.llm, f.sender, f.store, cfg, logger.NewNop())
	f.agent.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func TestChatAppendsBothTurns(t *testing.T) {
	f := newFixture(t, Config{})

	resp, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "+15551234567", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Message)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Zero(t, resp.Cost)
	assert.Equal(t, "cmpl-1", resp.ConversationID)

	turns := f.agent.Context("+15551234567")
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Content)
	assert.Equal(t, model.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hello there", turns[1].Content)
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "   ", Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidSender)

	_, err = f.agent.Chat(context.Background(), model.ChatRequest{From: "+15551234567", Message: "  \t "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	assert.Empty(t, f.llm.requests, "validation failures never reach the provider")
}

func TestChatSystemPromptLeadsWindow(t *testing.T) {
	f := newFixture(t, Config{SystemPrompt: "be terse"})

	_, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "first"})
	require.NoError(t, err)
	_, err = f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "second"})
	require.NoError(t, err)

	require.Len(t, f.llm.requests, 2)
	prompt := f.llm.requests[1].Messages
	require.Len(t, prompt, 4, "system + user/assistant/user")
	assert.Equal(t, llm.ChatMessage{Role: "system", Content: "be terse"}, prompt[0])
	assert.Equal(t, "first", prompt[1].Content)
	assert.Equal(t, "assistant", prompt[2].Role)
	assert.Equal(t, "second", prompt[3].Content)
}

func TestChatNoSystemPrompt(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "hi"})
	require.NoError(t, err)
	require.Len(t, f.llm.requests, 1)
	require.NotEmpty(t, f.llm.requests[0].Messages)
	assert.Equal(t, "user", f.llm.requests[0].Messages[0].Role)
}

func TestChatWindowTruncation(t *testing.T) {
	f := newFixture(t, Config{ContextWindow: 3})

	for _, msg := range []string{"one", "two", "three"} {
		_, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: msg})
		require.NoError(t, err)
	}

	turns := f.agent.Context("u1")
	require.Len(t, turns, 3)
	assert.Equal(t, "three", turns[1].Content, "oldest turns evicted first")
	assert.Equal(t, model.RoleAssistant, turns[2].Role)
}

func TestChatSessionTimeoutClearsWindow(t *testing.T) {
	f := newFixture(t, Config{SessionTimeout: 5 * time.Minute})

	_, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "old"})
	require.NoError(t, err)

	f.advance(5*time.Minute + time.Second)
	_, err = f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "fresh"})
	require.NoError(t, err)

	turns := f.agent.Context("u1")
	require.Len(t, turns, 2, "stale window cleared before appending")
	assert.Equal(t, "fresh", turns[0].Content)
}

func TestChatWithinTimeoutKeepsWindow(t *testing.T) {
	f := newFixture(t, Config{SessionTimeout: 5 * time.Minute})

	_, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "old"})
	require.NoError(t, err)

	f.advance(4 * time.Minute)
	_, err = f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "fresh"})
	require.NoError(t, err)

	assert.Len(t, f.agent.Context("u1"), 4)
}

func TestChatProviderFailureKeepsUserTurn(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.err = errors.New("upstream 500")

	_, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 500")

	turns := f.agent.Context("u1")
	require.Len(t, turns, 1, "user turn recorded, no assistant turn")
	assert.Equal(t, model.RoleUser, turns[0].Role)
}

func TestChatEmptyCompletionIsError(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.reply = "   "

	_, err := f.agent.Chat(context.Background(), model.ChatRequest{From: "u1", Message: "hi"})
	require.Error(t, err)
	assert.Len(t, f.agent.Context("u1"), 1)
}

func decodePayload(t *testing.T, raw string) any {
	t.Helper()
	var payload any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload
}

func TestHandleWebhookEnvelope(t *testing.T) {
	f := newFixture(t, Config{})
	payload := decodePayload(t, `{
		"entry": [{"changes": [{"value": {"messages": [
			{"from": "+15551234567", "type": "text", "text": {"body": "what is up"}},
			{"from": "+15551234567", "type": "image"},
			{"from": "+15559999999", "type": "text", "text": {"body": "echo"},
			 "kapso": {"source": "smb_message_echo"}},
			{"from": "+15558888888", "type": "text", "text": {"body": "out"},
			 "kapso": {"direction": "outbound"}}
		]}}]}]
	}`)

	require.NoError(t, f.agent.HandleWebhook(context.Background(), payload))
	require.Len(t, f.sender.sent, 1, "only the inbound text message is answered")
	assert.Equal(t, "+15551234567", f.sender.sent[0].to)
	assert.Equal(t, "hello there", f.sender.sent[0].body)
}

func TestHandleWebhookFlatMessage(t *testing.T) {
	f := newFixture(t, Config{})
	payload := decodePayload(t, `{
		"message": {"from": "+15551234567", "type": "text",
			"kapso": {"content": "via kapso content"}}
	}`)

	require.NoError(t, f.agent.HandleWebhook(context.Background(), payload))
	require.Len(t, f.llm.requests, 1)
	last := f.llm.requests[0].Messages
	assert.Equal(t, "via kapso content", last[len(last)-1].Content)
}

func TestHandleWebhookSkipsOutboundFlat(t *testing.T) {
	f := newFixture(t, Config{})
	payload := decodePayload(t, `{
		"message": {"from": "+15551234567", "type": "text",
			"text": {"body": "hi"}, "kapso": {"direction": "outbound"}}
	}`)

	require.NoError(t, f.agent.HandleWebhook(context.Background(), payload))
	assert.Empty(t, f.llm.requests)
	assert.Empty(t, f.sender.sent)
}

func TestHandleWebhookNothingInbound(t *testing.T) {
	f := newFixture(t, Config{})
	for _, raw := range []string{
		`{}`,
		`"scalar"`,
		`{"message": {"type": "text", "text": {"body": "hi"}}}`,
		`{"message": {"from": "+15551234567", "type": "audio"}}`,
	} {
		require.NoError(t, f.agent.HandleWebhook(context.Background(), decodePayload(t, raw)), raw)
	}
	assert.Empty(t, f.sender.sent)
}

func TestHandleWebhookChatFailureReported(t *testing.T) {
	f := newFixture(t, Config{})
	f.llm.err = errors.New("upstream 500")
	payload := decodePayload(t, `{
		"message": {"from": "+15551234567", "type": "text", "text": {"body": "hi"}}
	}`)

	err := f.agent.HandleWebhook(context.Background(), payload)
	require.Error(t, err)
	assert.Empty(t, f.sender.sent)
}

func TestAddAndClearContext(t *testing.T) {
	f := newFixture(t, Config{ContextWindow: 2})

	f.agent.AddContext("u1", model.Turn{Role: model.RoleSystem, Content: "seed", Timestamp: f.clock})
	f.agent.AddContext("u1", model.Turn{Role: model.RoleUser, Content: "a", Timestamp: f.clock})
	f.agent.AddContext("u1", model.Turn{Role: model.RoleUser, Content: "b", Timestamp: f.clock})

	turns := f.agent.Context("u1")
	require.Len(t, turns, 2, "window size enforced")
	assert.Equal(t, "a", turns[0].Content)

	f.agent.ClearContext("u1")
	assert.Empty(t, f.agent.Context("u1"))
}
