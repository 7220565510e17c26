package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/whatsapp-platform/internal/model"
)

// decode round-trips a literal through JSON so the payload carries the same
// dynamic types the webhook handler sees (float64 numbers, map[string]any).
func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNormalizeExplicitPath(t *testing.T) {
	payload := decode(t, `{
		"type": "message.received",
		"from": "+1555",
		"to": "+1666",
		"message": {"id": "m1", "type": "text", "text": "hi", "timestamp": 1700000000}
	}`)

	ev, ok := Normalize(payload)
	require.True(t, ok)
	assert.Equal(t, model.EventMessageReceived, ev.Type)
	assert.Equal(t, "+1555", ev.Data.From)
	assert.Equal(t, "+1666", ev.Data.To)

	require.NotNil(t, ev.Data.Message)
	assert.Equal(t, "hi", ev.Data.Message.Text)
	assert.Equal(t, time.UnixMilli(1700000000*1000), ev.Data.Message.Timestamp)
}

func TestNormalizeExplicitTypeMissingEndpoints(t *testing.T) {
	// A recognized type with a missing endpoint is malformed, not a
	// candidate for the implicit path.
	payload := decode(t, `{
		"type": "message.received",
		"from": "+1555",
		"message": {"from": "+1555", "kapso": {"direction": "outbound", "status": "read"}},
		"phone_number_id": "+1666"
	}`)

	_, ok := Normalize(payload)
	assert.False(t, ok)
}

func TestNormalizeImplicitOutboundStatuses(t *testing.T) {
	cases := map[string]model.EventType{
		"read":      model.EventMessageRead,
		"delivered": model.EventMessageDelivered,
		"sent":      model.EventMessageSent,
		"queued":    model.EventMessageReceived,
		"":          model.EventMessageReceived,
	}

	for status, want := range cases {
		payload := map[string]any{
			"message": map[string]any{
				"from":  "+1555",
				"kapso": map[string]any{"direction": "outbound", "status": status},
			},
			"phone_number_id": "+1666",
		}

		ev, ok := Normalize(payload)
		require.True(t, ok, "status=%q", status)
		assert.Equal(t, want, ev.Type, "status=%q", status)
	}
}

func TestNormalizeImplicitInbound(t *testing.T) {
	payload := decode(t, `{
		"message": {"from": "+1555", "kapso": {"direction": "inbound", "status": "read"}},
		"phone_number_id": "+1666"
	}`)

	ev, ok := Normalize(payload)
	require.True(t, ok)
	assert.Equal(t, model.EventMessageReceived, ev.Type, "status only applies to outbound messages")
}

func TestNormalizeImplicitRecipientFallback(t *testing.T) {
	payload := decode(t, `{
		"message": {"from": "+1555"},
		"conversation": {"phone_number_id": "+1777"}
	}`)

	ev, ok := Normalize(payload)
	require.True(t, ok)
	assert.Equal(t, "+1777", ev.Data.To)
}

func TestNormalizeDrops(t *testing.T) {
	cases := []any{
		nil,
		"not an object",
		decode(t, `{}`),
		decode(t, `{"type": "bogus.event", "from": "+1", "to": "+2"}`),
		decode(t, `{"message": {"from": "+1555"}}`),                  // no recipient anywhere
		decode(t, `{"message": {"text": "no sender"}, "phone_number_id": "+1"}`),
		decode(t, `{"message": "not an object", "phone_number_id": "+1"}`),
	}

	for i, payload := range cases {
		_, ok := Normalize(payload)
		assert.False(t, ok, "case %d", i)
	}
}

func TestNormalizeMessageSummaryOmitted(t *testing.T) {
	cases := []string{
		`{"type": "text", "timestamp": 1700000000}`,          // no id
		`{"id": "m1", "timestamp": 1700000000}`,              // no type
		`{"id": "m1", "type": "text"}`,                       // no timestamp
		`{"id": "m1", "type": "text", "timestamp": "later"}`, // unparseable
	}

	for _, raw := range cases {
		payload := decode(t, `{"type": "message.received", "from": "+1", "to": "+2", "message": `+raw+`}`)
		ev, ok := Normalize(payload)
		require.True(t, ok, raw)
		assert.Nil(t, ev.Data.Message, "summary omitted, event kept: %s", raw)
	}
}

func TestNormalizeMessageTextSources(t *testing.T) {
	base := `{"type": "message.received", "from": "+1", "to": "+2", "message": %s}`

	cases := []struct {
		message string
		want    string
	}{
		{`{"id": "m1", "type": "text", "timestamp": 1, "text": "plain"}`, "plain"},
		{`{"id": "m1", "type": "text", "timestamp": 1, "text": {"body": "nested"}}`, "nested"},
		{`{"id": "m1", "type": "text", "timestamp": 1, "kapso": {"content": "diagnostic"}}`, "diagnostic"},
		{`{"id": "m1", "type": "text", "timestamp": 1}`, ""},
	}

	for _, tc := range cases {
		payload := decode(t, `{"type": "message.received", "from": "+1", "to": "+2", "message": `+tc.message+`}`)
		ev, ok := Normalize(payload)
		require.True(t, ok)
		require.NotNil(t, ev.Data.Message, base, tc.message)
		assert.Equal(t, tc.want, ev.Data.Message.Text)
	}
}

func TestNormalizeConversationSummary(t *testing.T) {
	payload := decode(t, `{
		"type": "conversation.started",
		"from": "+1", "to": "+2",
		"conversation": {"id": "c1", "started_at": 1700000000}
	}`)

	ev, ok := Normalize(payload)
	require.True(t, ok)
	require.NotNil(t, ev.Data.Conversation)
	assert.Equal(t, "c1", ev.Data.Conversation.ID)
	assert.Equal(t, time.UnixMilli(1700000000*1000), ev.Data.Conversation.StartedAt)

	// Missing start timestamp omits the summary.
	payload = decode(t, `{"type": "conversation.started", "from": "+1", "to": "+2", "conversation": {"id": "c1"}}`)
	ev, ok = Normalize(payload)
	require.True(t, ok)
	assert.Nil(t, ev.Data.Conversation)
}

func TestNormalizeMetadataPassthrough(t *testing.T) {
	payload := decode(t, `{
		"type": "message.received",
		"from": "+1", "to": "+2",
		"metadata": {"campaign": "spring", "step": 3}
	}`)

	ev, ok := Normalize(payload)
	require.True(t, ok)
	assert.Equal(t, "spring", ev.Data.Metadata["campaign"])

	// Non-object metadata yields none.
	payload = decode(t, `{"type": "message.received", "from": "+1", "to": "+2", "metadata": "oops"}`)
	ev, ok = Normalize(payload)
	require.True(t, ok)
	assert.Nil(t, ev.Data.Metadata)
}

func TestParseTimestamp(t *testing.T) {
	native := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		in   any
		want time.Time
		ok   bool
	}{
		{native, native, true},
		{float64(1700000000), time.UnixMilli(1700000000 * 1000), true},
		{float64(1700000000000), time.UnixMilli(1700000000000), true},
		{"1700000000", time.UnixMilli(1700000000 * 1000), true},
		{"1700000000000", time.UnixMilli(1700000000000), true},
		{"2024-03-01T12:00:00Z", native, true},
		{"not a date", time.Time{}, false},
		{true, time.Time{}, false},
		{nil, time.Time{}, false},
	}

	for _, tc := range cases {
		got, ok := parseTimestamp(tc.in)
		assert.Equal(t, tc.ok, ok, "input %v", tc.in)
		if tc.ok {
			assert.True(t, got.Equal(tc.want), "input %v: got %v want %v", tc.in, got, tc.want)
		}
	}
}
