// Package event converts inbound webhook payloads into canonical events and
// routes them to registered handlers.
package event

import (
	"math"
	"strconv"
	"time"

	"github.com/capitalize-ai/whatsapp-platform/internal/model"
)

// millisecondEpochFloor separates second-precision epoch values from
// millisecond-precision ones: anything below 10^12 is treated as seconds.
const millisecondEpochFloor = 1e12

// Normalize maps an arbitrary decoded webhook payload to a canonical event.
// The second return is false when the payload does not describe a recognized
// event; callers should then no-op rather than error.
//
// Two recognition paths are tried in order. A payload with a recognized
// top-level "type" and non-empty "from"/"to" strings is taken at face value;
// a recognized type with missing endpoints is malformed and dropped, not
// retried on the implicit path. Otherwise the type is inferred from the
// nested message's direction and status markers, with the recipient resolved
// from the top-level phone_number_id or the conversation's.
func Normalize(payload any) (model.Event, bool) {
	record, ok := payload.(map[string]any)
	if !ok || record == nil {
		return model.Event{}, false
	}

	message := normalizeMessage(record["message"])
	conversation := normalizeConversation(record["conversation"])
	metadata := normalizeMetadata(record["metadata"])

	if typ, ok := record["type"].(string); ok && model.IsValidEventType(typ) {
		from, _ := record["from"].(string)
		to, _ := record["to"].(string)
		if from == "" || to == "" {
			return model.Event{}, false
		}
		return model.Event{
			Type: model.EventType(typ),
			Data: model.EventData{
				From:         from,
				To:           to,
				Message:      message,
				Conversation: conversation,
				Metadata:     metadata,
			},
		}, true
	}

	rawMessage, ok := record["message"].(map[string]any)
	if !ok {
		return model.Event{}, false
	}

	from, _ := rawMessage["from"].(string)
	to, _ := record["phone_number_id"].(string)
	if to == "" {
		if conv, ok := record["conversation"].(map[string]any); ok {
			to, _ = conv["phone_number_id"].(string)
		}
	}
	if from == "" || to == "" {
		return model.Event{}, false
	}

	return model.Event{
		Type: resolveImplicitType(rawMessage),
		Data: model.EventData{
			From:         from,
			To:           to,
			Message:      message,
			Conversation: conversation,
			Metadata:     metadata,
		},
	}, true
}

// resolveImplicitType infers the event type from the message's provider
// markers. Outbound messages map their delivery status; everything else is
// an inbound message.
func resolveImplicitType(message map[string]any) model.EventType {
	kapso, _ := message["kapso"].(map[string]any)
	direction, _ := kapso["direction"].(string)
	status, _ := kapso["status"].(string)

	if direction == "outbound" {
		switch status {
		case "read":
			return model.EventMessageRead
		case "delivered":
			return model.EventMessageDelivered
		case "sent":
			return model.EventMessageSent
		}
	}
	return model.EventMessageReceived
}

// normalizeMessage builds the message summary. A summary needs a non-empty
// id, a non-empty type and a parseable timestamp; otherwise the whole
// summary is omitted while the event itself survives.
func normalizeMessage(value any) *model.EventMessage {
	record, ok := value.(map[string]any)
	if !ok {
		return nil
	}

	id, _ := record["id"].(string)
	typ, _ := record["type"].(string)

	raw := record["timestamp"]
	if raw == nil {
		raw = record["time"]
	}
	if raw == nil {
		raw = record["createdAt"]
	}
	ts, tsOK := parseTimestamp(raw)

	if id == "" || typ == "" || !tsOK {
		return nil
	}

	var text string
	switch v := record["text"].(type) {
	case string:
		text = v
	case map[string]any:
		text, _ = v["body"].(string)
	}
	if text == "" {
		if kapso, ok := record["kapso"].(map[string]any); ok {
			text, _ = kapso["content"].(string)
		}
	}

	return &model.EventMessage{
		ID:        id,
		Type:      typ,
		Text:      text,
		Timestamp: ts,
	}
}

// normalizeConversation builds the conversation summary, requiring a
// non-empty id and a parseable start timestamp.
func normalizeConversation(value any) *model.EventConversation {
	record, ok := value.(map[string]any)
	if !ok {
		return nil
	}

	id, _ := record["id"].(string)

	raw := record["startedAt"]
	if raw == nil {
		raw = record["started_at"]
	}
	if raw == nil {
		raw = record["timestamp"]
	}
	startedAt, tsOK := parseTimestamp(raw)

	if id == "" || !tsOK {
		return nil
	}

	return &model.EventConversation{
		ID:        id,
		StartedAt: startedAt,
	}
}

// normalizeMetadata passes any object-typed metadata through verbatim.
func normalizeMetadata(value any) map[string]any {
	record, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return record
}

// parseTimestamp accepts a native time, an epoch number (seconds below
// 10^12, milliseconds at or above), a numeric string with the same
// interpretation, or an RFC3339-style date string.
func parseTimestamp(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case float64:
		if isFinite(v) {
			return epochToTime(v), true
		}
	case int:
		return epochToTime(float64(v)), true
	case int64:
		return epochToTime(float64(v)), true
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil && isFinite(n) {
			return epochToTime(n), true
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func epochToTime(v float64) time.Time {
	if v < millisecondEpochFloor {
		return time.UnixMilli(int64(v * 1000))
	}
	return time.UnixMilli(int64(v))
}
