// Package model defines data structures for the WhatsApp session platform.
package model

import (
	"time"
)

// EventType is the canonical type of a normalized webhook event.
type EventType string

const (
	EventMessageReceived     EventType = "message.received"
	EventMessageSent         EventType = "message.sent"
	EventMessageDelivered    EventType = "message.delivered"
	EventMessageRead         EventType = "message.read"
	EventButtonClicked       EventType = "button.clicked"
	EventListSelected        EventType = "list.selected"
	EventConversationStarted EventType = "conversation.started"
	EventConversationEnded   EventType = "conversation.ended"
)

// ValidEventTypes enumerates every recognized canonical event type.
var ValidEventTypes = []EventType{
	EventMessageReceived,
	EventMessageSent,
	EventMessageDelivered,
	EventMessageRead,
	EventButtonClicked,
	EventListSelected,
	EventConversationStarted,
	EventConversationEnded,
}

// IsValidEventType reports whether s is a recognized canonical event type.
func IsValidEventType(s string) bool {
	for _, t := range ValidEventTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// EventMessage is the message summary attached to a canonical event.
type EventMessage struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventConversation is the conversation summary attached to a canonical event.
type EventConversation struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// EventData is the payload of a canonical event.
type EventData struct {
	From         string             `json:"from"`
	To           string             `json:"to"`
	Message      *EventMessage      `json:"message,omitempty"`
	Conversation *EventConversation `json:"conversation,omitempty"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
}

// Event is the canonical event produced from an inbound webhook payload.
type Event struct {
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}
