package model

import (
	"time"
)

// Role represents the role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single entry in a conversation context window.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is a request to the conversational agent.
type ChatRequest struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// ChatResponse is the agent's reply plus usage metadata. Cost is always
// reported as zero; the completion provider does not expose pricing.
type ChatResponse struct {
	Message        string  `json:"message"`
	Model          string  `json:"model"`
	TokensUsed     int     `json:"tokens_used"`
	Cost           float64 `json:"cost"`
	ConversationID string  `json:"conversation_id,omitempty"`
}
