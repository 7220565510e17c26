// Package whatsapp provides the outbound messaging transport against the
// Kapso-hosted WhatsApp Cloud API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the Kapso-hosted Cloud API endpoint.
const DefaultBaseURL = "https://api.kapso.ai/meta/whatsapp"

// Config holds transport configuration.
type Config struct {
	APIKey        string
	BaseURL       string
	PhoneNumberID string
}

// Client sends outbound WhatsApp messages. Transport and provider errors
// surface as errors so caller rollback paths fire.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// SendResponse is the provider acknowledgement for an outbound message.
type SendResponse struct {
	MessageID string
}

// NewClient creates a transport client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Kapso API key is required")
	}
	if cfg.PhoneNumberID == "" {
		return nil, errors.New("phone number ID is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SendText sends a plain text message. The recipient may be E.164 or bare
// digits; the Cloud API receives it without the leading "+".
func (c *Client) SendText(ctx context.Context, to, body string) (*SendResponse, error) {
	recipient := NormalizeRecipient(to)
	if recipient == "" {
		return nil, errors.New("invalid phone number format")
	}

	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                strings.TrimPrefix(recipient, "+"),
		"type":              "text",
		"text":              map[string]any{"body": body},
	})
}

// SendInteractiveCTA sends an interactive call-to-action message with a
// single URL button.
func (c *Client) SendInteractiveCTA(ctx context.Context, to, bodyText, displayText, url string) (*SendResponse, error) {
	recipient := NormalizeRecipient(to)
	if recipient == "" {
		return nil, errors.New("invalid phone number format")
	}

	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                strings.TrimPrefix(recipient, "+"),
		"type":              "interactive",
		"interactive": map[string]any{
			"type": "cta_url",
			"body": map[string]any{"text": bodyText},
			"action": map[string]any{
				"name": "cta_url",
				"parameters": map[string]any{
					"display_text": displayText,
					"url":          url,
				},
			},
		},
	})
}

// providerResponse covers the ack and error shapes the API returns.
type providerResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	MessageID string `json:"message_id"`
	ID        string `json:"id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
	Errors json.RawMessage `json:"errors"`
}

func (c *Client) post(ctx context.Context, payload map[string]any) (*SendResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.BaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("WhatsApp request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("WhatsApp API error: %d %s", resp.StatusCode, string(raw))
	}

	var parsed providerResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// A 2xx with an unparseable body still means the message was accepted.
		return &SendResponse{}, nil
	}

	// Explicit error indicators in a 2xx body still count as failure.
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("WhatsApp API error: %s", parsed.Error.Message)
	}
	if len(parsed.Errors) > 0 && string(parsed.Errors) != "null" && string(parsed.Errors) != "[]" {
		return nil, fmt.Errorf("WhatsApp API error: %s", string(parsed.Errors))
	}

	ack := &SendResponse{MessageID: parsed.MessageID}
	if ack.MessageID == "" && len(parsed.Messages) > 0 {
		ack.MessageID = parsed.Messages[0].ID
	}
	if ack.MessageID == "" {
		ack.MessageID = parsed.ID
	}
	return ack, nil
}
