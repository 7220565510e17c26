package workflow

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

	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
	"github.com/capitalize-ai/whatsapp-platform/pkg/metrics"
)

// ErrWebhookNotMapped is returned by TriggerByID for unknown webhook names.
var ErrWebhookNotMapped = errors.New("automation webhook mapping not found")

// Forwarder delivers event data to operator-supplied automation webhooks,
// hardening each delivery with the retry executor.
type Forwarder struct {
	webhooks   map[string]string
	httpClient *http.Client
	retryOpts  RetryOptions
	logger     *logger.Logger
}

// NewForwarder creates a forwarder with the given name→URL mappings.
func NewForwarder(webhooks map[string]string, log *logger.Logger) *Forwarder {
	return &Forwarder{
		webhooks:   webhooks,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

// WithRetryOptions overrides the delivery retry policy.
func (f *Forwarder) WithRetryOptions(opts RetryOptions) *Forwarder {
	f.retryOpts = opts
	return f
}

// Trigger POSTs data as JSON to the given webhook URL. A nil data posts an
// empty object. Non-2xx responses fail with the response body as diagnostic.
func (f *Forwarder) Trigger(ctx context.Context, webhookURL string, data any) error {
	url := strings.TrimSpace(webhookURL)
	if url == "" {
		return errors.New("automation webhook URL is required")
	}

	if data == nil {
		data = map[string]any{}
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	opts := f.retryOpts
	opts.OnRetry = func(err error, attempt int) {
		metrics.RetryAttemptsTotal.WithLabelValues("automation").Inc()
		f.logger.Warn("automation delivery retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	err = Do(ctx, func(ctx context.Context) error {
		return f.post(ctx, url, body)
	}, opts)
	if err != nil {
		metrics.AutomationDeliveriesTotal.WithLabelValues("failure").Inc()
		return err
	}

	metrics.AutomationDeliveriesTotal.WithLabelValues("success").Inc()
	return nil
}

// TriggerByID resolves a configured webhook name and delivers to it.
func (f *Forwarder) TriggerByID(ctx context.Context, id string, data any) error {
	url, ok := f.webhooks[id]
	if !ok || url == "" {
		return fmt.Errorf("%w: %q", ErrWebhookNotMapped, id)
	}
	return f.Trigger(ctx, url, data)
}

func (f *Forwarder) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("automation webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("automation webhook failed: %d %s", resp.StatusCode, string(text))
	}
	return nil
}
