// Package payments implements Stripe hosted checkout over WhatsApp.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/internal/whatsapp"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
)

// DefaultSuccessMessage is sent when no success template is configured.
const DefaultSuccessMessage = "Payment successful! Thank you for your payment of {amount} {currency}."

const defaultRedirectBase = "https://example.com"

// Sender delivers outbound WhatsApp messages.
type Sender interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error)
	SendInteractiveCTA(ctx context.Context, to, bodyText, displayText, url string) (*whatsapp.SendResponse, error)
}

// Config holds Stripe credentials and notification templates. Templates may
// use {amount} and {currency} placeholders.
type Config struct {
	SecretKey      string
	WebhookSecret  string
	RedirectURL    string // base for checkout success/cancel redirects
	SuccessMessage string
	FailedMessage  string
}

// Service creates checkout sessions and turns Stripe webhook events into
// WhatsApp notifications.
type Service struct {
	stripe *client.API
	sender Sender
	cfg    Config
	logger *logger.Logger
}

// New creates a payments service. The Stripe secret key is required.
func New(sender Sender, cfg Config, log *logger.Logger) (*Service, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("Stripe secret key is required")
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = defaultRedirectBase
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &Service{
		stripe: api,
		sender: sender,
		cfg:    cfg,
		logger: log,
	}, nil
}

// Request describes a payment to collect.
type Request struct {
	To          string            // customer phone, E.164
	Amount      float64           // major currency units
	Currency    string            // ISO code, e.g. "usd"
	Description string
	Metadata    map[string]string
}

// Response is the created checkout session.
type Response struct {
	PaymentID string `json:"payment_id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
}

// CreateCheckout creates a Stripe checkout session and sends the customer a
// "Pay Now" CTA message. The customer phone rides along in metadata on both
// the session and the payment intent so webhook notifications can find the
// recipient. CTA delivery failure is logged but not fatal: the session
// already exists and the link can be re-sent.
func (s *Service) CreateCheckout(ctx context.Context, req Request) (*Response, error) {
	if whatsapp.NormalizeE164(req.To) == "" {
		return nil, errors.New("Invalid phone number format")
	}
	if req.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if req.Currency == "" {
		return nil, errors.New("currency is required")
	}

	intentMeta := map[string]string{"customer_phone": req.To}
	for k, v := range req.Metadata {
		intentMeta[k] = v
	}

	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(s.cfg.RedirectURL + "/success"),
		CancelURL:          stripe.String(s.cfg.RedirectURL + "/cancel"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(toCents(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: intentMeta,
		},
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata("customer_phone", req.To)

	session, err := s.stripe.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	if session.URL == "" {
		return nil, errors.New("checkout session has no URL")
	}

	body := fmt.Sprintf("Payment Request: %s\nAmount: %.2f %s",
		req.Description, req.Amount, strings.ToUpper(req.Currency))
	if _, err := s.sender.SendInteractiveCTA(ctx, req.To, body, "Pay Now", session.URL); err != nil {
		s.logger.Warn("payment CTA delivery failed",
			zap.String("to", req.To),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	return &Response{
		PaymentID: session.ID,
		URL:       session.URL,
		Status:    "pending",
	}, nil
}

// HandleStripeWebhook verifies the event signature and notifies the customer
// on terminal payment outcomes. Unrecognized event types are ignored.
func (s *Service) HandleStripeWebhook(ctx context.Context, body []byte, sigHeader string) error {
	if s.cfg.WebhookSecret == "" {
		return errors.New("Stripe webhook secret is missing")
	}

	event, err := webhook.ConstructEvent(body, sigHeader, s.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decoding checkout session: %w", err)
		}
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			s.notify(ctx, session.Metadata, session.AmountTotal, string(session.Currency), s.successTemplate())
		}
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decoding checkout session: %w", err)
		}
		if s.cfg.FailedMessage != "" {
			s.notify(ctx, session.Metadata, session.AmountTotal, string(session.Currency), s.cfg.FailedMessage)
		}
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("decoding payment intent: %w", err)
		}
		if intent.Status == stripe.PaymentIntentStatusSucceeded {
			s.notify(ctx, intent.Metadata, intent.Amount, string(intent.Currency), s.successTemplate())
		}
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("decoding payment intent: %w", err)
		}
		if s.cfg.FailedMessage != "" {
			s.notify(ctx, intent.Metadata, intent.Amount, string(intent.Currency), s.cfg.FailedMessage)
		}
	default:
		s.logger.Debug("ignored Stripe event", zap.String("type", string(event.Type)))
	}

	return nil
}

func (s *Service) successTemplate() string {
	if s.cfg.SuccessMessage != "" {
		return s.cfg.SuccessMessage
	}
	return DefaultSuccessMessage
}

// notify renders the template and messages the customer. Delivery failure is
// logged; the webhook is still acknowledged so Stripe does not retry forever.
func (s *Service) notify(ctx context.Context, metadata map[string]string, amountCents int64, currency, template string) {
	phone := metadata["customer_phone"]
	if phone == "" {
		s.logger.Warn("payment event has no customer_phone metadata")
		return
	}

	message := renderTemplate(template, amountCents, currency)
	if _, err := s.sender.SendText(ctx, phone, message); err != nil {
		s.logger.Warn("payment notification delivery failed",
			zap.String("to", phone),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("payment notification sent", zap.String("to", phone))
}

func renderTemplate(template string, amountCents int64, currency string) string {
	out := strings.Replace(template, "{amount}", fmt.Sprintf("%.2f", float64(amountCents)/100), 1)
	return strings.Replace(out, "{currency}", strings.ToUpper(currency), 1)
}

// toCents converts major units to the integer minor units Stripe expects,
// rounding half away from zero.
func toCents(amount float64) int64 {
	if amount >= 0 {
		return int64(amount*100 + 0.5)
	}
	return int64(amount*100 - 0.5)
}
