package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/capitalize-ai/whatsapp-platform/internal/whatsapp"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
)

const webhookSecret = "whsec_test_secret"

type fakeSender struct {
	texts []sentText
	ctas  []sentCTA
	err   error
}

type sentText struct {
	to   string
	body string
}

type sentCTA struct {
	to, body, display, url string
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, sentText{to: to, body: body})
	return &whatsapp.SendResponse{MessageID: "wamid.test"}, nil
}

func (f *fakeSender) SendInteractiveCTA(ctx context.Context, to, bodyText, displayText, url string) (*whatsapp.SendResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ctas = append(f.ctas, sentCTA{to: to, body: bodyText, display: displayText, url: url})
	return &whatsapp.SendResponse{MessageID: "wamid.test"}, nil
}

func newService(t *testing.T, cfg Config) (*Service, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	if cfg.SecretKey == "" {
		cfg.SecretKey = "sk_test_123"
	}
	svc, err := New(sender, cfg, logger.NewNop())
	require.NoError(t, err)
	return svc, sender
}

// signEvent produces a Stripe-Signature header the SDK's verifier accepts.
func signEvent(payload []byte) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventJSON(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": %q,
		"data": {"object": %s}
	}`, stripe.APIVersion, eventType, object))
}

func TestNewRequiresSecretKey(t *testing.T) {
	_, err := New(&fakeSender{}, Config{}, logger.NewNop())
	require.Error(t, err)
}

func TestCreateCheckoutValidation(t *testing.T) {
	svc, sender := newService(t, Config{})

	_, err := svc.CreateCheckout(context.Background(), Request{To: "bogus", Amount: 10, Currency: "usd"})
	assert.EqualError(t, err, "Invalid phone number format")

	_, err = svc.CreateCheckout(context.Background(), Request{To: "+15551234567", Amount: 0, Currency: "usd"})
	assert.Error(t, err)

	_, err = svc.CreateCheckout(context.Background(), Request{To: "+15551234567", Amount: 10})
	assert.Error(t, err)

	assert.Empty(t, sender.ctas, "nothing sent on validation failure")
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc, _ := newService(t, Config{WebhookSecret: webhookSecret})

	body := eventJSON("checkout.session.completed", `{"id": "cs_1"}`)
	err := svc.HandleStripeWebhook(context.Background(), body, "t=1,v1=deadbeef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature verification failed")
}

func TestHandleWebhookRequiresSecret(t *testing.T) {
	svc, _ := newService(t, Config{})
	err := svc.HandleStripeWebhook(context.Background(), []byte("{}"), "t=1,v1=00")
	require.Error(t, err)
}

func TestHandleWebhookCheckoutCompleted(t *testing.T) {
	svc, sender := newService(t, Config{WebhookSecret: webhookSecret})

	body := eventJSON("checkout.session.completed", `{
		"id": "cs_1",
		"object": "checkout.session",
		"payment_status": "paid",
		"amount_total": 2550,
		"currency": "usd",
		"metadata": {"customer_phone": "+15551234567"}
	}`)

	require.NoError(t, svc.HandleStripeWebhook(context.Background(), body, signEvent(body)))
	require.Len(t, sender.texts, 1)
	assert.Equal(t, "+15551234567", sender.texts[0].to)
	assert.Equal(t, "Payment successful! Thank you for your payment of 25.50 USD.", sender.texts[0].body)
}

func TestHandleWebhookUnpaidSessionIgnored(t *testing.T) {
	svc, sender := newService(t, Config{WebhookSecret: webhookSecret})

	body := eventJSON("checkout.session.completed", `{
		"id": "cs_1",
		"object": "checkout.session",
		"payment_status": "unpaid",
		"metadata": {"customer_phone": "+15551234567"}
	}`)

	require.NoError(t, svc.HandleStripeWebhook(context.Background(), body, signEvent(body)))
	assert.Empty(t, sender.texts)
}

func TestHandleWebhookFailureTemplate(t *testing.T) {
	svc, sender := newService(t, Config{
		WebhookSecret: webhookSecret,
		FailedMessage: "Your {amount} {currency} payment did not go through.",
	})

	body := eventJSON("checkout.session.expired", `{
		"id": "cs_1",
		"object": "checkout.session",
		"amount_total": 999,
		"currency": "eur",
		"metadata": {"customer_phone": "+15551234567"}
	}`)

	require.NoError(t, svc.HandleStripeWebhook(context.Background(), body, signEvent(body)))
	require.Len(t, sender.texts, 1)
	assert.Equal(t, "Your 9.99 EUR payment did not go through.", sender.texts[0].body)
}

func TestHandleWebhookFailureWithoutTemplateIsSilent(t *testing.T) {
	svc, sender := newService(t, Config{WebhookSecret: webhookSecret})

	body := eventJSON("checkout.session.expired", `{
		"id": "cs_1",
		"object": "checkout.session",
		"metadata": {"customer_phone": "+15551234567"}
	}`)

	require.NoError(t, svc.HandleStripeWebhook(context.Background(), body, signEvent(body)))
	assert.Empty(t, sender.texts)
}

func TestHandleWebhookPaymentIntentSucceeded(t *testing.T) {
	svc, sender := newService(t, Config{WebhookSecret: webhookSecret})

	body := eventJSON("payment_intent.succeeded", `{
		"id": "pi_1",
		"object": "payment_intent",
		"status": "succeeded",
		"amount": 500,
		"currency": "gbp",
		"metadata": {"customer_phone": "+15551234567"}
	}`)

	require.NoError(t, svc.HandleStripeWebhook(context.Background(), body, signEvent(body)))
	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0].body, "5.00 GBP")
}

func TestHandleWebhookMissingPhoneSkipsNotification(t *testing.T) {
	svc, sender := newService(t, Config{WebhookSecret: webhookSecret})

	body := eventJSON("checkout.session.completed", `{
		"id": "cs_1",
		"object": "checkout.session",
		"payment_status": "paid",
		"amount_total": 100,
		"currency": "usd"
	}`)

	require.NoError(t, svc.HandleStripeWebhook(context.Background(), body, signEvent(body)))
	assert.Empty(t, sender.texts)
}

func TestHandleWebhookIgnoredEventType(t *testing.T) {
	svc, sender := newService(t, Config{WebhookSecret: webhookSecret})

	body := eventJSON("customer.created", `{"id": "cus_1"}`)
	require.NoError(t, svc.HandleStripeWebhook(context.Background(), body, signEvent(body)))
	assert.Empty(t, sender.texts)
}

func TestNotificationFailureDoesNotFailWebhook(t *testing.T) {
	svc, sender := newService(t, Config{WebhookSecret: webhookSecret})
	sender.err = fmt.Errorf("transport down")

	body := eventJSON("checkout.session.completed", `{
		"id": "cs_1",
		"object": "checkout.session",
		"payment_status": "paid",
		"amount_total": 100,
		"currency": "usd",
		"metadata": {"customer_phone": "+15551234567"}
	}`)

	assert.NoError(t, svc.HandleStripeWebhook(context.Background(), body, signEvent(body)))
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(1000), toCents(10))
	assert.Equal(t, int64(1999), toCents(19.99))
	assert.Equal(t, int64(1), toCents(0.01))
	assert.Equal(t, int64(10), toCents(0.095))
}
