// Package otp implements one-time-password verification over WhatsApp.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/internal/model"
	"github.com/capitalize-ai/whatsapp-platform/internal/store"
	"github.com/capitalize-ai/whatsapp-platform/internal/whatsapp"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
	"github.com/capitalize-ai/whatsapp-platform/pkg/metrics"
)

// DefaultTemplate renders the OTP message when no template is configured.
const DefaultTemplate = "{brand} verification code: {code}"

// Defaults for unset config fields.
const (
	DefaultCodeLength     = 6
	DefaultExpiresIn      = 5 * time.Minute
	DefaultMaxAttempts    = 3
	DefaultResendCooldown = 30 * time.Second
)

// Sender delivers outbound text messages.
type Sender interface {
	SendText(ctx context.Context, to, body string) (*whatsapp.SendResponse, error)
}

// Config holds OTP policy settings.
type Config struct {
	CodeLength     int // 4, 6 or 8
	ExpiresIn      time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

func (c Config) withDefaults() Config {
	switch c.CodeLength {
	case 4, 6, 8:
	default:
		c.CodeLength = DefaultCodeLength
	}
	if c.ExpiresIn <= 0 {
		c.ExpiresIn = DefaultExpiresIn
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.ResendCooldown <= 0 {
		c.ResendCooldown = DefaultResendCooldown
	}
	return c
}

// Controller runs the per-phone OTP state machine. Business failures (wrong
// code, cooldown, expiry) are result values; only transport faults reach the
// result as upstream error text.
type Controller struct {
	store  *store.OTPStore
	sender Sender
	cfg    Config
	logger *logger.Logger
	now    func() time.Time
}

// NewController creates an OTP controller.
func NewController(st *store.OTPStore, sender Sender, cfg Config, log *logger.Logger) *Controller {
	return &Controller{
		store:  st,
		sender: sender,
		cfg:    cfg.withDefaults(),
		logger: log,
		now:    time.Now,
	}
}

// SendRequest asks for a challenge to be created and delivered.
type SendRequest struct {
	To        string
	Brand     string
	Template  string
	ExpiresIn time.Duration
}

// Send creates a new challenge for the phone and delivers the code. An
// active challenge inside its resend cooldown is left untouched and the
// send is rejected with the remaining wait. Delivery failure rolls the new
// challenge back.
func (c *Controller) Send(ctx context.Context, req SendRequest) model.OTPResult {
	to := whatsapp.NormalizeE164(req.To)
	if to == "" {
		metrics.OTPSendsTotal.WithLabelValues("invalid_phone").Inc()
		return failure("Invalid phone number format")
	}

	now := c.now()
	c.store.SweepExpired(now)

	if existing, ok := c.store.GetByPhone(to); ok && existing.ResendAvailableAt.After(now) {
		secondsLeft := int(math.Ceil(existing.ResendAvailableAt.Sub(now).Seconds()))
		metrics.OTPSendsTotal.WithLabelValues("cooldown").Inc()
		return failure(fmt.Sprintf("Resend available in %ds", secondsLeft))
	}

	expiresIn := req.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = c.cfg.ExpiresIn
	}

	code, err := generateCode(c.cfg.CodeLength)
	if err != nil {
		metrics.OTPSendsTotal.WithLabelValues("error").Inc()
		return failure("Failed to generate code")
	}

	challenge := model.OTPChallenge{
		SessionID:         uuid.New().String(),
		Code:              code,
		To:                to,
		ExpiresAt:         now.Add(expiresIn),
		AttemptsRemaining: c.cfg.MaxAttempts,
		ResendAvailableAt: now.Add(c.cfg.ResendCooldown),
	}
	c.store.Set(to, challenge)

	// The code never leaves the result; debug logging is the only place an
	// operator can see it.
	c.logger.Debug("OTP generated",
		zap.String("phone", to),
		zap.String("session_id", challenge.SessionID),
		zap.String("code", code),
	)

	message := renderTemplate(req.Template, req.Brand, code)
	if _, err := c.sender.SendText(ctx, to, message); err != nil {
		c.store.Delete(to)
		metrics.OTPSendsTotal.WithLabelValues("delivery_failed").Inc()
		c.logger.Warn("OTP delivery failed, challenge rolled back",
			zap.String("phone", to),
			zap.Error(err),
		)
		return failure(err.Error())
	}

	metrics.OTPSendsTotal.WithLabelValues("success").Inc()
	return success(challenge, challenge.AttemptsRemaining)
}

// Verify checks a submitted code against the live challenge for the phone.
// The phone's own challenge is resolved before any expiry sweep so that an
// expired challenge reports "OTP expired" rather than vanishing into "No
// active OTP session".
func (c *Controller) Verify(ctx context.Context, to, code string) model.OTPResult {
	phone := whatsapp.NormalizeE164(to)
	if phone == "" {
		metrics.OTPVerifiesTotal.WithLabelValues("invalid_phone").Inc()
		return failure("Invalid phone number format")
	}

	now := c.now()

	challenge, ok := c.store.GetByPhone(phone)
	if !ok {
		metrics.OTPVerifiesTotal.WithLabelValues("no_session").Inc()
		return failure("No active OTP session")
	}

	if !challenge.ExpiresAt.After(now) {
		c.store.Delete(phone)
		metrics.OTPVerifiesTotal.WithLabelValues("expired").Inc()
		return failure("OTP expired")
	}

	if challenge.AttemptsRemaining <= 0 {
		c.store.Delete(phone)
		metrics.OTPVerifiesTotal.WithLabelValues("exhausted").Inc()
		return failure("Max attempts exceeded")
	}

	if challenge.Code != code {
		remaining, _ := c.store.DecrementAttempts(phone)
		metrics.OTPVerifiesTotal.WithLabelValues("invalid_code").Inc()
		result := failure("Invalid code")
		result.AttemptsRemaining = &remaining
		return result
	}

	c.store.Delete(phone)
	metrics.OTPVerifiesTotal.WithLabelValues("success").Inc()
	return success(challenge, challenge.AttemptsRemaining)
}

func failure(message string) model.OTPResult {
	return model.OTPResult{Success: false, Error: message}
}

func success(challenge model.OTPChallenge, attemptsRemaining int) model.OTPResult {
	expiresAt := challenge.ExpiresAt
	return model.OTPResult{
		Success:           true,
		SessionID:         challenge.SessionID,
		ExpiresAt:         &expiresAt,
		AttemptsRemaining: &attemptsRemaining,
	}
}

// generateCode draws a uniform value in [0, 10^length) from crypto/rand and
// zero-pads it to length digits.
func generateCode(length int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

func renderTemplate(template, brand, code string) string {
	if template == "" {
		template = DefaultTemplate
	}
	out := strings.Replace(template, "{brand}", brand, 1)
	return strings.Replace(out, "{code}", code, 1)
}
