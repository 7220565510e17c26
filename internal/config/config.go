// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// WhatsApp transport (Kapso-hosted Cloud API)
	KapsoAPIKey   string
	KapsoBaseURL  string
	PhoneNumberID string

	// Inbound webhook signature verification
	WebhookAppSecret string

	// Agent settings
	GroqAPIKey     string
	GroqBaseURL    string
	OpenAIAPIKey   string
	AnthropicAPIKey string
	DefaultLLM     string
	DefaultModel   string
	SystemPrompt   string
	ContextWindow  int
	SessionTimeout time.Duration
	AutoReply      bool

	// OTP settings
	OTPCodeLength     int
	OTPExpiresIn      time.Duration
	OTPMaxAttempts    int
	OTPResendCooldown time.Duration
	OTPBrand          string

	// Automation webhooks: name=url pairs, comma separated
	AutomationWebhooks map[string]string

	// Payments
	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentRedirectURL  string
	PaymentSuccessMsg   string
	PaymentFailedMsg    string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string
	NATSEnabled  bool

	// JWT settings
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// WhatsApp
		KapsoAPIKey:   getEnv("KAPSO_API_KEY", ""),
		KapsoBaseURL:  getEnv("KAPSO_BASE_URL", "https://api.kapso.ai/meta/whatsapp"),
		PhoneNumberID: getEnv("PHONE_NUMBER_ID", ""),

		// Webhook
		WebhookAppSecret: getEnv("WEBHOOK_APP_SECRET", ""),

		// Agent
		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:     getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "groq"),
		DefaultModel:    getEnv("DEFAULT_MODEL", "openai/gpt-oss-120b"),
		SystemPrompt:    getEnv("SYSTEM_PROMPT", ""),
		ContextWindow:   getIntEnv("CONTEXT_WINDOW", 10),
		SessionTimeout:  getDurationEnv("SESSION_TIMEOUT", 5*time.Minute),
		AutoReply:       getBoolEnv("AUTO_REPLY", true),

		// OTP
		OTPCodeLength:     getIntEnv("OTP_CODE_LENGTH", 6),
		OTPExpiresIn:      getDurationEnv("OTP_EXPIRES_IN", 5*time.Minute),
		OTPMaxAttempts:    getIntEnv("OTP_MAX_ATTEMPTS", 3),
		OTPResendCooldown: getDurationEnv("OTP_RESEND_COOLDOWN", 30*time.Second),
		OTPBrand:          getEnv("OTP_BRAND", ""),

		// Automation
		AutomationWebhooks: getMapEnv("AUTOMATION_WEBHOOKS"),

		// Payments
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PaymentRedirectURL:  getEnv("PAYMENT_REDIRECT_URL", ""),
		PaymentSuccessMsg:   getEnv("PAYMENT_SUCCESS_MESSAGE", ""),
		PaymentFailedMsg:    getEnv("PAYMENT_FAILED_MESSAGE", ""),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),
		NATSEnabled:  getBoolEnv("NATS_ENABLED", false),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getMapEnv parses "name=url,name2=url2" into a map. Malformed pairs are skipped.
func getMapEnv(key string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		name, url, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" || url == "" {
			continue
		}
		out[name] = url
	}
	return out
}
