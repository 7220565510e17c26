// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/capitalize-ai/whatsapp-platform/internal/agent"
	"github.com/capitalize-ai/whatsapp-platform/internal/config"
	"github.com/capitalize-ai/whatsapp-platform/internal/event"
	"github.com/capitalize-ai/whatsapp-platform/internal/handler"
	"github.com/capitalize-ai/whatsapp-platform/internal/llm"
	"github.com/capitalize-ai/whatsapp-platform/internal/middleware"
	"github.com/capitalize-ai/whatsapp-platform/internal/model"
	natsclient "github.com/capitalize-ai/whatsapp-platform/internal/nats"
	"github.com/capitalize-ai/whatsapp-platform/internal/otp"
	"github.com/capitalize-ai/whatsapp-platform/internal/payments"
	"github.com/capitalize-ai/whatsapp-platform/internal/store"
	"github.com/capitalize-ai/whatsapp-platform/internal/whatsapp"
	"github.com/capitalize-ai/whatsapp-platform/internal/workflow"
	"github.com/capitalize-ai/whatsapp-platform/pkg/logger"
	"github.com/capitalize-ai/whatsapp-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "whatsapp-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS when the durable event feed is enabled
	var natsClient *natsclient.Client
	var feed workflow.Feed
	if cfg.NATSEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
		feed = streamManager
	}

	// Outbound WhatsApp transport
	var transport *whatsapp.Client
	if cfg.KapsoAPIKey != "" && cfg.PhoneNumberID != "" {
		transport, err = whatsapp.NewClient(whatsapp.Config{
			APIKey:        cfg.KapsoAPIKey,
			BaseURL:       cfg.KapsoBaseURL,
			PhoneNumberID: cfg.PhoneNumberID,
		})
		if err != nil {
			log.Error("failed to create WhatsApp client", zap.Error(err))
			os.Exit(1)
		}
	} else {
		log.Warn("WhatsApp transport not configured, outbound messaging disabled")
	}

	// Completion provider
	var llmClient llm.Client
	llmClient, err = llm.NewClient(llm.Provider(cfg.DefaultLLM), llm.Config{
		GroqAPIKey:      cfg.GroqAPIKey,
		GroqBaseURL:     cfg.GroqBaseURL,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		DefaultModel:    cfg.DefaultModel,
	})
	if err != nil {
		log.Warn("failed to create LLM client, agent features disabled", zap.Error(err))
		llmClient = nil
	}

	// Conversational agent
	var conversationAgent *agent.Agent
	if llmClient != nil && transport != nil {
		conversationAgent = agent.New(llmClient, transport, store.NewContextStore(), agent.Config{
			SystemPrompt:   cfg.SystemPrompt,
			ContextWindow:  cfg.ContextWindow,
			SessionTimeout: cfg.SessionTimeout,
		}, log)
	}

	// OTP controller
	var otpController *otp.Controller
	if transport != nil {
		otpController = otp.NewController(store.NewOTPStore(), transport, otp.Config{
			CodeLength:     cfg.OTPCodeLength,
			ExpiresIn:      cfg.OTPExpiresIn,
			MaxAttempts:    cfg.OTPMaxAttempts,
			ResendCooldown: cfg.OTPResendCooldown,
		}, log)
	}

	// Payments
	var paymentService *payments.Service
	if cfg.StripeSecretKey != "" && transport != nil {
		paymentService, err = payments.New(transport, payments.Config{
			SecretKey:      cfg.StripeSecretKey,
			WebhookSecret:  cfg.StripeWebhookSecret,
			RedirectURL:    cfg.PaymentRedirectURL,
			SuccessMessage: cfg.PaymentSuccessMsg,
			FailedMessage:  cfg.PaymentFailedMsg,
		}, log)
		if err != nil {
			log.Error("failed to create payment service", zap.Error(err))
			os.Exit(1)
		}
	}

	// Workflow engine and automation forwarding
	engine := workflow.NewEngine(event.NewDispatcher(), feed, log)
	forwarder := workflow.NewForwarder(cfg.AutomationWebhooks, log)
	for name, url := range cfg.AutomationWebhooks {
		if !model.IsValidEventType(name) {
			log.Warn("automation webhook name is not an event type, skipping",
				zap.String("name", name))
			continue
		}
		typ, url := model.EventType(name), url
		engine.On(typ, func(ctx context.Context, data model.EventData) error {
			return forwarder.Trigger(ctx, url, model.Event{Type: typ, Data: data})
		})
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient, cfg.NATSEnabled)
	webhookAgent := conversationAgent
	if !cfg.AutoReply {
		webhookAgent = nil
	}
	webhookHandler := handler.NewWebhookHandler(engine, webhookAgent, cfg.WebhookAppSecret, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Provider webhooks (signature-verified, no auth)
	r.Post("/webhooks/whatsapp", webhookHandler.Receive)
	if paymentService != nil {
		paymentHandler := handler.NewPaymentHandler(paymentService, log)
		r.Post("/webhooks/stripe", paymentHandler.StripeWebhook)
	}

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		if conversationAgent != nil {
			chatHandler := handler.NewChatHandler(conversationAgent, log)
			r.Post("/chat", chatHandler.Chat)
			r.Route("/chat/{userId}/context", func(r chi.Router) {
				r.Get("/", chatHandler.GetContext)
				r.Delete("/", chatHandler.ClearContext)
			})
		}

		if otpController != nil {
			otpHandler := handler.NewOTPHandler(otpController, cfg.OTPBrand, log)
			r.Post("/otp/send", otpHandler.Send)
			r.Post("/otp/verify", otpHandler.Verify)
		}

		if paymentService != nil {
			paymentHandler := handler.NewPaymentHandler(paymentService, log)
			r.Post("/payments", paymentHandler.Create)
		}
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
