package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/availability"
	"github.com/architect-ai/model-router/internal/config"
	"github.com/architect-ai/model-router/internal/invocation"
	"github.com/architect-ai/model-router/internal/overrides"
	"github.com/architect-ai/model-router/internal/performance"
	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/providers/anthropic"
	"github.com/architect-ai/model-router/internal/providers/gemini"
	"github.com/architect-ai/model-router/internal/providers/openai"
	"github.com/architect-ai/model-router/internal/providers/together"
	"github.com/architect-ai/model-router/internal/registry"
	"github.com/architect-ai/model-router/internal/routing"
	"github.com/architect-ai/model-router/internal/server"
	"github.com/architect-ai/model-router/internal/throttle"
)

// Together's chat endpoint has no gpt-4o-mini; probe with a cheap hosted model
const togetherProbeModel = "meta-llama/Llama-3.3-70B-Instruct-Turbo"

// Application represents the main application
type Application struct {
	config    *config.Config
	providers *providers.Set
	router    *routing.Router
	logger    *logrus.Logger
}

// NewApplication loads configuration and wires every component. No network
// I/O happens here.
func NewApplication(ctx context.Context, configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	set, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	reg := registry.NewRegistry()
	for provider, interval := range cfg.Router.RateLimits {
		reg.SetRateLimit(provider, interval)
	}

	tracker, err := performance.NewTracker(cfg.Router.PerformanceCapacity, logger)
	if err != nil {
		return nil, err
	}

	pacer := throttle.NewPacer(func(provider string) time.Duration {
		return reg.GetRateLimiting(provider).MinInterval
	}, logger)

	engine := invocation.NewEngine(set, tracker, pacer, cfg.ToEngineConfig(), logger)
	monitor := availability.NewMonitor(set, logger, availability.WithProbeTimeout(cfg.Router.ProbeTimeout))
	resolver := overrides.NewResolver(overrides.WithPrefix(cfg.Router.OverridePrefix))

	return &Application{
		config:    cfg,
		providers: set,
		router:    routing.NewRouter(reg, resolver, monitor, engine, tracker, logger),
		logger:    logger,
	}, nil
}

// Serve runs the HTTP server until SIGINT or SIGTERM
func (app *Application) Serve(ctx context.Context) error {
	if app.providers.Len() == 0 {
		return errors.New("no providers were registered - check your configuration and API keys")
	}

	app.logger.WithField("providers", app.providers.Names()).Info("Starting model router")

	if err := app.router.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}
	defer app.router.Close()

	srv, err := server.NewServer(app.router, app.config.ToServerConfig(), app.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

// setupLogger configures the logger based on configuration
func setupLogger(logger *logrus.Logger, config config.LoggingConfig) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	logger.SetLevel(level)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", config.Format)
	}

	switch config.Output {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// buildProviders registers a client for every provider hint that has
// credentials. Hints without a client make their tiers fail and escalate.
func buildProviders(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*providers.Set, error) {
	set := providers.NewSet(logger)

	if c := cfg.Providers.OpenAI; c != nil && c.APIKey != "" {
		set.RegisterText(openai.NewProvider(registry.ProviderOpenAI, c, logger))
		set.RegisterImage(openai.NewImageProvider(registry.ProviderOpenAIImage, c, logger))
	}

	if c := cfg.Providers.Anthropic; c != nil && c.APIKey != "" {
		set.RegisterText(anthropic.NewProvider(c, logger))
	}

	if c := cfg.Providers.Gemini; c != nil && c.APIKey != "" {
		p, err := gemini.NewProvider(ctx, c, logger)
		if err != nil {
			return nil, err
		}
		set.RegisterText(p)
	}

	if c := cfg.Providers.Together; c != nil && c.APIKey != "" {
		baseURL := c.BaseURL
		if baseURL == "" {
			baseURL = together.DefaultBaseURL
		}
		set.RegisterText(openai.NewProvider(registry.ProviderTogether, &openai.Config{
			APIKey:     c.APIKey,
			BaseURL:    baseURL,
			ProbeModel: togetherProbeModel,
			Timeout:    c.Timeout,
		}, logger))
		set.RegisterImage(together.NewImageProvider(registry.ProviderTogetherImage, c, logger))
	}

	logger.WithFields(logrus.Fields{
		"count":     set.Len(),
		"providers": set.Names(),
	}).Info("Provider registration completed")
	return set, nil
}
