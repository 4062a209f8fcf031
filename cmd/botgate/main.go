package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/menezmethod/botgate/internal/auth"
	"github.com/menezmethod/botgate/internal/config"
	"github.com/menezmethod/botgate/internal/handler"
	"github.com/menezmethod/botgate/internal/logging"
	"github.com/menezmethod/botgate/internal/middleware"
	"github.com/menezmethod/botgate/internal/observability"
	"github.com/menezmethod/botgate/internal/platform"
	"github.com/menezmethod/botgate/internal/server"
	"github.com/menezmethod/botgate/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional, env vars work without it)")
	flag.Parse()

	// Load configuration: defaults -> .env -> YAML file -> env vars.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	secret, err := auth.LoadSecret(cfg.Secret.File)
	if err != nil {
		logger.Error("failed to load secret", "err", err)
		os.Exit(1)
	}
	logger.Info("secret loaded", "required", cfg.Secret.Required)

	// Register platform connectors. Platforms without a webhook only log.
	platforms := platform.NewRegistry()
	for _, name := range platform.Supported {
		platforms.Register(name, platform.NewLogSender(logger))
	}
	for _, p := range cfg.Platforms {
		platforms.Register(p.Name, platform.NewWebhook(p.Name, p.WebhookURL, p.TimeoutOrDefault()))
		logger.Info("platform webhook registered", "platform", p.Name, "timeout", p.TimeoutOrDefault())
	}

	// Optional OpenTelemetry tracing around every request.
	var (
		tp      *observability.TracerProvider
		tracing middleware.Middleware
	)
	if cfg.Observability.OTelEnabled {
		tp, err = observability.NewTracerProvider(context.Background(), cfg.Observability.OTelEndpoint, cfg.Observability.OTelServiceName)
		if err != nil {
			logger.Error("otel tracer provider failed", "err", err)
			os.Exit(1)
		}
		tracing = observability.Middleware(cfg.Observability.OTelServiceName)
		logger.Info("opentelemetry tracing enabled", "endpoint", cfg.Observability.OTelEndpoint)
	}

	srv, err := server.New(cfg, secret, handler.NewBotStore(platforms), logger, tracing)
	if err != nil {
		logger.Error("failed to build server", "err", err)
		os.Exit(1)
	}

	// Serve until SIGINT/SIGTERM, then drain within 15s.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Server.Addr(), "version", version.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx, srv, logger)
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown error", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
