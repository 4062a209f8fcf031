// Package server configures and runs the HTTP server.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/menezmethod/botgate/internal/apierror"
	"github.com/menezmethod/botgate/internal/config"
	"github.com/menezmethod/botgate/internal/handler"
	"github.com/menezmethod/botgate/internal/middleware"
	"github.com/menezmethod/botgate/internal/pipeline"
)

// New creates a configured *http.Server with all routes and middleware wired.
// outer wraps the router, first entry outermost; nil entries are skipped.
func New(cfg config.Config, secret string, store *handler.BotStore, logger *slog.Logger, outer ...middleware.Middleware) (*http.Server, error) {
	router, err := Router(cfg, secret, store, logger)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      middleware.Chain(router, outer...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}, nil
}

// Router returns the gateway's routes. Every resource runs behind the body
// parser and the secret gate; message sending additionally requires the
// secret on its own.
//
// Middleware order (outermost → innermost): RequestID → Recover → Metrics → Logging.
func Router(cfg config.Config, secret string, store *handler.BotStore, logger *slog.Logger) (http.Handler, error) {
	parser := middleware.NewBodyParser(
		middleware.WithMaxBodyBytes(cfg.Body.MaxBytes),
		middleware.WithFormURLEncoded(cfg.Body.FormURLEncoded),
		middleware.WithBodyLogger(logger),
	)
	gate, err := middleware.NewSecretGate(secret,
		middleware.WithRequired(cfg.Secret.Required),
		middleware.WithSecretLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	mount := func(res pipeline.Resource, guards ...pipeline.Guard) http.Handler {
		hooks := []pipeline.Hook{parser, gate}
		if len(guards) > 0 {
			hooks = append(hooks, pipeline.Before(guards...))
		}
		return pipeline.New(res, logger, hooks...)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Recover(logger),
		middleware.Metrics(),
		middleware.Logging(logger),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierror.Write(w, apierror.NotFound("", ""))
	})

	// Probes and metrics.
	r.Handle("/health", mount(handler.Health{}))
	r.Handle("/version", mount(handler.Version{}))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Handle("/echo", mount(handler.Echo{}))
		r.Handle("/bots", mount(handler.Bots{Store: store}))
		r.Handle("/bots/{id}", mount(handler.BotItem{Store: store}))
		r.Handle("/bots/{id}/platform", mount(handler.BotPlatform{Store: store}))
		r.Handle("/bots/{id}/messages", mount(handler.BotMessages{Store: store}, middleware.RequireSecret))
	})

	return r, nil
}

// Shutdown gracefully shuts down the server with the given context.
func Shutdown(ctx context.Context, srv *http.Server, logger *slog.Logger) {
	logger.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}
