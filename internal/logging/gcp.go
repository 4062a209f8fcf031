package logging

import (
	"context"
	"log/slog"
)

// ServiceName labels the monitored resource attached by the GCP handler.
const ServiceName = "botgate"

// severityByLevel maps slog levels to GCP Cloud Logging severities.
// https://cloud.google.com/logging/docs/structured-logging#special-payload-fields
var severityByLevel = map[slog.Level]string{
	slog.LevelDebug: "DEBUG",
	slog.LevelInfo:  "INFO",
	slog.LevelWarn:  "WARNING",
	slog.LevelError: "ERROR",
}

// GCPHandler wraps a slog.Handler and adds "severity", and optionally a
// "resource" block, so JSON logs are parsed natively by Cloud Logging.
type GCPHandler struct {
	inner   slog.Handler
	service string
}

// NewGCPHandler returns a handler adding severity to every record. A
// non-empty service also adds a generic_task resource labelled with it.
func NewGCPHandler(inner slog.Handler, service string) *GCPHandler {
	return &GCPHandler{inner: inner, service: service}
}

// Enabled reports whether the inner handler would log this level.
func (h *GCPHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds severity (and the resource) then forwards to the inner handler.
func (h *GCPHandler) Handle(ctx context.Context, r slog.Record) error {
	sev, ok := severityByLevel[r.Level]
	if !ok {
		sev = "DEFAULT"
	}
	r.AddAttrs(slog.String("severity", sev))
	if h.service != "" {
		r.AddAttrs(slog.Any("resource", map[string]any{
			"type":   "generic_task",
			"labels": map[string]string{"service": h.service},
		}))
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new handler with the given attributes.
func (h *GCPHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &GCPHandler{inner: h.inner.WithAttrs(attrs), service: h.service}
}

// WithGroup returns a new handler for the given group.
func (h *GCPHandler) WithGroup(name string) slog.Handler {
	return &GCPHandler{inner: h.inner.WithGroup(name), service: h.service}
}
