package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/menezmethod/botgate/internal/apierror"
	"github.com/menezmethod/botgate/internal/pipeline"
)

// CodeInvalidSecret is the code of 401 errors raised by the secret checks.
const CodeInvalidSecret = "InvalidSecret"

// ErrEmptySecret is returned by NewSecretGate for an empty secret.
var ErrEmptySecret = errors.New("middleware: secret gate requires a non-empty secret")

const secretContextKey contextKey = "secret"

// SecretGate is a pipeline hook that compares the Authorization header with
// a shared secret.
//
// Resources opting out through pipeline.SecretPolicy pass untouched. For
// every other resource the header is checked when the gate is required,
// and the secret is attached to the request context either way so that
// RequireSecret can enforce it per route.
type SecretGate struct {
	secret   string
	required bool
	logger   *slog.Logger
}

// SecretGateOption configures a SecretGate.
type SecretGateOption func(*SecretGate)

// WithRequired sets whether the gate enforces the secret itself.
func WithRequired(required bool) SecretGateOption {
	return func(g *SecretGate) {
		g.required = required
	}
}

// WithSecretLogger sets the logger used for rejections.
func WithSecretLogger(logger *slog.Logger) SecretGateOption {
	return func(g *SecretGate) {
		g.logger = logger
	}
}

// NewSecretGate returns a gate for secret. It is required unless
// WithRequired(false) is given.
func NewSecretGate(secret string, opts ...SecretGateOption) (*SecretGate, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	g := &SecretGate{secret: secret, required: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Required reports whether the gate enforces the secret.
func (g *SecretGate) Required() bool {
	return g.required
}

// ProcessResource checks the Authorization header and attaches the secret.
func (g *SecretGate) ProcessResource(req *pipeline.Request, _ *pipeline.Response, res pipeline.Resource, _ pipeline.Params) error {
	if !pipeline.RequiresSecret(res) {
		return nil
	}
	if g.required && !secretMatches(req.Header.Get("Authorization"), g.secret) {
		return rejectSecret(g.logger, req, "gate")
	}
	req.Request = req.WithContext(WithSecret(req.Context(), g.secret))
	return nil
}

// ProcessResponse does nothing.
func (g *SecretGate) ProcessResponse(*pipeline.Request, *pipeline.Response, pipeline.Resource, bool) error {
	return nil
}

// RequireSecret is a per-route guard comparing the Authorization header
// with the secret attached by a SecretGate. Without an attached secret it
// rejects every request.
func RequireSecret(req *pipeline.Request, _ *pipeline.Response, _ pipeline.Resource, _ pipeline.Params) error {
	secret, ok := SecretFromContext(req.Context())
	if !ok || !secretMatches(req.Header.Get("Authorization"), secret) {
		return rejectSecret(slog.Default(), req, "guard")
	}
	return nil
}

// WithSecret attaches secret to ctx.
func WithSecret(ctx context.Context, secret string) context.Context {
	return context.WithValue(ctx, secretContextKey, secret)
}

// SecretFromContext retrieves the secret attached by a SecretGate.
func SecretFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(secretContextKey).(string)
	return s, ok && s != ""
}

// secretMatches is exact equality; an empty header never matches.
func secretMatches(header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(secret)) == 1
}

func rejectSecret(logger *slog.Logger, req *pipeline.Request, source string) error {
	SecretRejections.WithLabelValues(source).Inc()
	logger.WarnContext(req.Context(), "secret rejected",
		"source", source,
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", RequestIDFromContext(req.Context()),
	)
	return apierror.Unauthorized(CodeInvalidSecret, "Missing or invalid secret.", nil)
}
