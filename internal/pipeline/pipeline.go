// Package pipeline runs resources behind two-phase hooks.
//
// A Hook sees every request twice: ProcessResource runs before the
// resource's responder, ProcessResponse after it. Hooks talk to the
// resource only through the Request and Response slots, and abort the
// request by returning an error, which is rendered through the apierror
// taxonomy.
//
//	h := pipeline.New(echo, logger, bodyParser, secretGate)
//	// Request order:  bodyParser → secretGate → echo.OnPost
//	// Response order: secretGate → bodyParser
package pipeline

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/menezmethod/botgate/internal/apierror"
)

// Hook is a request/response interceptor.
type Hook interface {
	ProcessResource(req *Request, resp *Response, res Resource, params Params) error
	ProcessResponse(req *Request, resp *Response, res Resource, succeeded bool) error
}

// Guard is a resource-phase check, usable as a per-route hook via Before.
type Guard func(req *Request, resp *Response, res Resource, params Params) error

// Before turns guards into a Hook with no response phase.
func Before(guards ...Guard) Hook {
	return beforeHook(guards)
}

type beforeHook []Guard

func (b beforeHook) ProcessResource(req *Request, resp *Response, res Resource, params Params) error {
	for _, g := range b {
		if err := g(req, resp, res, params); err != nil {
			return err
		}
	}
	return nil
}

func (beforeHook) ProcessResponse(*Request, *Response, Resource, bool) error { return nil }

// Handler serves one resource through its hooks.
type Handler struct {
	resource Resource
	hooks    []Hook
	logger   *slog.Logger
}

// New returns a Handler for res. Nil hooks are skipped.
func New(res Resource, logger *slog.Logger, hooks ...Hook) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &Handler{resource: res, logger: logger}
	for _, hk := range hooks {
		if hk != nil {
			h.hooks = append(h.hooks, hk)
		}
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params := routeParams(r)
	req := &Request{Request: r, Params: params}
	resp := NewResponse()

	var err error
	for _, hk := range h.hooks {
		if err = hk.ProcessResource(req, resp, h.resource, params); err != nil {
			break
		}
	}
	if err == nil {
		err = h.respond(req, resp)
	}

	succeeded := err == nil
	for i := len(h.hooks) - 1; i >= 0; i-- {
		perr := h.hooks[i].ProcessResponse(req, resp, h.resource, succeeded)
		if perr == nil {
			continue
		}
		if err == nil {
			err = perr
			continue
		}
		h.logger.WarnContext(r.Context(), "response hook failed after earlier error",
			"method", r.Method,
			"path", r.URL.Path,
			"err", perr,
		)
	}

	if err != nil {
		h.fail(w, req, err)
		return
	}
	writeResponse(w, resp)
}

func (h *Handler) respond(req *Request, resp *Response) error {
	if req.Method == http.MethodOptions {
		if o, ok := h.resource.(Optioner); ok {
			return o.OnOptions(req, resp)
		}
		resp.Header.Set("Allow", strings.Join(AllowedMethods(h.resource), ", "))
		resp.SetBody("")
		return nil
	}

	fn, ok := ResponderFor(h.resource, req.Method)
	if !ok {
		apiErr, err := apierror.MethodNotAllowed(AllowedMethods(h.resource), "", "")
		if err != nil {
			return err
		}
		return apiErr
	}
	return fn(req, resp)
}

func (h *Handler) fail(w http.ResponseWriter, req *Request, err error) {
	apiErr := apierror.From(err)
	ctx := req.Context()

	if apiErr.Status() >= http.StatusInternalServerError {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, apiErr.StatusLine())
		h.logger.ErrorContext(ctx, "request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"status", apiErr.Status(),
			"code", apiErr.Code,
			"err", err,
		)
	} else {
		h.logger.DebugContext(ctx, "request rejected",
			"method", req.Method,
			"path", req.URL.Path,
			"status", apiErr.Status(),
			"code", apiErr.Code,
		)
	}

	apierror.Write(w, apiErr)
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	h := w.Header()
	for name, values := range resp.Header {
		h[name] = values
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != nil {
		_, _ = io.WriteString(w, *resp.Body)
	}
}

func routeParams(r *http.Request) Params {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return Params{}
	}
	p := make(Params, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		if k == "*" || i >= len(rctx.URLParams.Values) {
			continue
		}
		p[k] = rctx.URLParams.Values[i]
	}
	return p
}
