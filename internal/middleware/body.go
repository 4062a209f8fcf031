package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/menezmethod/botgate/internal/apierror"
	"github.com/menezmethod/botgate/internal/pipeline"
)

// DefaultMaxBodyBytes bounds request bodies read by BodyParser.
const DefaultMaxBodyBytes int64 = 1 << 20

// Error codes produced by BodyParser.
const (
	CodeUnsupportedMediaType = "UnsupportedMediaType"
	CodeInvalidJSON          = "InvalidJSON"
	CodeInvalidForm          = "InvalidForm"
	CodeBodyTooLarge         = "BodyTooLarge"
	CodeBodyReadFailed       = "BodyReadFailed"
	CodeInvalidResponse      = "InvalidResponse"
)

const (
	mediaTypeJSON = "application/json"
	mediaTypeForm = "application/x-www-form-urlencoded"
)

// BodyParser is a pipeline hook that decodes request bodies into
// Request.JSON and encodes Response.JSON into the response body.
//
// Only body-bearing methods are parsed. JSON bodies (application/json,
// text/json and +json types) are decoded, and URL-encoded forms are exposed
// as a map when enabled. Any other content type is rejected with 415 before
// the body is read.
type BodyParser struct {
	methods        map[string]bool
	formURLEncoded bool
	maxBytes       int64
	logger         *slog.Logger
}

// BodyParserOption configures a BodyParser.
type BodyParserOption func(*BodyParser)

// WithMethods sets the methods whose bodies are parsed. GET, HEAD, DELETE,
// OPTIONS and TRACE are never parsed and are ignored here.
func WithMethods(methods ...string) BodyParserOption {
	return func(b *BodyParser) {
		b.methods = make(map[string]bool, len(methods))
		for _, m := range methods {
			m = strings.ToUpper(strings.TrimSpace(m))
			switch m {
			case "", http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions, http.MethodTrace:
				continue
			}
			b.methods[m] = true
		}
	}
}

// WithFormURLEncoded enables or disables form body support.
func WithFormURLEncoded(enabled bool) BodyParserOption {
	return func(b *BodyParser) {
		b.formURLEncoded = enabled
	}
}

// WithMaxBodyBytes bounds the request body. n <= 0 disables the bound.
func WithMaxBodyBytes(n int64) BodyParserOption {
	return func(b *BodyParser) {
		b.maxBytes = n
	}
}

// WithBodyLogger sets the logger used for rejected bodies.
func WithBodyLogger(logger *slog.Logger) BodyParserOption {
	return func(b *BodyParser) {
		b.logger = logger
	}
}

// NewBodyParser returns a BodyParser parsing POST, PUT and PATCH bodies
// with form support on and a DefaultMaxBodyBytes bound.
func NewBodyParser(opts ...BodyParserOption) *BodyParser {
	b := &BodyParser{
		formURLEncoded: true,
		maxBytes:       DefaultMaxBodyBytes,
		logger:         slog.Default(),
	}
	WithMethods(http.MethodPost, http.MethodPut, http.MethodPatch)(b)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ProcessResource decodes the request body.
func (b *BodyParser) ProcessResource(req *pipeline.Request, _ *pipeline.Response, res pipeline.Resource, _ pipeline.Params) error {
	if pipeline.BodyParserDisabled(res) || !b.methods[req.Method] {
		return nil
	}

	mediaType := parseMediaType(req.Header.Get("Content-Type"))
	switch {
	case isJSONMediaType(mediaType):
		return b.decodeJSON(req)
	case b.formURLEncoded && mediaType == mediaTypeForm:
		return b.decodeForm(req)
	default:
		return b.reject(req, "unsupported_media_type", apierror.UnsupportedMediaType(CodeUnsupportedMediaType,
			fmt.Sprintf("Unsupported content type %q; expected application/json.", mediaType)))
	}
}

// ProcessResponse encodes Response.JSON unless the handler set a raw body.
func (b *BodyParser) ProcessResponse(req *pipeline.Request, resp *pipeline.Response, _ pipeline.Resource, succeeded bool) error {
	if !succeeded {
		return nil
	}
	if resp.Header.Get("Content-Type") == "" {
		resp.Header.Set("Content-Type", mediaTypeJSON)
	}
	if resp.HasBody() {
		return nil
	}

	body, err := marshalValue(resp.JSON)
	if err != nil {
		return b.reject(req, "invalid_response", apierror.Internal(CodeInvalidResponse,
			"Unexpected error serializing response.", apierror.WithCause(err)))
	}
	resp.SetBody(body)
	return nil
}

func (b *BodyParser) decodeJSON(req *pipeline.Request) error {
	data, err := b.readBody(req)
	if err != nil {
		return err
	}
	if !utf8.Valid(data) {
		return b.reject(req, "invalid_json", apierror.BadRequest(CodeInvalidJSON,
			"Invalid JSON received: body is not valid UTF-8."))
	}

	req.SetText(string(data))
	if strings.TrimSpace(req.Text) == "" {
		req.SetJSON(map[string]any{})
		return nil
	}

	v, err := unmarshalValue(data)
	if err != nil {
		return b.reject(req, "invalid_json", apierror.BadRequest(CodeInvalidJSON,
			"Invalid JSON received: "+err.Error(), apierror.WithCause(err)))
	}
	req.SetJSON(v)
	return nil
}

func (b *BodyParser) decodeForm(req *pipeline.Request) error {
	if b.maxBytes > 0 && req.Body != nil {
		req.Body = http.MaxBytesReader(nil, req.Body, b.maxBytes)
	}
	if err := req.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return b.reject(req, "too_large", b.tooLarge())
		}
		return b.reject(req, "invalid_form", apierror.BadRequest(CodeInvalidForm,
			"Invalid form received: "+err.Error(), apierror.WithCause(err)))
	}

	form := make(map[string]any, len(req.Form))
	for key, values := range req.Form {
		if len(values) == 1 {
			form[key] = values[0]
			continue
		}
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		form[key] = list
	}
	req.SetJSON(form)
	return nil
}

func (b *BodyParser) readBody(req *pipeline.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	var r io.Reader = req.Body
	if b.maxBytes > 0 {
		r = io.LimitReader(req.Body, b.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, b.reject(req, "too_large", b.tooLarge())
		}
		return nil, b.reject(req, "read_error", apierror.Internal(CodeBodyReadFailed,
			"Unexpected error reading request body.", apierror.WithCause(err)))
	}
	if b.maxBytes > 0 && int64(len(data)) > b.maxBytes {
		return nil, b.reject(req, "too_large", b.tooLarge())
	}
	return data, nil
}

func (b *BodyParser) tooLarge() *apierror.Error {
	return apierror.RequestEntityTooLarge(CodeBodyTooLarge,
		fmt.Sprintf("Request body exceeds %d bytes.", b.maxBytes))
}

func (b *BodyParser) reject(req *pipeline.Request, reason string, err *apierror.Error) *apierror.Error {
	BodyRejections.WithLabelValues(reason).Inc()
	b.logger.DebugContext(req.Context(), "body rejected",
		"reason", reason,
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", RequestIDFromContext(req.Context()),
	)
	return err
}

// parseMediaType returns the lower-cased media type of a Content-Type
// header, or "" when it is missing or malformed.
func parseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

func isJSONMediaType(mt string) bool {
	return mt == mediaTypeJSON || mt == "text/json" || strings.HasSuffix(mt, "+json")
}

// unmarshalValue decodes exactly one JSON value. Numbers stay json.Number.
func unmarshalValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

// marshalValue renders a structured response value as compact JSON. A nil
// value, or one encoding to null, becomes {}; anything that does not
// encode to an object or an array is an error.
func marshalValue(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}

	out := bytes.TrimSpace(buf.Bytes())
	switch {
	case string(out) == "null":
		return "{}", nil
	case len(out) > 0 && (out[0] == '{' || out[0] == '['):
		return string(out), nil
	default:
		return "", fmt.Errorf("response value of type %T is neither an object nor an array", v)
	}
}
