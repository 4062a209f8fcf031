// Package apierror provides the structured HTTP error taxonomy used by the
// gateway and its JSON wire representation.
//
// Every error carries a status and, independently, an optional
// machine-readable code and an optional human-readable message. Absent
// fields are left out of the body entirely; they are never written as null.
package apierror

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind describes a family of errors sharing one HTTP status.
//
// OptionalRepresentation marks kinds that produce no response body at all
// when the error carries no code.
type Kind struct {
	Status                 int
	OptionalRepresentation bool
}

// Fixed-status kinds.
var (
	KindBadRequest            = Kind{Status: http.StatusBadRequest}
	KindUnauthorized          = Kind{Status: http.StatusUnauthorized}
	KindForbidden             = Kind{Status: http.StatusForbidden}
	KindNotFound              = Kind{Status: http.StatusNotFound, OptionalRepresentation: true}
	KindMethodNotAllowed      = Kind{Status: http.StatusMethodNotAllowed, OptionalRepresentation: true}
	KindNotAcceptable         = Kind{Status: http.StatusNotAcceptable}
	KindConflict              = Kind{Status: http.StatusConflict}
	KindRequestEntityTooLarge = Kind{Status: http.StatusRequestEntityTooLarge}
	KindUnsupportedMediaType  = Kind{Status: http.StatusUnsupportedMediaType}
	KindInternal              = Kind{Status: http.StatusInternalServerError}
	KindBadGateway            = Kind{Status: http.StatusBadGateway}
	KindServiceUnavailable    = Kind{Status: http.StatusServiceUnavailable}
)

// ErrNoAllowedMethods is returned by MethodNotAllowed when the list of
// allowed methods is empty or contains a blank entry.
var ErrNoAllowedMethods = errors.New("apierror: allowed methods must be a non-empty list of non-blank methods")

// Error is a failure to be surfaced to the client.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Headers  http.Header
	Href     string
	HrefText string

	// PlatformName is serialized after the base fields when set.
	PlatformName string

	cause error
}

// Option customizes an Error at construction.
type Option func(*Error)

// WithHeader sets a response header carried by the error.
func WithHeader(name, value string) Option {
	return func(e *Error) {
		e.header().Set(name, value)
	}
}

// WithHref attaches a documentation link.
func WithHref(href, text string) Option {
	return func(e *Error) {
		e.Href = href
		e.HrefText = text
	}
}

// WithCause records the underlying error for errors.Is/As. It is never
// serialized.
func WithCause(err error) Option {
	return func(e *Error) {
		e.cause = err
	}
}

// New returns an error for an arbitrary status.
func New(status int, code, message string, opts ...Option) *Error {
	return newKind(Kind{Status: status}, code, message, opts...)
}

func newKind(k Kind, code, message string, opts ...Option) *Error {
	e := &Error{Kind: k, Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status returns the numeric HTTP status.
func (e *Error) Status() int {
	return e.Kind.Status
}

// StatusLine returns the status as it appears on the wire, e.g. "404 Not Found".
func (e *Error) StatusLine() string {
	return StatusLine(e.Kind.Status)
}

// StatusLine formats a numeric status with its reason phrase.
func StatusLine(status int) string {
	if text := http.StatusText(status); text != "" {
		return strconv.Itoa(status) + " " + text
	}
	return strconv.Itoa(status)
}

// HasRepresentation reports whether the error should be written with a body.
func (e *Error) HasRepresentation() bool {
	return !e.Kind.OptionalRepresentation || e.Code != ""
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{e.StatusLine()}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	s := strings.Join(parts, ": ")
	if e.cause != nil {
		s += " (" + e.cause.Error() + ")"
	}
	return s
}

// Unwrap returns the cause set with WithCause.
func (e *Error) Unwrap() error {
	return e.cause
}

// ToMap returns the present fields among status, code and message, followed
// by kind-specific fields.
func (e *Error) ToMap() map[string]any {
	m := map[string]any{"status": e.StatusLine()}
	for _, f := range e.fields()[1:] {
		m[f.key] = f.value
	}
	return m
}

type field struct {
	key   string
	value string
}

func (e *Error) fields() []field {
	out := []field{{"status", e.StatusLine()}}
	if e.Code != "" {
		out = append(out, field{"code", e.Code})
	}
	if e.Message != "" {
		out = append(out, field{"message", e.Message})
	}
	if e.PlatformName != "" {
		out = append(out, field{"platform_name", e.PlatformName})
	}
	return out
}

// MarshalJSON writes the fields of ToMap in their declared order.
func (e *Error) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range e.fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(f.key)
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *Error) header() http.Header {
	if e.Headers == nil {
		e.Headers = make(http.Header)
	}
	return e.Headers
}

// From converts any error into a taxonomy error. Errors that are not part
// of the taxonomy become a bare 500 so internal details never reach the
// client.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("", "", WithCause(err))
}

// BadRequest returns a 400 error.
func BadRequest(code, message string, opts ...Option) *Error {
	return newKind(KindBadRequest, code, message, opts...)
}

// Unauthorized returns a 401 error. Non-empty challenges are joined into
// the WWW-Authenticate header.
func Unauthorized(code, message string, challenges []string, opts ...Option) *Error {
	e := newKind(KindUnauthorized, code, message, opts...)
	if len(challenges) > 0 {
		e.header().Set("WWW-Authenticate", strings.Join(challenges, ", "))
	}
	return e
}

// Forbidden returns a 403 error.
func Forbidden(code, message string, opts ...Option) *Error {
	return newKind(KindForbidden, code, message, opts...)
}

// NotFound returns a 404 error. Without a code it has no body.
func NotFound(code, message string, opts ...Option) *Error {
	return newKind(KindNotFound, code, message, opts...)
}

// MethodNotAllowed returns a 405 error whose Allow header lists allowed.
// Without a code it has no body.
func MethodNotAllowed(allowed []string, code, message string, opts ...Option) (*Error, error) {
	if len(allowed) == 0 {
		return nil, ErrNoAllowedMethods
	}
	for _, m := range allowed {
		if strings.TrimSpace(m) == "" {
			return nil, ErrNoAllowedMethods
		}
	}
	e := newKind(KindMethodNotAllowed, code, message, opts...)
	e.header().Set("Allow", strings.Join(allowed, ", "))
	return e, nil
}

// NotAcceptable returns a 406 error.
func NotAcceptable(code, message string, opts ...Option) *Error {
	return newKind(KindNotAcceptable, code, message, opts...)
}

// Conflict returns a 409 error.
func Conflict(code, message string, opts ...Option) *Error {
	return newKind(KindConflict, code, message, opts...)
}

// RequestEntityTooLarge returns a 413 error.
func RequestEntityTooLarge(code, message string, opts ...Option) *Error {
	return newKind(KindRequestEntityTooLarge, code, message, opts...)
}

// UnsupportedMediaType returns a 415 error.
func UnsupportedMediaType(code, message string, opts ...Option) *Error {
	return newKind(KindUnsupportedMediaType, code, message, opts...)
}

// Internal returns a 500 error.
func Internal(code, message string, opts ...Option) *Error {
	return newKind(KindInternal, code, message, opts...)
}

// BadGateway returns a 502 error.
func BadGateway(code, message string, opts ...Option) *Error {
	return newKind(KindBadGateway, code, message, opts...)
}

// ServiceUnavailable returns a 503 error. retryAfter sets the Retry-After
// header: a time.Time is written as an HTTP-date, a time.Duration as whole
// seconds, anything else in its default string form. nil or an empty
// string leaves the header out.
func ServiceUnavailable(code, message string, retryAfter any, opts ...Option) *Error {
	e := newKind(KindServiceUnavailable, code, message, opts...)
	if v := formatRetryAfter(retryAfter); v != "" {
		e.header().Set("Retry-After", v)
	}
	return e
}

func formatRetryAfter(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(http.TimeFormat)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(http.TimeFormat)
	case time.Duration:
		secs := int64((t + time.Second - 1) / time.Second)
		if secs < 0 {
			secs = 0
		}
		return strconv.FormatInt(secs, 10)
	default:
		return fmt.Sprint(t)
	}
}
