// Package middleware provides the request pipeline hooks (body negotiation
// and the shared-secret gate) along with the net/http middleware wrapped
// around every route: request IDs, panic recovery, logging and metrics.
package middleware

import "net/http"

// contextKey is an unexported type for context keys in this package.
type contextKey string

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware in the order given. The first middleware
// in the list is the outermost (runs first on request, last on response).
// Nil entries are skipped.
//
//	Chain(handler, RequestID(), Recover(logger), Logging(logger))
//	// Request order:  RequestID → Recover → Logging → handler
//	// Response order: handler → Logging → Recover → RequestID
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] == nil {
			continue
		}
		h = mw[i](h)
	}
	return h
}
