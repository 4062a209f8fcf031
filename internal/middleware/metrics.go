package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "botgate",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method, route, and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "botgate",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "botgate",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})

	// BodyRejections counts requests or responses refused by BodyParser.
	BodyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "botgate",
		Name:      "body_rejections_total",
		Help:      "Bodies rejected by the body parser, by reason.",
	}, []string{"reason"})

	// SecretRejections counts requests refused by the secret checks.
	SecretRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "botgate",
		Name:      "secret_rejections_total",
		Help:      "Requests rejected for a missing or wrong secret, by source (gate, guard).",
	}, []string{"source"})

	// PanicsRecovered counts panics caught by Recover.
	PanicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "botgate",
		Name:      "panics_recovered_total",
		Help:      "Panics recovered while serving requests.",
	})
)

// routeLabel uses the chi route pattern to keep label cardinality bounded.
// Unrouted requests share one label.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "/other"
}

// Metrics records Prometheus metrics for every request.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
