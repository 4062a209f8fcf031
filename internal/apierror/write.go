package apierror

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var errorsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "botgate",
	Subsystem: "api",
	Name:      "errors_total",
	Help:      "Error responses written, by status and error code.",
}, []string{"status", "code"})

// Write sends err as an HTTP response: its headers, its status and, unless
// the error has no representation, its JSON body.
func Write(w http.ResponseWriter, err *Error) {
	h := w.Header()
	for name, values := range err.Headers {
		h.Del(name)
		for _, v := range values {
			h.Add(name, v)
		}
	}

	errorsWritten.WithLabelValues(strconv.Itoa(err.Status()), err.Code).Inc()

	if !err.HasRepresentation() {
		w.WriteHeader(err.Status())
		return
	}

	body, encErr := json.Marshal(err)
	if encErr != nil {
		slog.Error("failed to encode error response", "err", encErr)
		w.WriteHeader(err.Status())
		return
	}

	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(err.Status())
	_, _ = w.Write(body)
}

// WriteError is Write for an arbitrary error; see From.
func WriteError(w http.ResponseWriter, err error) {
	if apiErr := From(err); apiErr != nil {
		Write(w, apiErr)
	}
}
