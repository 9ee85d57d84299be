package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aranya-atelier/checkout-core/internal/observability"
	"github.com/aranya-atelier/checkout-core/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps the SSE endpoint working behind the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ObservabilityMiddleware tags every request with an id, stashes a
// request-scoped logger in the context, and records RED metrics keyed by the
// route pattern so path parameters never blow up label cardinality.
func ObservabilityMiddleware(tel observability.Observability) func(http.Handler) http.Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	base := tel.Logger()
	reqCounter := tel.Metrics().Counter(observability.MHTTPRequests)
	durHistogram := tel.Metrics().Histogram(observability.MHTTPRequestDuration)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", requestID)

			logger := base.With(
				observability.F("request_id", requestID),
				observability.F("method", r.Method),
				observability.F("path", r.URL.Path),
			)
			ctx := logctx.With(r.Context(), logger)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))
			lat := time.Since(start).Seconds()

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			status := strconv.Itoa(rec.status)

			reqCounter.Add(1,
				observability.L("method", r.Method),
				observability.L("route", route),
				observability.L("status", status),
			)
			durHistogram.Observe(lat,
				observability.L("method", r.Method),
				observability.L("route", route),
			)

			logger.Info("http_request_done",
				observability.F("status", rec.status),
				observability.F("latency_seconds", lat),
			)
		})
	}
}
