package web

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// requestMetrics counts HTTP requests by method, route pattern and
// status. Patterns rather than raw paths keep label cardinality down.
type requestMetrics struct {
	requestCount *prometheus.CounterVec
}

func newRequestMetrics(reg prometheus.Registerer) *requestMetrics {
	m := &requestMetrics{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(m.requestCount)
	return m
}

// instrument wraps next, resolving the route label through patternOf.
// The /metrics endpoint itself is not counted.
func (m *requestMetrics) instrument(patternOf func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.requestCount.WithLabelValues(
			r.Method,
			patternOf(r),
			strconv.Itoa(rec.status),
		).Inc()
	})
}
