package a2a

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects HTTP and RPC-level counters for the A2A server.
type Metrics struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rpcRequests     *prometheus.CounterVec
	activeStreams   prometheus.Gauge
	emittedArtifact prometheus.Counter
}

// NewMetrics registers the server metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "a2a_http_requests_total",
			Help: "HTTP requests served, by method, path and status code.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "a2a_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		rpcRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "a2a_rpc_requests_total",
			Help: "JSON-RPC requests handled, by method and outcome.",
		}, []string{"rpc_method", "outcome"}),
		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "a2a_active_streams",
			Help: "Streaming connections currently open.",
		}),
		emittedArtifact: factory.NewCounter(prometheus.CounterOpts{
			Name: "a2a_artifacts_emitted_total",
			Help: "Artifacts emitted across all requests.",
		}),
	}
}

// ObserveRPC records one handled JSON-RPC call.
func (m *Metrics) ObserveRPC(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}

// StreamOpened / StreamClosed track the active stream gauge.
func (m *Metrics) StreamOpened() {
	if m != nil {
		m.activeStreams.Inc()
	}
}

// StreamClosed decrements the active stream gauge.
func (m *Metrics) StreamClosed() {
	if m != nil {
		m.activeStreams.Dec()
	}
}

// ArtifactEmitted counts one emitted artifact.
func (m *Metrics) ArtifactEmitted() {
	if m != nil {
		m.emittedArtifact.Inc()
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code while
// preserving http.Flusher for SSE streaming.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush implements http.Flusher for SSE streaming support.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Middleware instruments an http.Handler with request counters and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.httpRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
