package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the proxy's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "content_proxy",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight function requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "content_proxy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of function requests handled.",
		},
		[]string{"function", "method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "content_proxy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of function requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"function"},
	)

	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "content_proxy",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Outbound provider calls by provider, operation and HTTP status.",
		},
		[]string{"provider", "op", "status"},
	)

	providerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "content_proxy",
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Duration of outbound provider calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider", "op"},
	)

	pollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "content_proxy",
			Subsystem: "task",
			Name:      "poll_attempts_total",
			Help:      "Status probes issued while waiting on provider tasks.",
		},
		[]string{"provider"},
	)

	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "content_proxy",
			Subsystem: "billing",
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions moved to expired by the sweeper.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		providerCalls,
		providerDuration,
		pollAttempts,
		subscriptionsExpired,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentFunction wraps a function handler with request metrics.
func InstrumentFunction(function string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(function, strings.ToUpper(r.Method), strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(function).Observe(time.Since(start).Seconds())
	})
}

// RecordProviderCall records one outbound request. status 0 means transport error.
func RecordProviderCall(provider, op string, status int, duration time.Duration) {
	if provider == "" {
		provider = "unknown"
	}
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
	}
	providerCalls.WithLabelValues(provider, op, label).Inc()
	providerDuration.WithLabelValues(provider, op).Observe(duration.Seconds())
}

func RecordPollAttempt(provider string) {
	if provider == "" {
		provider = "unknown"
	}
	pollAttempts.WithLabelValues(provider).Inc()
}

func RecordSubscriptionsExpired(n int64) {
	if n > 0 {
		subscriptionsExpired.Add(float64(n))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
