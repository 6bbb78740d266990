package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	verdictsTotal   *prometheus.CounterVec
	verifyDuration  *prometheus.HistogramVec
	riskLevelsTotal *prometheus.CounterVec
	exportsTotal    *prometheus.CounterVec
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medver",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medver",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "medver",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	verdictsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medver",
			Subsystem: "pipeline",
			Name:      "verdicts_total",
			Help:      "Total verification verdicts by status.",
		},
		[]string{"service", "status"},
	)
	verifyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medver",
			Subsystem: "pipeline",
			Name:      "verify_duration_seconds",
			Help:      "Verification pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "input_kind"},
	)
	riskLevelsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medver",
			Subsystem: "pipeline",
			Name:      "risk_levels_total",
			Help:      "Total image risk assessments by level.",
		},
		[]string{"service", "level"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medver",
			Subsystem: "reports",
			Name:      "exports_total",
			Help:      "Total history report exports.",
		},
		[]string{"service", "format"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		verdictsTotal,
		verifyDuration,
		riskLevelsTotal,
		exportsTotal,
	)

	return &APIMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		verdictsTotal:   verdictsTotal,
		verifyDuration:  verifyDuration,
		riskLevelsTotal: riskLevelsTotal,
		exportsTotal:    exportsTotal,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case path == "/v1/scans" || path == "/v1/scans/export":
		return path
	case len(path) > len("/v1/scans/") && path[:len("/v1/scans/")] == "/v1/scans/":
		return "/v1/scans/{scan_id}"
	default:
		return path
	}
}

func (m *APIMetrics) RecordVerdict(service, status, inputKind string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.verdictsTotal.WithLabelValues(service, status).Inc()
	m.verifyDuration.WithLabelValues(service, inputKind).Observe(duration.Seconds())
}

func (m *APIMetrics) RecordRiskLevel(service, level string) {
	if level == "" {
		return
	}
	m.riskLevelsTotal.WithLabelValues(service, level).Inc()
}

func (m *APIMetrics) RecordExport(service, format string) {
	m.exportsTotal.WithLabelValues(service, format).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
