package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

// PortalMetrics covers HTTP traffic, upload screens and backend health for
// the portal process.
type PortalMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	pollsTotal          *prometheus.CounterVec
	pollDuration        *prometheus.HistogramVec
	uploadsTotal        *prometheus.CounterVec
	uploadDuration      *prometheus.HistogramVec
	activeScreens       prometheus.Gauge
	breakerTransitions  *prometheus.CounterVec
	pathCollisionsTotal *prometheus.CounterVec
}

func NewPortalMetrics(service string) *PortalMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formpack",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "formpack",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "formpack",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pollsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formpack",
			Subsystem: "upload",
			Name:      "status_polls_total",
			Help:      "Total status polls by outcome.",
		},
		[]string{"service", "outcome"},
	)
	pollDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "formpack",
			Subsystem: "upload",
			Name:      "status_poll_duration_seconds",
			Help:      "Status request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service"},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formpack",
			Subsystem: "upload",
			Name:      "settled_total",
			Help:      "Total settled uploads by final state.",
		},
		[]string{"service", "state"},
	)
	uploadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "formpack",
			Subsystem: "upload",
			Name:      "time_to_settle_seconds",
			Help:      "Time from submission to a settled state.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"service", "state"},
	)
	activeScreens := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "formpack",
			Subsystem: "upload",
			Name:      "active_screens",
			Help:      "Number of open upload screens.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formpack",
			Subsystem: "backend",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes by backend operation.",
		},
		[]string{"service", "operation", "to"},
	)
	pathCollisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formpack",
			Subsystem: "detail",
			Name:      "path_collisions_total",
			Help:      "Distinct source paths mapped onto an already used storage basename.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		pollsTotal,
		pollDuration,
		uploadsTotal,
		uploadDuration,
		activeScreens,
		breakerTransitions,
		pathCollisionsTotal,
	)

	return &PortalMetrics{
		service:             service,
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		pollsTotal:          pollsTotal,
		pollDuration:        pollDuration,
		uploadsTotal:        uploadsTotal,
		uploadDuration:      uploadDuration,
		activeScreens:       activeScreens,
		breakerTransitions:  breakerTransitions,
		pathCollisionsTotal: pathCollisionsTotal,
	}
}

func (m *PortalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PortalMetrics) Middleware(next http.Handler) http.Handler {
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
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds identifiers out of paths to bound label cardinality.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/packages/") && strings.HasSuffix(path, "/status"):
		return "/api/packages/{id}/status"
	case strings.HasPrefix(path, "/api/packages/"):
		return "/api/packages/{id}"
	case strings.HasPrefix(path, "/packages/") && strings.HasSuffix(path, ".xlsx"):
		return "/packages/{id}/submissions.xlsx"
	case strings.HasPrefix(path, "/packages/"):
		return "/packages/{id}"
	case strings.HasPrefix(path, "/upload/") && strings.HasSuffix(path, "/state"):
		return "/upload/{screen}/state"
	case strings.HasPrefix(path, "/upload/") && strings.HasSuffix(path, "/close"):
		return "/upload/{screen}/close"
	case strings.HasPrefix(path, "/upload/"):
		return "/upload/{screen}"
	case strings.HasPrefix(path, "/storage/"):
		return "/storage/{file}"
	default:
		return path
	}
}

func (m *PortalMetrics) ObservePoll(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.pollsTotal.WithLabelValues(m.service, outcome).Inc()
	m.pollDuration.WithLabelValues(m.service).Observe(duration.Seconds())
}

func (m *PortalMetrics) ObserveUploadSettled(state domain.UploadState, duration time.Duration) {
	m.uploadsTotal.WithLabelValues(m.service, string(state)).Inc()
	if duration > 0 {
		m.uploadDuration.WithLabelValues(m.service, string(state)).Observe(duration.Seconds())
	}
}

func (m *PortalMetrics) SetActiveScreens(n int) {
	m.activeScreens.Set(float64(n))
}

func (m *PortalMetrics) RecordBreakerTransition(operation, _, to string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, to).Inc()
}

func (m *PortalMetrics) RecordPathCollisions(n int) {
	if n <= 0 {
		return
	}
	m.pathCollisionsTotal.WithLabelValues(m.service).Add(float64(n))
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
