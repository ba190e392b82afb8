package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NotifierMetrics covers the event consumer process.
type NotifierMetrics struct {
	registry *prometheus.Registry

	eventsTotal    *prometheus.CounterVec
	handleDuration *prometheus.HistogramVec
	handleInFlight prometheus.Gauge
	eventLag       *prometheus.HistogramVec
}

func NewNotifierMetrics(service string) *NotifierMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formpack",
			Subsystem: "notifier",
			Name:      "events_total",
			Help:      "Total package events handled by type and status.",
		},
		[]string{"service", "type", "status"},
	)
	handleDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "formpack",
			Subsystem: "notifier",
			Name:      "event_handle_duration_seconds",
			Help:      "Package event handling duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	handleInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "formpack",
			Subsystem: "notifier",
			Name:      "events_in_flight",
			Help:      "Number of package events being handled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "formpack",
			Subsystem: "notifier",
			Name:      "event_lag_seconds",
			Help:      "Delay between an event occurring on a portal and its delivery.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service"},
	)

	registry.MustRegister(eventsTotal, handleDuration, handleInFlight, eventLag)

	return &NotifierMetrics{
		registry:       registry,
		eventsTotal:    eventsTotal,
		handleDuration: handleDuration,
		handleInFlight: handleInFlight,
		eventLag:       eventLag,
	}
}

func (m *NotifierMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *NotifierMetrics) StartEvent() {
	m.handleInFlight.Inc()
}

func (m *NotifierMetrics) FinishEvent(service, eventType string, duration time.Duration, err error) {
	m.handleInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	if eventType == "" {
		eventType = "unknown"
	}

	m.eventsTotal.WithLabelValues(service, eventType, status).Inc()
	m.handleDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *NotifierMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}
