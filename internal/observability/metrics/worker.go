package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics describes the replacement worker: what happened to each
// license.confirmed event, how late it was handled and when a school was last told.
type WorkerMetrics struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	queueLag         prometheus.Histogram
	lastNotified     prometheus.Gauge

	now func() time.Time
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	dispatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "dispatch_total",
			Help:        "Confirmation events handled, by outcome (notified, already_notified, not_found, failed).",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)
	dispatchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "dispatch_duration_seconds",
			Help:        "Time spent handling one confirmation event.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: labels,
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between license confirmation and the start of its dispatch.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: labels,
		},
	)
	lastNotified := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "last_notification_timestamp_seconds",
			Help:        "Unix time of the last replacement notification sent.",
			ConstLabels: labels,
		},
	)

	registry.MustRegister(dispatchTotal, dispatchDuration, queueLag, lastNotified)

	return &WorkerMetrics{
		registry:         registry,
		dispatchTotal:    dispatchTotal,
		dispatchDuration: dispatchDuration,
		queueLag:         queueLag,
		lastNotified:     lastNotified,
		now:              time.Now,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDispatch records one handled event. Only the notified outcome moves
// the last-notification gauge.
func (m *WorkerMetrics) ObserveDispatch(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "failed"
	}
	m.dispatchTotal.WithLabelValues(outcome).Inc()
	m.dispatchDuration.Observe(duration.Seconds())
	if outcome == "notified" {
		m.lastNotified.Set(float64(m.now().Unix()))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
