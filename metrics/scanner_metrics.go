package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassTotal counts discovery passes by trigger and outcome
	PassTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "album_scan_passes_total",
			Help: "Total number of discovery passes",
		},
		[]string{"trigger", "status"},
	)

	// PassDuration tracks how long a discovery pass takes
	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "album_scan_pass_duration_seconds",
			Help:    "Duration of discovery passes in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"trigger"},
	)

	// ImagesDiscovered counts records added to discovery stores
	ImagesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "album_images_discovered_total",
			Help: "Total number of unique images discovered",
		},
	)

	// CandidatesRejected counts candidates skipped during validation
	CandidatesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "album_candidates_rejected_total",
			Help: "Total number of image candidates rejected by reason",
		},
		[]string{"reason"},
	)

	// TriggersDropped counts scan and report requests refused by the gate
	TriggersDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "album_triggers_dropped_total",
			Help: "Total number of scan or report requests dropped while busy or stopped",
		},
		[]string{"kind", "state"},
	)

	// MessagesFailed counts emissions the messaging collaborator did not acknowledge
	MessagesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "album_messages_failed_total",
			Help: "Total number of failed record emissions",
		},
	)

	// ActiveEngines tracks the number of registered scan engines
	ActiveEngines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "album_active_engines",
			Help: "Number of scan engines currently registered",
		},
	)
)

// RecordPass records the outcome and duration of a discovery pass
func RecordPass(trigger, status string, duration float64) {
	PassTotal.WithLabelValues(trigger, status).Inc()
	PassDuration.WithLabelValues(trigger).Observe(duration)
}

// RecordDiscovered records a newly stored image
func RecordDiscovered() {
	ImagesDiscovered.Inc()
}

// RecordRejected records a rejected candidate
func RecordRejected(reason string) {
	CandidatesRejected.WithLabelValues(reason).Inc()
}

// RecordDropped records a trigger refused by the scheduler gate
func RecordDropped(kind, state string) {
	TriggersDropped.WithLabelValues(kind, state).Inc()
}

// RecordMessageFailed records a failed emission
func RecordMessageFailed() {
	MessagesFailed.Inc()
}

// SetActiveEngines updates the registered engine gauge
func SetActiveEngines(n int) {
	ActiveEngines.Set(float64(n))
}
