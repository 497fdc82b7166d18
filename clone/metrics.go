package clone

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cloneCount is a Counter vector of clone attempts.
	cloneCount *prometheus.CounterVec
	// cloneLatency is a Histogram vector of clone durations, by phase.
	cloneLatency *prometheus.HistogramVec
)

// EnableMetrics enables metrics collection for clone operations.
// Available metrics are...
//   - git_clone_total - (tags: outcome)
//     A Counter for each clone attempt, tagged with its final outcome
//     (success, user_error, source_error, transport_error, primer_error,
//     checkout_error).
//   - git_clone_phase_duration_seconds - (tags: phase)
//     A Histogram of how long each clone phase (provision, primer,
//     ls-remote, local-clone, fetch, checkout) takes.
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	cloneCount = promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "git_clone_total",
		Help:      "Count of clone operations",
	},
		[]string{
			"outcome",
		},
	)

	cloneLatency = promauto.With(registerer).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "git_clone_phase_duration_seconds",
		Help:      "Latency of each clone phase",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 20, 30, 60, 90, 120, 300, 600},
	},
		[]string{
			"phase",
		},
	)
}

// recordOutcome records a clone's terminal outcome.
func recordOutcome(outcome string) {
	if cloneCount == nil {
		return
	}
	cloneCount.WithLabelValues(outcome).Inc()
}

// observePhase records how long a named phase of the clone took.
func observePhase(phase string, start time.Time) {
	if cloneLatency == nil {
		return
	}
	cloneLatency.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}
