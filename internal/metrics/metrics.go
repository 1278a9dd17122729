package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transitions counts workflow actions applied, labeled by action type.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validations",
		Name:      "transitions_total",
		Help:      "Workflow instance transitions applied, by action type.",
	}, []string{"action"})

	// TransitionConflicts counts guard rejections and optimistic lock misses.
	TransitionConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "validations",
		Name:      "transition_conflicts_total",
		Help:      "Transitions refused by a state guard or version conflict.",
	}, []string{"action"})

	// SweptInstances counts instances expired by the sweeper.
	SweptInstances = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "validations",
		Name:      "swept_instances_total",
		Help:      "Overdue instances expired by the background sweeper.",
	})

	// SweepDuration observes sweep run time.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "validations",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of expiry sweeper runs.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
