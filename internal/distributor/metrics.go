package distributor

import "github.com/prometheus/client_golang/prometheus"

// Label values.
const (
	whereLocal  = "local"
	whereRemote = "remote"

	reasonTimeout = "timeout"
	reasonError   = "error"
)

var (
	dispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_distributor_dispatched_total",
			Help: "Total number of work items handed to remote workers.",
		},
	)

	localTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_distributor_local_evaluations_total",
			Help: "Total number of work items evaluated by the coordinator itself.",
		},
	)

	completedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_distributor_remote_completed_total",
			Help: "Total number of remote evaluations that returned a fitness.",
		},
	)

	cancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_distributor_cancelled_total",
			Help: "Total number of queued work items removed by Cancel.",
		},
	)

	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_distributor_worker_failures_total",
			Help: "Total number of failed remote evaluations, by reason.",
		},
		[]string{"reason"},
	)

	evictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forge_distributor_evictions_total",
			Help: "Total number of worker slots evicted after a failure.",
		},
	)

	inFlightGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forge_distributor_in_flight",
			Help: "Number of work items currently held by remote workers.",
		},
	)

	evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forge_distributor_evaluation_seconds",
			Help:    "Duration of a single evaluation, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"where"},
	)
)

func init() {
	prometheus.MustRegister(dispatchedTotal)
	prometheus.MustRegister(localTotal)
	prometheus.MustRegister(completedTotal)
	prometheus.MustRegister(cancelledTotal)
	prometheus.MustRegister(failuresTotal)
	prometheus.MustRegister(evictionsTotal)
	prometheus.MustRegister(inFlightGauge)
	prometheus.MustRegister(evaluationDuration)

	failuresTotal.WithLabelValues(reasonTimeout)
	failuresTotal.WithLabelValues(reasonError)
	evaluationDuration.WithLabelValues(whereLocal)
	evaluationDuration.WithLabelValues(whereRemote)
}
