package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	popforecast = "popforecast"

	jobsEnqueuedTotal   = "jobs_enqueued_total"
	jobsFailedTotal     = "jobs_failed_total"
	factsPublishedTotal = "forecast_facts_published_total"

	jobKindLabel     = "kind"
	failureKindLabel = "failure"
)

var jobsEnqueuedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: popforecast,
		Name:      jobsEnqueuedTotal,
		Help:      "Number of pipeline jobs enqueued partitioned by job kind.",
	},
	[]string{jobKindLabel},
)

var jobsFailedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: popforecast,
		Name:      jobsFailedTotal,
		Help:      "Number of pipeline jobs failed partitioned by job kind and failure kind.",
	},
	[]string{jobKindLabel, failureKindLabel},
)

var factsPublishedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: popforecast,
		Name:      factsPublishedTotal,
		Help:      "Number of forecasted distribution facts published downstream.",
	},
)

func init() {
	prometheus.MustRegister(jobsEnqueuedTotalMetric)
	prometheus.MustRegister(jobsFailedTotalMetric)
	prometheus.MustRegister(factsPublishedTotalMetric)
}

func IncreaseJobsEnqueuedTotal(kind string) {
	jobsEnqueuedTotalMetric.WithLabelValues(kind).Inc()
}

func IncreaseJobsFailedTotal(kind, failure string) {
	jobsFailedTotalMetric.WithLabelValues(kind, failure).Inc()
}

func AddFactsPublishedTotal(n int) {
	factsPublishedTotalMetric.Add(float64(n))
}
