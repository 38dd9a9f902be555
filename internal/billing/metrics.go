package billing

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distrokit",
		Subsystem: "billing",
		Name:      "job_runs_total",
		Help:      "Billing job cycles by job and outcome.",
	}, []string{"job", "outcome"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "distrokit",
		Subsystem: "billing",
		Name:      "job_duration_seconds",
		Help:      "Duration of billing job cycles in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"job"})

	warningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distrokit",
		Subsystem: "billing",
		Name:      "warnings_total",
		Help:      "Overdue warnings logged by threshold in days.",
	}, []string{"threshold"})

	suspensionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "distrokit",
		Subsystem: "billing",
		Name:      "suspensions_total",
		Help:      "Tenants suspended for non-payment.",
	})

	stopFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "distrokit",
		Subsystem: "billing",
		Name:      "subscription_stop_failures_total",
		Help:      "Subscriptions that could not be stopped at the provider during suspension.",
	})

	provisionedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distrokit",
		Subsystem: "billing",
		Name:      "subscriptions_provisioned_total",
		Help:      "Recurring invoice provisioning attempts by outcome.",
	}, []string{"outcome"})

	paymentsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distrokit",
		Subsystem: "billing",
		Name:      "payments_recorded_total",
		Help:      "Payments recorded by provider sync outcome.",
	}, []string{"provider_sync"})
)

func init() {
	prometheus.MustRegister(
		jobRunsTotal,
		jobDuration,
		warningsTotal,
		suspensionsTotal,
		stopFailuresTotal,
		provisionedTotal,
		paymentsRecordedTotal,
	)
}
