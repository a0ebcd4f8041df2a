// Package metricx holds the Prometheus collectors of the control plane.
package metricx

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailure = "failure"
)

// Dispatch outcomes of the verifier index.
const (
	DispatchMatched   = "matched"
	DispatchNoHeader  = "no_header"
	DispatchMalformed = "malformed"
	DispatchUnknown   = "unknown_issuer"
)

var (
	ProvisioningSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iam_provisioning_steps_total",
			Help: "Provisioning steps by outcome",
		},
		[]string{"step", "outcome"},
	)

	ProvisioningStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iam_provisioning_step_duration_seconds",
			Help:    "Provisioning step duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"step"},
	)

	TenantCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iam_tenant_compensations_total",
			Help: "Realm deletions run after a failed tenant skeleton",
		},
		[]string{"outcome"},
	)

	VerifierDispatch = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iam_verifier_dispatch_total",
			Help: "Bearer token dispatch decisions by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveStep records one provisioning step that started at start.
func ObserveStep(step, outcome string, start time.Time) {
	ProvisioningSteps.WithLabelValues(step, outcome).Inc()
	ProvisioningStepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

func ObserveCompensation(err error) {
	if err != nil {
		TenantCompensations.WithLabelValues(OutcomeFailure).Inc()
		return
	}
	TenantCompensations.WithLabelValues(OutcomeSuccess).Inc()
}

func ObserveDispatch(outcome string) {
	VerifierDispatch.WithLabelValues(outcome).Inc()
}
