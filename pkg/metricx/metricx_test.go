package metricx_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/secufusion/iamplane/pkg/metricx"
	"github.com/stretchr/testify/assert"
)

func TestObserveStep(t *testing.T) {
	before := testutil.ToFloat64(metricx.ProvisioningSteps.WithLabelValues("create_realm", metricx.OutcomeSuccess))
	metricx.ObserveStep("create_realm", metricx.OutcomeSuccess, time.Now())
	after := testutil.ToFloat64(metricx.ProvisioningSteps.WithLabelValues("create_realm", metricx.OutcomeSuccess))
	assert.Equal(t, before+1, after)
}

func TestObserveCompensation(t *testing.T) {
	ok := testutil.ToFloat64(metricx.TenantCompensations.WithLabelValues(metricx.OutcomeSuccess))
	failed := testutil.ToFloat64(metricx.TenantCompensations.WithLabelValues(metricx.OutcomeFailure))

	metricx.ObserveCompensation(nil)
	metricx.ObserveCompensation(errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(metricx.TenantCompensations.WithLabelValues(metricx.OutcomeSuccess)))
	assert.Equal(t, failed+1, testutil.ToFloat64(metricx.TenantCompensations.WithLabelValues(metricx.OutcomeFailure)))
}
