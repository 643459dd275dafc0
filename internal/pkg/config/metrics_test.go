package config

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigMetrics(t *testing.T) {
	metrics := NewConfigMetrics("test_feed_api")

	assert.NotNil(t, metrics.LoadTimestamp)
	assert.NotNil(t, metrics.ValidationErrorsTotal)
	assert.NotNil(t, metrics.FallbacksTotal)
	assert.NotNil(t, metrics.FallbackActive)
	assert.Equal(t, "test_feed_api", metrics.componentName)
}

func TestNewConfigMetrics_ComponentsAreIndependent(t *testing.T) {
	apiMetrics := NewConfigMetrics("test_api_independent")
	workerMetrics := NewConfigMetrics("test_worker_independent")

	apiMetrics.RecordValidationError("claim_lease")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(apiMetrics.ValidationErrorsTotal.WithLabelValues("claim_lease")))
	assert.Equal(t, float64(0),
		testutil.ToFloat64(workerMetrics.ValidationErrorsTotal.WithLabelValues("claim_lease")))
}

func TestConfigMetrics_RecordLoadTimestamp(t *testing.T) {
	metrics := NewConfigMetrics("test_load_timestamp")

	metrics.RecordLoadTimestamp()

	assert.Greater(t, testutil.ToFloat64(metrics.LoadTimestamp), float64(0))
}

func TestConfigMetrics_RecordValidationError_TracksPerField(t *testing.T) {
	metrics := NewConfigMetrics("test_validation_fields")

	metrics.RecordValidationError("maintenance_schedule")
	metrics.RecordValidationError("timezone")
	metrics.RecordValidationError("maintenance_schedule")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("maintenance_schedule")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("timezone")))
}

func TestConfigMetrics_RecordFallback_TracksPerField(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback_fields")

	metrics.RecordFallback("poll_interval", "default")
	metrics.RecordFallback("poll_interval", "default")
	metrics.RecordFallback("max_concurrent", "default")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("poll_interval")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("max_concurrent")))
}

func TestConfigMetrics_SetFallbackActive(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback_gauge")

	metrics.SetFallbackActive("", true)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))

	metrics.SetFallbackActive("", false)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbackActive))
}
