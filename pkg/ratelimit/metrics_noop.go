package ratelimit

import "time"

// NoOpMetrics discards every recording. It backs limiters built without
// a metrics sink and gives test recorders a base to embed so they only
// override the methods they observe.
type NoOpMetrics struct{}

// NewNoOpMetrics returns a NoOpMetrics.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (m *NoOpMetrics) RecordRequest(limiterType, endpoint string) {}

func (m *NoOpMetrics) RecordDenied(limiterType, endpoint string) {}

func (m *NoOpMetrics) RecordAllowed(limiterType, endpoint string) {}

func (m *NoOpMetrics) RecordCheckDuration(limiterType string, duration time.Duration) {}

func (m *NoOpMetrics) SetActiveKeys(limiterType string, count int) {}

func (m *NoOpMetrics) RecordCircuitState(limiterType, state string) {}

func (m *NoOpMetrics) RecordDegradationLevel(limiterType string, level int) {}

func (m *NoOpMetrics) RecordEviction(limiterType string, count int) {}
