package middleware

import (
	"log/slog"
	"sync"
	"time"

	"infinite-feed/pkg/ratelimit"
)

// DegradationLevel is the current rate limiting strictness. Under stress the
// limiters loosen progressively so feed reads and preference submissions
// stay available even when the limiter infrastructure is unhealthy.
type DegradationLevel int

const (
	// LevelNormal applies the configured limits unchanged (1x).
	LevelNormal DegradationLevel = iota

	// LevelRelaxed doubles the limits (2x). Entered when the limiter's
	// circuit breaker opens.
	LevelRelaxed

	// LevelMinimal multiplies the limits by ten (10x). Entered under high
	// memory pressure in the rate limit store.
	LevelMinimal

	// LevelDisabled turns rate limiting off entirely. Entered when the
	// circuit is open AND the store is under memory pressure, or by manual
	// override. Availability wins over throttling here.
	LevelDisabled
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelRelaxed:
		return "relaxed"
	case LevelMinimal:
		return "minimal"
	case LevelDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// DegradationConfig holds configuration for the degradation manager.
type DegradationConfig struct {
	// AutoAdjust enables automatic level adjustment from health signals.
	AutoAdjust bool

	// CooldownPeriod is the minimum time between level changes, preventing
	// flapping.
	CooldownPeriod time.Duration

	// RelaxedMultiplier for LevelRelaxed (default: 2).
	RelaxedMultiplier int

	// MinimalMultiplier for LevelMinimal (default: 10).
	MinimalMultiplier int

	Clock   ratelimit.Clock
	Metrics ratelimit.RateLimitMetrics

	// LimiterType identifies the protected limiter ("ip" or "user").
	LimiterType string
}

// DefaultDegradationConfig auto-adjusts with a 1 minute cooldown.
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		AutoAdjust:        true,
		CooldownPeriod:    1 * time.Minute,
		RelaxedMultiplier: 2,
		MinimalMultiplier: 10,
		Clock:             &ratelimit.SystemClock{},
		Metrics:           &ratelimit.NoOpMetrics{},
	}
}

// DegradationManager tracks limiter health signals (circuit breaker state,
// store memory pressure) and derives the effective degradation level. The
// limiters report signals on the request path; the cleanup loop reports
// memory pressure. A manual override pins the level for operational control.
//
// Level rules, graduated:
//   - circuit open + memory pressure -> Disabled
//   - memory pressure                -> Minimal
//   - circuit open                   -> Relaxed
//   - healthy                        -> Normal
type DegradationManager struct {
	config DegradationConfig

	mu              sync.RWMutex
	currentLevel    DegradationLevel
	lastLevelChange time.Time
	circuitOpen     bool
	memoryPressure  bool
	manualOverride  *DegradationLevel
}

// NewDegradationManager creates a degradation manager. Zero config values
// get the defaults from DefaultDegradationConfig.
func NewDegradationManager(config DegradationConfig) *DegradationManager {
	if config.CooldownPeriod <= 0 {
		config.CooldownPeriod = 1 * time.Minute
	}
	if config.RelaxedMultiplier <= 0 {
		config.RelaxedMultiplier = 2
	}
	if config.MinimalMultiplier <= 0 {
		config.MinimalMultiplier = 10
	}
	if config.Clock == nil {
		config.Clock = &ratelimit.SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &ratelimit.NoOpMetrics{}
	}

	dm := &DegradationManager{
		config:          config,
		currentLevel:    LevelNormal,
		lastLevelChange: config.Clock.Now(),
	}
	config.Metrics.RecordDegradationLevel(config.LimiterType, int(LevelNormal))
	return dm
}

// GetLevel returns the effective degradation level, honoring a manual
// override when one is set.
func (dm *DegradationManager) GetLevel() DegradationLevel {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	if dm.manualOverride != nil {
		return *dm.manualOverride
	}
	return dm.currentLevel
}

// SetLevel pins the degradation level, overriding automatic adjustment
// until ClearManualOverride is called.
func (dm *DegradationManager) SetLevel(level DegradationLevel) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.manualOverride = &level
	dm.config.Metrics.RecordDegradationLevel(dm.config.LimiterType, int(level))

	slog.Info("degradation level manually set",
		slog.String("limiter_type", dm.config.LimiterType),
		slog.String("level", level.String()),
	)
}

// ClearManualOverride resumes automatic adjustment.
func (dm *DegradationManager) ClearManualOverride() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.manualOverride == nil {
		return
	}
	dm.manualOverride = nil

	slog.Info("degradation manual override cleared, resuming auto-adjustment",
		slog.String("limiter_type", dm.config.LimiterType),
		slog.String("current_level", dm.currentLevel.String()),
	)
	dm.config.Metrics.RecordDegradationLevel(dm.config.LimiterType, int(dm.currentLevel))
}

// AdjustLimits scales baseLimit by the current level's multiplier.
// Returns 0 at LevelDisabled, meaning no limit should be enforced.
func (dm *DegradationManager) AdjustLimits(baseLimit int) int {
	switch dm.GetLevel() {
	case LevelRelaxed:
		return baseLimit * dm.config.RelaxedMultiplier
	case LevelMinimal:
		return baseLimit * dm.config.MinimalMultiplier
	case LevelDisabled:
		return 0
	default:
		return baseLimit
	}
}

// OnCircuitOpen records that the limiter's circuit breaker opened.
func (dm *DegradationManager) OnCircuitOpen() {
	dm.recordSignal(func(m *DegradationManager) { m.circuitOpen = true })
}

// OnCircuitClose records that the limiter's circuit breaker closed.
func (dm *DegradationManager) OnCircuitClose() {
	dm.recordSignal(func(m *DegradationManager) { m.circuitOpen = false })
}

// OnHighMemoryPressure records that the rate limit store is approaching
// capacity.
func (dm *DegradationManager) OnHighMemoryPressure() {
	dm.recordSignal(func(m *DegradationManager) { m.memoryPressure = true })
}

// OnNormalMemoryPressure records that store memory usage returned to normal.
func (dm *DegradationManager) OnNormalMemoryPressure() {
	dm.recordSignal(func(m *DegradationManager) { m.memoryPressure = false })
}

// recordSignal applies a health signal. Signals are always tracked for
// observability; the level only moves when auto-adjust is on and no
// manual override is set.
func (dm *DegradationManager) recordSignal(apply func(*DegradationManager)) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	apply(dm)

	if !dm.config.AutoAdjust || dm.manualOverride != nil {
		return
	}
	dm.adjustLevel()
}

// adjustLevel recomputes the level from the tracked signals. Callers must
// hold dm.mu. The cooldown period is enforced here.
func (dm *DegradationManager) adjustLevel() {
	now := dm.config.Clock.Now()
	if now.Sub(dm.lastLevelChange) < dm.config.CooldownPeriod {
		return
	}

	oldLevel := dm.currentLevel
	var newLevel DegradationLevel
	var reason string
	switch {
	case dm.circuitOpen && dm.memoryPressure:
		newLevel, reason = LevelDisabled, "circuit_open,memory_pressure"
	case dm.memoryPressure:
		newLevel, reason = LevelMinimal, "memory_pressure"
	case dm.circuitOpen:
		newLevel, reason = LevelRelaxed, "circuit_open"
	default:
		newLevel, reason = LevelNormal, "recovery"
	}

	if newLevel == oldLevel {
		return
	}

	dm.currentLevel = newLevel
	dm.lastLevelChange = now
	dm.config.Metrics.RecordDegradationLevel(dm.config.LimiterType, int(newLevel))

	slog.Warn("degradation level changed",
		slog.String("limiter_type", dm.config.LimiterType),
		slog.String("previous_level", oldLevel.String()),
		slog.String("new_level", newLevel.String()),
		slog.String("reason", reason),
		slog.Bool("circuit_open", dm.circuitOpen),
		slog.Bool("memory_pressure", dm.memoryPressure),
	)
}

// DegradationStats is a snapshot of the manager state for monitoring.
type DegradationStats struct {
	// EffectiveLevel is what AdjustLimits uses (honors manual override).
	EffectiveLevel DegradationLevel

	// InternalLevel is the automatically derived level.
	InternalLevel DegradationLevel

	ManualOverride bool
	CircuitOpen    bool
	MemoryPressure bool

	// LastLevelChange is when the level last moved automatically.
	LastLevelChange time.Time
}

// Stats returns current degradation manager statistics.
func (dm *DegradationManager) Stats() DegradationStats {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	effectiveLevel := dm.currentLevel
	if dm.manualOverride != nil {
		effectiveLevel = *dm.manualOverride
	}

	return DegradationStats{
		EffectiveLevel:  effectiveLevel,
		InternalLevel:   dm.currentLevel,
		ManualOverride:  dm.manualOverride != nil,
		CircuitOpen:     dm.circuitOpen,
		MemoryPressure:  dm.memoryPressure,
		LastLevelChange: dm.lastLevelChange,
	}
}
