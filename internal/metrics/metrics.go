package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// Metrics collector for forager runs
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// Track a single agent step. Logged at debug so long runs stay quiet.
func (c *Collector) TickCompleted(runID string, step uint64, reward, qAfter float64, latency time.Duration) {
	c.logger.Debug().
		Str("metric", "tick_completed").
		Str("run_id", runID).
		Uint64("step", step).
		Float64("reward", reward).
		Float64("q_after", qAfter).
		Dur("latency", latency).
		Msg("Tick metric")
}

// Track food consumption and where the food went
func (c *Collector) FoodConsumed(runID string, step uint64, from, to int) {
	c.logger.Info().
		Str("metric", "food_consumed").
		Str("run_id", runID).
		Uint64("step", step).
		Int("from_state", from).
		Int("to_state", to).
		Msg("Food consumed metric")
}

// Track transition log flushes
func (c *Collector) BatchFlushed(runID string, size int, duration time.Duration) {
	c.logger.Debug().
		Str("metric", "batch_flushed").
		Str("run_id", runID).
		Int("size", size).
		Dur("duration", duration).
		Msg("Batch flush metric")
}

// Track API request metrics
func (c *Collector) APIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.logger.Info().
		Str("metric", "api_request").
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("API request metric")
}

// Summarise a run when it stops
func (c *Collector) RunSummary(runID string, steps, food uint64, cumulativeReward float64, elapsed time.Duration) {
	c.logger.Info().
		Str("metric", "run_summary").
		Str("run_id", runID).
		Uint64("steps", steps).
		Uint64("food_consumed", food).
		Float64("cumulative_reward", cumulativeReward).
		Dur("elapsed", elapsed).
		Msg("Run summary metric")
}

// Track health monitoring events
func (c *Collector) HealthEvent(runID string, eventType string, severity string) {
	c.logger.Warn().
		Str("metric", "health_event").
		Str("run_id", runID).
		Str("event_type", eventType).
		Str("severity", severity).
		Msg("Health monitoring event")
}
