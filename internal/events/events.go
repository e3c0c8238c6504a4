package events

import "context"

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishTick(ctx context.Context, payload TickEvent) error
	PublishRunStatus(ctx context.Context, payload RunStatusEvent) error
}

// TickEvent is emitted for every agent step.
type TickEvent struct {
	RunID         string  `json:"run_id"`
	Step          uint64  `json:"step"`
	StateBefore   int     `json:"state_before"`
	Action        string  `json:"action"`
	Reward        float64 `json:"reward"`
	StateAfter    int     `json:"state_after"`
	FoodRelocated bool    `json:"food_relocated"`
	FoodState     int     `json:"food_state,omitempty"`
	QAfter        float64 `json:"q_after"`
}

// RunStatusEvent is emitted when a run starts, stops or fails.
type RunStatusEvent struct {
	RunID            string  `json:"run_id"`
	State            string  `json:"state"`
	Step             uint64  `json:"step"`
	FoodConsumed     uint64  `json:"food_consumed"`
	CumulativeReward float64 `json:"cumulative_reward"`
	LastError        string  `json:"last_error,omitempty"`
}

// Run states carried by RunStatusEvent.
const (
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// NoopPublisher logs nothing; useful for tests.
type NoopPublisher struct{}

// PublishTick satisfies Publisher.
func (NoopPublisher) PublishTick(context.Context, TickEvent) error { return nil }

// PublishRunStatus satisfies Publisher.
func (NoopPublisher) PublishRunStatus(context.Context, RunStatusEvent) error { return nil }
