// Package storage keeps the transition history of forager runs.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("storage closed")

// Transition is one recorded agent step
type Transition struct {
	ID            string    `json:"id"`
	RunID         string    `json:"run_id"`
	Step          uint64    `json:"step"`
	StateBefore   int       `json:"state_before"`
	Action        string    `json:"action"`
	Reward        float64   `json:"reward"`
	StateAfter    int       `json:"state_after"`
	FoodRelocated bool      `json:"food_relocated"`
	FoodState     int       `json:"food_state,omitempty"`
	QBefore       float64   `json:"q_before"`
	QAfter        float64   `json:"q_after"`
	Timestamp     time.Time `json:"timestamp"`
}

// Stats summarises the transitions currently held by a backend. With a
// bounded backend it describes the retained window, not the whole run.
type Stats struct {
	TotalTransitions uint64            `json:"total_transitions"`
	TransitionsByRun map[string]uint64 `json:"transitions_by_run"`
	FoodConsumed     uint64            `json:"food_consumed"`
	CumulativeReward float64           `json:"cumulative_reward"`
	OldestTimestamp  *time.Time        `json:"oldest_timestamp,omitempty"`
	NewestTimestamp  *time.Time        `json:"newest_timestamp,omitempty"`
}

// Backend defines the interface for transition log implementations
type Backend interface {
	// Store multiple transitions in a batch
	StoreBatch(ctx context.Context, transitions []*Transition) ([]string, error)

	// Recent returns up to n of the newest transitions of runID, oldest
	// first. An empty runID matches every run; n <= 0 returns all.
	Recent(ctx context.Context, runID string, n int) ([]*Transition, error)

	// Get log statistics, optionally restricted to one run
	GetStats(ctx context.Context, runID string) (*Stats, error)

	// Close the backend and cleanup resources
	Close() error
}
