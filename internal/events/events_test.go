package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickSubjects(t *testing.T) {
	assert.Equal(t, []string{"forager.tick"}, TickSubjects("forager", TickEvent{}))
	assert.Equal(t,
		[]string{"forager.tick", "forager.food"},
		TickSubjects("forager", TickEvent{FoodRelocated: true}))
}

func TestStatusSubjects(t *testing.T) {
	assert.Equal(t, []string{"sim.status"}, StatusSubjects("sim", RunStatusEvent{State: StateRunning}))
	assert.Equal(t,
		[]string{"sim.status", "sim.error"},
		StatusSubjects("sim", RunStatusEvent{State: StateFailed, LastError: "boom"}))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishTick(context.Background(), TickEvent{}))
	assert.NoError(t, p.PublishRunStatus(context.Background(), RunStatusEvent{}))
}
