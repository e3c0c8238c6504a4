package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend_StoreAssignsIDAndTimestamp(t *testing.T) {
	backend := NewMemoryBackend(1000)
	defer backend.Close()

	ctx := context.Background()

	transition := &Transition{
		RunID:       "run-1",
		Step:        1,
		StateBefore: 21,
		Action:      "DOWN",
		Reward:      -1,
		StateAfter:  22,
	}

	ids, err := backend.StoreBatch(ctx, []*Transition{transition})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, transition.ID)
	assert.Equal(t, transition.ID, ids[0])
	assert.False(t, transition.Timestamp.IsZero())

	// Verify storage
	stats, err := backend.GetStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalTransitions)
	assert.Equal(t, uint64(1), stats.TransitionsByRun["run-1"])
	assert.Equal(t, -1.0, stats.CumulativeReward)
}

func TestMemoryBackend_StoreBatch(t *testing.T) {
	backend := NewMemoryBackend(1000)
	defer backend.Close()

	ctx := context.Background()

	transitions := []*Transition{
		{RunID: "run-1", Step: 1, Reward: -1},
		{RunID: "run-1", Step: 2, Reward: 2, FoodRelocated: true},
		{RunID: "run-2", Step: 1, Reward: -1},
	}

	ids, err := backend.StoreBatch(ctx, transitions)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	stats, err := backend.GetStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalTransitions)
	assert.Equal(t, uint64(2), stats.TransitionsByRun["run-1"])
	assert.Equal(t, uint64(1), stats.TransitionsByRun["run-2"])
	assert.Equal(t, uint64(1), stats.FoodConsumed)

	stats, err = backend.GetStats(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalTransitions)
	assert.Equal(t, 1.0, stats.CumulativeReward)
	assert.NotContains(t, stats.TransitionsByRun, "run-2")
}

func TestMemoryBackend_StatsWindowTimestamps(t *testing.T) {
	backend := NewMemoryBackend(10)
	defer backend.Close()

	base := time.Now()
	store(t, backend,
		&Transition{RunID: "a", Step: 1, Timestamp: base},
		&Transition{RunID: "b", Step: 1, Timestamp: base.Add(time.Second)},
		&Transition{RunID: "a", Step: 2, Timestamp: base.Add(2 * time.Second)},
	)

	stats, err := backend.GetStats(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, stats.OldestTimestamp)
	require.NotNil(t, stats.NewestTimestamp)
	assert.True(t, stats.OldestTimestamp.Equal(base))
	assert.True(t, stats.NewestTimestamp.Equal(base.Add(2*time.Second)))

	empty, err := backend.GetStats(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalTransitions)
	assert.Nil(t, empty.OldestTimestamp)
}

func TestMemoryBackend_StoreBatchCancelled(t *testing.T) {
	backend := NewMemoryBackend(10)
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ids, err := backend.StoreBatch(ctx, []*Transition{{Step: 1}, {Step: 2}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ids)
}

func TestMemoryBackend_Recent(t *testing.T) {
	backend := NewMemoryBackend(1000)
	defer backend.Close()

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		store(t, backend, &Transition{RunID: "a", Step: uint64(i)}, &Transition{RunID: "b", Step: uint64(i)})
	}

	recent, err := backend.Recent(ctx, "a", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []uint64{3, 4, 5}, steps(recent))
	for _, tr := range recent {
		assert.Equal(t, "a", tr.RunID)
	}

	all, err := backend.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 10)

	// Returned transitions are copies
	recent[0].Reward = 99
	again, _ := backend.Recent(ctx, "a", 3)
	assert.Zero(t, again[0].Reward)
}

func TestMemoryBackend_MaxSize(t *testing.T) {
	backend := NewMemoryBackend(2)
	defer backend.Close()

	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		store(t, backend, &Transition{
			RunID:     "run-1",
			Step:      uint64(i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}

	stats, err := backend.GetStats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.TotalTransitions) // Should evict oldest
	assert.Equal(t, uint64(2), stats.TransitionsByRun["run-1"])
	require.NotNil(t, stats.OldestTimestamp)
	assert.True(t, stats.OldestTimestamp.Equal(base.Add(time.Second)))

	recent, _ := backend.Recent(ctx, "", 0)
	assert.Equal(t, []uint64{1, 2}, steps(recent))
}

func TestMemoryBackend_Closed(t *testing.T) {
	backend := NewMemoryBackend(10)
	require.NoError(t, backend.Close())

	ctx := context.Background()
	_, err := backend.StoreBatch(ctx, []*Transition{{}})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.Recent(ctx, "", 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = backend.GetStats(ctx, "")
	assert.ErrorIs(t, err, ErrClosed)
}

func steps(ts []*Transition) []uint64 {
	out := make([]uint64, len(ts))
	for i, t := range ts {
		out[i] = t.Step
	}
	return out
}

func store(t *testing.T, backend Backend, transitions ...*Transition) {
	t.Helper()
	_, err := backend.StoreBatch(context.Background(), transitions)
	require.NoError(t, err)
}
