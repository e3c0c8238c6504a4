package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend implements an in-memory transition log. Transitions
// are kept in insertion order; past maxSize the oldest are evicted.
type MemoryBackend struct {
	mu          sync.RWMutex
	transitions []*Transition     // oldest first
	runIndex    map[string]uint64 // RunID -> count
	maxSize     uint64            // 0 means unbounded
	closed      bool
}

// NewMemoryBackend creates a new in-memory storage backend
func NewMemoryBackend(maxSize uint64) *MemoryBackend {
	return &MemoryBackend{
		transitions: make([]*Transition, 0),
		runIndex:    make(map[string]uint64),
		maxSize:     maxSize,
	}
}

func (m *MemoryBackend) store(transition *Transition) {
	// Generate ID if not provided
	if transition.ID == "" {
		transition.ID = uuid.New().String()
	}
	if transition.Timestamp.IsZero() {
		transition.Timestamp = time.Now()
	}

	m.transitions = append(m.transitions, transition)
	m.runIndex[transition.RunID]++
	m.evictIfNeeded()
}

// StoreBatch implements Backend.StoreBatch. The batch is stored under a
// single lock so readers never observe half of it.
func (m *MemoryBackend) StoreBatch(ctx context.Context, transitions []*Transition) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	ids := make([]string, len(transitions))
	for i, transition := range transitions {
		if err := ctx.Err(); err != nil {
			return ids[:i], err
		}
		m.store(transition)
		ids[i] = transition.ID
	}
	return ids, nil
}

// Recent implements Backend.Recent
func (m *MemoryBackend) Recent(ctx context.Context, runID string, n int) ([]*Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	var out []*Transition
	for i := len(m.transitions) - 1; i >= 0; i-- {
		if n > 0 && len(out) == n {
			break
		}
		t := m.transitions[i]
		if runID != "" && t.RunID != runID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}

	// reverse to oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// GetStats implements Backend.GetStats
func (m *MemoryBackend) GetStats(ctx context.Context, runID string) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	stats := &Stats{TransitionsByRun: make(map[string]uint64)}
	for run, count := range m.runIndex {
		if runID == "" || run == runID {
			stats.TransitionsByRun[run] = count
		}
	}

	var oldest, newest *Transition
	for _, t := range m.transitions {
		if runID != "" && t.RunID != runID {
			continue
		}
		stats.TotalTransitions++
		stats.CumulativeReward += t.Reward
		if t.FoodRelocated {
			stats.FoodConsumed++
		}
		if oldest == nil {
			oldest = t
		}
		newest = t
	}

	if oldest != nil {
		o, n := oldest.Timestamp, newest.Timestamp
		stats.OldestTimestamp = &o
		stats.NewestTimestamp = &n
	}
	return stats, nil
}

// Close implements Backend.Close
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transitions = nil
	m.runIndex = nil
	m.closed = true
	return nil
}

// Helper methods

func (m *MemoryBackend) evictIfNeeded() {
	if m.maxSize == 0 || uint64(len(m.transitions)) <= m.maxSize {
		return
	}

	// Remove oldest transitions
	toRemove := uint64(len(m.transitions)) - m.maxSize
	for _, t := range m.transitions[:toRemove] {
		m.forget(t)
	}
	n := copy(m.transitions, m.transitions[toRemove:])
	clearTail(m.transitions, n)
	m.transitions = m.transitions[:n]
}

func (m *MemoryBackend) forget(t *Transition) {
	if m.runIndex[t.RunID] <= 1 {
		delete(m.runIndex, t.RunID)
		return
	}
	m.runIndex[t.RunID]--
}

// clearTail nils out s[n:] so evicted transitions can be collected.
func clearTail(s []*Transition, n int) {
	for i := n; i < len(s); i++ {
		s[i] = nil
	}
}
