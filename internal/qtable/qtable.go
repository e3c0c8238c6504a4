// Package qtable stores learned state-action values bounded to a fixed
// range.
package qtable

import (
	"fmt"

	"github.com/cartridge/forager/internal/grid"
)

// Table is a states×actions matrix of values, zero-initialised. Every
// write is clamped to [min, max].
type Table struct {
	states  int
	actions int
	min     float64
	max     float64
	data    []float64
}

// New creates a zeroed table. min must be below max and the range must
// contain zero.
func New(states, actions int, min, max float64) (*Table, error) {
	if states <= 0 || actions <= 0 {
		return nil, fmt.Errorf("qtable: invalid shape %dx%d", states, actions)
	}
	if min >= max {
		return nil, fmt.Errorf("qtable: min %.3f must be below max %.3f", min, max)
	}
	if min > 0 || max < 0 {
		return nil, fmt.Errorf("qtable: range [%.3f, %.3f] must contain zero", min, max)
	}
	return &Table{
		states:  states,
		actions: actions,
		min:     min,
		max:     max,
		data:    make([]float64, states*actions),
	}, nil
}

// States is the number of rows.
func (q *Table) States() int { return q.states }

// Actions is the number of columns.
func (q *Table) Actions() int { return q.actions }

// Bounds returns the clamp range.
func (q *Table) Bounds() (min, max float64) { return q.min, q.max }

// Get returns Q(state, a).
func (q *Table) Get(state int, a grid.Action) float64 {
	return q.data[state*q.actions+int(a)]
}

// Set stores value clamped to the table bounds and returns what was
// stored.
func (q *Table) Set(state int, a grid.Action, value float64) float64 {
	v := q.Clamp(value)
	q.data[state*q.actions+int(a)] = v
	return v
}

// Clamp limits value to the table bounds.
func (q *Table) Clamp(value float64) float64 {
	if value < q.min {
		return q.min
	}
	if value > q.max {
		return q.max
	}
	return value
}

// Max returns the largest value of state among the given actions. ok is
// false when actions is empty.
func (q *Table) Max(state int, actions []grid.Action) (best float64, ok bool) {
	for i, a := range actions {
		v := q.Get(state, a)
		if i == 0 || v > best {
			best = v
		}
	}
	return best, len(actions) > 0
}

// Row returns a copy of the values of state.
func (q *Table) Row(state int) []float64 {
	row := make([]float64, q.actions)
	copy(row, q.data[state*q.actions:(state+1)*q.actions])
	return row
}

// Snapshot returns a deep copy of the table, one row per state.
func (q *Table) Snapshot() [][]float64 {
	out := make([][]float64, q.states)
	for s := 0; s < q.states; s++ {
		out[s] = q.Row(s)
	}
	return out
}
