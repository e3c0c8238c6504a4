package policy

import (
	"github.com/cartridge/forager/internal/grid"
	"github.com/cartridge/forager/internal/qtable"
)

// EpsilonGreedy explores a uniformly random valid action with
// probability Epsilon and otherwise exploits the Q-table.
type EpsilonGreedy struct {
	Epsilon float64
}

// Name implements Policy
func (p EpsilonGreedy) Name() string { return NameEpsilonGreedy }

// SelectAction implements Policy. One uniform draw decides between
// exploring and exploiting on every call.
func (p EpsilonGreedy) SelectAction(state int, valid []grid.Action, q *qtable.Table, rng Rand) (grid.Action, error) {
	if len(valid) == 0 {
		return 0, ErrNoValidAction
	}
	if rng.Float64() < p.Epsilon {
		return valid[rng.Intn(len(valid))], nil
	}
	return Greedy(state, valid, q, rng), nil
}

// Greedy returns the valid action with the highest value. When several
// actions share the maximum, one of them is picked uniformly; a unique
// maximum is returned without touching rng. valid must not be empty.
func Greedy(state int, valid []grid.Action, q *qtable.Table, rng Rand) grid.Action {
	ties := make([]grid.Action, 0, len(valid))
	best := q.Get(state, valid[0])
	for _, a := range valid {
		v := q.Get(state, a)
		switch {
		case v > best:
			best = v
			ties = append(ties[:0], a)
		case v == best:
			ties = append(ties, a)
		}
	}
	if len(ties) == 1 {
		return ties[0]
	}
	return ties[rng.Intn(len(ties))]
}

// FirstBest is Greedy without the random tie-break: the first maximal
// action in enumeration order. Renderers use it to draw a stable arrow.
func FirstBest(state int, valid []grid.Action, q *qtable.Table) (grid.Action, bool) {
	if len(valid) == 0 {
		return 0, false
	}
	best := valid[0]
	for _, a := range valid[1:] {
		if q.Get(state, a) > q.Get(state, best) {
			best = a
		}
	}
	return best, true
}
