// Package reward precomputes, for every state and action, either the
// numeric reward of the move or the fact that the move is invalid.
package reward

import (
	"fmt"
	"strings"

	"github.com/cartridge/forager/internal/grid"
)

// Attachment selects which end of a move has to hold food for the move
// to pay the food reward.
type Attachment string

const (
	// AttachDestination pays the food reward for moving onto food.
	AttachDestination Attachment = "destination"
	// AttachOrigin pays the food reward for any valid move out of a
	// food-bearing cell, regardless of direction.
	AttachOrigin Attachment = "origin"
)

// ParseAttachment accepts "destination" or "origin"; empty means
// destination.
func ParseAttachment(s string) (Attachment, error) {
	switch Attachment(strings.ToLower(strings.TrimSpace(s))) {
	case "", AttachDestination:
		return AttachDestination, nil
	case AttachOrigin:
		return AttachOrigin, nil
	}
	return "", fmt.Errorf("unknown food reward attachment %q", s)
}

// Params are the reward values used to build a Model.
type Params struct {
	Base float64
	Food float64
	On   Attachment
}

type entry struct {
	valid bool
	value float64
}

// Model is the reward table. It is immutable; rebuild it after the grid
// occupants change.
type Model struct {
	states  int
	entries []entry
}

// Build computes every entry of the table from g.
func Build(g *grid.Map, p Params) *Model {
	m := &Model{
		states:  g.States(),
		entries: make([]entry, g.States()*grid.Count),
	}
	for state := 0; state < m.states; state++ {
		// The agent never stands on a blocked cell.
		if g.IsBlocked(state) {
			continue
		}
		for _, a := range grid.Actions {
			next, ok := g.Neighbor(state, a)
			if !ok {
				continue
			}
			value := p.Base
			if p.On == AttachOrigin && g.HasFood(state) {
				value = p.Food
			} else if p.On != AttachOrigin && g.HasFood(next) {
				value = p.Food
			}
			m.entries[state*grid.Count+int(a)] = entry{valid: true, value: value}
		}
	}
	return m
}

// States is the number of rows in the table.
func (m *Model) States() int { return m.states }

// Reward returns the reward of taking a from state. ok is false when the
// move is invalid or the arguments are out of range.
func (m *Model) Reward(state int, a grid.Action) (value float64, ok bool) {
	if state < 0 || state >= m.states || !a.Valid() {
		return 0, false
	}
	e := m.entries[state*grid.Count+int(a)]
	return e.value, e.valid
}

// Valid reports whether a is a legal move from state.
func (m *Model) Valid(state int, a grid.Action) bool {
	_, ok := m.Reward(state, a)
	return ok
}

// ValidActions lists the legal moves from state in enumeration order.
func (m *Model) ValidActions(state int) []grid.Action {
	out := make([]grid.Action, 0, grid.Count)
	for _, a := range grid.Actions {
		if m.Valid(state, a) {
			out = append(out, a)
		}
	}
	return out
}
