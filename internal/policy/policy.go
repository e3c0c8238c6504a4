// Package policy provides action selection strategies for the agent
package policy

import (
	"errors"
	"fmt"

	"github.com/cartridge/forager/internal/grid"
	"github.com/cartridge/forager/internal/qtable"
)

// ErrNoValidAction indicates a state from which every move is invalid.
// It means the layout is malformed (e.g. a walled-in cell) and is fatal.
var ErrNoValidAction = errors.New("no valid action")

// Rand is the randomness a policy may consume. *math/rand.Rand
// satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Policy interface for action selection
type Policy interface {
	// Name identifies the policy in logs and config
	Name() string

	// SelectAction chooses one of valid for state. valid is already
	// filtered against the reward table, in enumeration order.
	SelectAction(state int, valid []grid.Action, q *qtable.Table, rng Rand) (grid.Action, error)
}

const (
	NameEpsilonGreedy = "epsilon-greedy"
	NameRandom        = "random"
)

// New returns the policy registered under name.
func New(name string, epsilon float64) (Policy, error) {
	switch name {
	case "", NameEpsilonGreedy:
		return EpsilonGreedy{Epsilon: epsilon}, nil
	case NameRandom:
		return Random{}, nil
	default:
		return nil, fmt.Errorf("unsupported policy %q", name)
	}
}
