// Package agent implements the tabular Q-learning forager. A single
// Tick selects an action epsilon-greedily, applies the Bellman update,
// moves the agent and relocates any food it reached.
//
// The agent is not safe for concurrent use. Callers that read it while
// another goroutine ticks must serialize access themselves.
package agent

import (
	"errors"
	"fmt"

	"github.com/cartridge/forager/internal/config"
	"github.com/cartridge/forager/internal/grid"
	"github.com/cartridge/forager/internal/policy"
	"github.com/cartridge/forager/internal/qtable"
	"github.com/cartridge/forager/internal/reward"
)

var (
	// ErrInvalidTransition means an action with no destination reached
	// the update step. Selection only offers valid actions, so this is a
	// programming error.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNoValidAction means the agent stands in, or moved into, a cell
	// it cannot leave. The layout is malformed; the error is fatal.
	ErrNoValidAction = policy.ErrNoValidAction
)

// Rand is the random source consumed by Tick: exploration draws,
// tie-breaks and food relocation. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// TickResult summarises one step for logging and rendering.
type TickResult struct {
	StateBefore   int         `json:"state_before"`
	Action        grid.Action `json:"action"`
	Reward        float64     `json:"reward"`
	StateAfter    int         `json:"state_after"`
	FoodRelocated bool        `json:"food_relocated"`
	// FoodState is where the consumed food went; only set when
	// FoodRelocated is true.
	FoodState int     `json:"food_state,omitempty"`
	QBefore   float64 `json:"q_before"`
	QAfter    float64 `json:"q_after"`
}

// Agent holds the world, the learned table and the agent position.
type Agent struct {
	grid    *grid.Map
	rewards *reward.Model
	q       *qtable.Table
	policy  policy.Policy
	params  reward.Params

	alpha float64
	gamma float64

	start int
	state int
}

// Option customises an Agent at construction.
type Option func(*Agent)

// WithPolicy replaces the policy chosen by the configuration.
func WithPolicy(p policy.Policy) Option {
	return func(a *Agent) { a.policy = p }
}

// New builds the grid, reward table and Q-table described by cfg and
// places the agent on the start cell.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	g, err := cfg.Environment.Build()
	if err != nil {
		return nil, err
	}
	l := cfg.Learning
	if _, err := reward.ParseAttachment(l.FoodRewardOn); err != nil {
		return nil, err
	}
	q, err := qtable.New(g.States(), grid.Count, l.MinQ, l.MaxQ)
	if err != nil {
		return nil, err
	}
	p, err := policy.New(l.Policy, l.ExplorationRate)
	if err != nil {
		return nil, err
	}
	start, _ := g.StateAt(cfg.Environment.Start.X, cfg.Environment.Start.Y)

	a := &Agent{
		grid:   g,
		q:      q,
		policy: p,
		params: l.RewardParams(),
		alpha:  l.LearningRate,
		gamma:  l.DiscountFactor,
		start:  start,
		state:  start,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.rewards = reward.Build(g, a.params)
	return a, nil
}

// Tick advances the simulation by one step. On ErrNoValidAction and
// ErrInvalidTransition nothing has been mutated.
func (a *Agent) Tick(rng Rand) (TickResult, error) {
	state := a.state
	action, err := a.policy.SelectAction(state, a.rewards.ValidActions(state), a.q, rng)
	if err != nil {
		return TickResult{}, fmt.Errorf("state %d: %w", state, err)
	}
	return a.apply(state, action, rng)
}

// apply performs steps 2-5 of a tick for an already selected action.
func (a *Agent) apply(state int, action grid.Action, rng Rand) (TickResult, error) {
	next, ok := a.grid.Neighbor(state, action)
	if !ok {
		return TickResult{}, fmt.Errorf("%s from state %d: %w", action, state, ErrInvalidTransition)
	}
	r, ok := a.rewards.Reward(state, action)
	if !ok {
		return TickResult{}, fmt.Errorf("%s from state %d: %w", action, state, ErrInvalidTransition)
	}
	bestNext, ok := a.q.Max(next, a.rewards.ValidActions(next))
	if !ok {
		return TickResult{}, fmt.Errorf("state %d: %w", next, ErrNoValidAction)
	}

	before := a.q.Get(state, action)
	after := a.q.Set(state, action, (1-a.alpha)*before+a.alpha*(r+a.gamma*bestNext))
	a.state = next

	res := TickResult{
		StateBefore: state,
		Action:      action,
		Reward:      r,
		StateAfter:  next,
		QBefore:     before,
		QAfter:      after,
	}

	// Relocation happens after the update so the move is credited
	// against the food's old position.
	if a.grid.HasFood(next) {
		to, err := a.grid.RelocateFood(next, rng)
		if err != nil {
			return res, fmt.Errorf("relocate food from state %d: %w", next, err)
		}
		a.rewards = reward.Build(a.grid, a.params)
		res.FoodRelocated = true
		res.FoodState = to
	}
	return res, nil
}

// State is the agent's current state index.
func (a *Agent) State() int { return a.state }

// StartState is the state the agent was created on.
func (a *Agent) StartState() int { return a.start }

// PolicyName names the active policy.
func (a *Agent) PolicyName() string { return a.policy.Name() }

// States is the number of cells.
func (a *Agent) States() int { return a.grid.States() }

// Width is the number of grid columns.
func (a *Agent) Width() int { return a.grid.Width() }

// Height is the number of grid rows.
func (a *Agent) Height() int { return a.grid.Height() }

// InRange reports whether state is a valid state index.
func (a *Agent) InRange(state int) bool { return a.grid.InRange(state) }

// QValue returns the learned value of taking action from state.
func (a *Agent) QValue(state int, action grid.Action) float64 {
	return a.q.Get(state, action)
}

// QBounds returns the clamp range of the Q-table.
func (a *Agent) QBounds() (min, max float64) { return a.q.Bounds() }

// QTable returns a copy of the Q-table, one row per state.
func (a *Agent) QTable() [][]float64 { return a.q.Snapshot() }

// IsBlocked reports whether state is an obstacle.
func (a *Agent) IsBlocked(state int) bool { return a.grid.IsBlocked(state) }

// HasFood reports whether state currently holds food.
func (a *Agent) HasFood(state int) bool { return a.grid.HasFood(state) }

// FoodStates lists the states currently holding food.
func (a *Agent) FoodStates() []int { return a.grid.FoodStates() }

// Coordinates maps a state index to (x, y).
func (a *Agent) Coordinates(state int) (x, y int) { return a.grid.Coordinates(state) }

// StateAt maps (x, y) to a state index; ok is false outside the grid.
func (a *Agent) StateAt(x, y int) (state int, ok bool) { return a.grid.StateAt(x, y) }

// Cells returns a copy of every cell in state order.
func (a *Agent) Cells() []grid.Cell { return a.grid.Cells() }

// Reward returns the current reward-table entry for (state, action).
func (a *Agent) Reward(state int, action grid.Action) (float64, bool) {
	return a.rewards.Reward(state, action)
}

// ValidActions lists the legal moves from state.
func (a *Agent) ValidActions(state int) []grid.Action {
	return a.rewards.ValidActions(state)
}

// GreedyAction is the first maximal valid action of state, without the
// random tie-break. ok is false for cells with no legal move.
func (a *Agent) GreedyAction(state int) (grid.Action, bool) {
	return policy.FirstBest(state, a.rewards.ValidActions(state), a.q)
}
