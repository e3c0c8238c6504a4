package policy

import (
	"github.com/cartridge/forager/internal/grid"
	"github.com/cartridge/forager/internal/qtable"
)

// Random selects uniformly among valid actions and ignores the Q-table.
// It is the exploration-only baseline.
type Random struct{}

// Name implements Policy
func (Random) Name() string { return NameRandom }

// SelectAction implements Policy
func (Random) SelectAction(_ int, valid []grid.Action, _ *qtable.Table, rng Rand) (grid.Action, error) {
	if len(valid) == 0 {
		return 0, ErrNoValidAction
	}
	return valid[rng.Intn(len(valid))], nil
}
