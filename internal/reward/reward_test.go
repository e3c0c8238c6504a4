package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/forager/internal/grid"
)

var params = Params{Base: -1, Food: 2, On: AttachDestination}

func TestBuildMarksExactlyTheBlockingActions(t *testing.T) {
	g, err := grid.New(4, 4, []grid.Rect{{X: 1, Y: 1, Width: 2, Height: 1}}, nil)
	require.NoError(t, err)
	m := Build(g, params)

	for state := 0; state < g.States(); state++ {
		x, y := g.Coordinates(state)
		for _, a := range grid.Actions {
			dx, dy := a.Delta()
			target, inside := g.StateAt(x+dx, y+dy)
			wantValid := !g.IsBlocked(state) && inside && !g.IsBlocked(target)

			value, ok := m.Reward(state, a)
			assert.Equal(t, wantValid, ok, "cell (%d,%d) action %s", x, y, a)
			if ok {
				assert.Equal(t, -1.0, value)
			}
		}
	}
}

func TestBuildDestinationFood(t *testing.T) {
	g, err := grid.New(3, 3, nil, []grid.Point{{X: 1, Y: 1}})
	require.NoError(t, err)
	m := Build(g, params)

	food, _ := g.StateAt(1, 1)
	left, _ := g.StateAt(0, 1)
	value, ok := m.Reward(left, grid.Right)
	require.True(t, ok)
	assert.Equal(t, 2.0, value)

	for _, a := range grid.Actions {
		value, ok := m.Reward(food, a)
		require.True(t, ok)
		assert.Equal(t, -1.0, value, "leaving food with %s", a)
	}
}

func TestBuildOriginFood(t *testing.T) {
	g, err := grid.New(3, 3, nil, []grid.Point{{X: 1, Y: 1}})
	require.NoError(t, err)
	m := Build(g, Params{Base: -1, Food: 2, On: AttachOrigin})

	food, _ := g.StateAt(1, 1)
	for _, a := range grid.Actions {
		value, ok := m.Reward(food, a)
		require.True(t, ok)
		assert.Equal(t, 2.0, value, "leaving food with %s", a)
	}

	left, _ := g.StateAt(0, 1)
	value, ok := m.Reward(left, grid.Right)
	require.True(t, ok)
	assert.Equal(t, -1.0, value)
}

func TestRebuildAfterRelocation(t *testing.T) {
	g, err := grid.New(3, 3, nil, []grid.Point{{X: 1, Y: 1}})
	require.NoError(t, err)
	food, _ := g.StateAt(1, 1)
	corner, _ := g.StateAt(0, 0)

	g.ClearFood(food)
	require.NoError(t, g.PlaceFood(corner))
	m := Build(g, params)

	left, _ := g.StateAt(0, 1)
	value, _ := m.Reward(left, grid.Right)
	assert.Equal(t, -1.0, value, "old food cell no longer pays")
	value, _ = m.Reward(left, grid.Up)
	assert.Equal(t, 2.0, value, "new food cell pays")
}

func TestValidActionsOrder(t *testing.T) {
	g, err := grid.New(3, 3, nil, nil)
	require.NoError(t, err)
	m := Build(g, params)

	center, _ := g.StateAt(1, 1)
	assert.Equal(t, []grid.Action{grid.Left, grid.Right, grid.Up, grid.Down}, m.ValidActions(center))

	corner, _ := g.StateAt(0, 0)
	assert.Equal(t, []grid.Action{grid.Right, grid.Down}, m.ValidActions(corner))

	_, ok := m.Reward(-1, grid.Left)
	assert.False(t, ok)
	_, ok = m.Reward(0, grid.Action(7))
	assert.False(t, ok)
}

func TestParseAttachment(t *testing.T) {
	on, err := ParseAttachment("")
	require.NoError(t, err)
	assert.Equal(t, AttachDestination, on)

	on, err = ParseAttachment("Origin")
	require.NoError(t, err)
	assert.Equal(t, AttachOrigin, on)

	_, err = ParseAttachment("sideways")
	assert.Error(t, err)
}

func TestBuildBlockedCellHasNoMoves(t *testing.T) {
	g, err := grid.New(3, 3, []grid.Rect{{X: 1, Y: 1, Width: 1, Height: 1}}, nil)
	require.NoError(t, err)
	m := Build(g, params)

	centre, _ := g.StateAt(1, 1)
	assert.Empty(t, m.ValidActions(centre))
	for _, a := range grid.Actions {
		_, ok := m.Reward(centre, a)
		assert.False(t, ok, a.String())
	}
	corner, _ := g.StateAt(0, 0)
	assert.Equal(t, []grid.Action{grid.Right, grid.Down}, m.ValidActions(corner))
}
