// Package grid models the static geometry of the world: a rectangle of
// cells, some blocked, some holding food, addressed by a state index.
package grid

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOutOfBounds indicates a coordinate or rectangle outside the grid.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrFoodOnBlocked indicates an attempt to put food on a blocked cell.
	ErrFoodOnBlocked = errors.New("food on blocked cell")
	// ErrNoRelocationTarget indicates no free cell is left to receive food.
	ErrNoRelocationTarget = errors.New("no cell available for food")
)

// Rand is the randomness the grid needs for food relocation.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Occupant marks special content of a cell.
type Occupant int

const (
	OccupantNone Occupant = iota
	OccupantFood
)

func (o Occupant) String() string {
	if o == OccupantFood {
		return "food"
	}
	return "none"
}

func (o Occupant) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Occupant) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "", "none":
		*o = OccupantNone
	case "food":
		*o = OccupantFood
	default:
		return fmt.Errorf("unknown occupant %q", text)
	}
	return nil
}

// Point is a cell coordinate.
type Point struct {
	X int `mapstructure:"x" json:"x"`
	Y int `mapstructure:"y" json:"y"`
}

// Rect is an obstacle rectangle anchored at its top-left cell.
type Rect struct {
	X      int `mapstructure:"x" json:"x"`
	Y      int `mapstructure:"y" json:"y"`
	Width  int `mapstructure:"width" json:"width"`
	Height int `mapstructure:"height" json:"height"`
}

// Cell is a single tile. Geometry never changes after construction;
// Occupant only changes through food placement.
type Cell struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Blocked  bool     `json:"blocked"`
	Occupant Occupant `json:"occupant"`
}

// Map owns the cells of the grid in a flat slice indexed by state.
// The state index of (x, y) is x*height + y.
type Map struct {
	width  int
	height int
	cells  []Cell
}

// New builds a width×height grid, blocks every listed rectangle and
// places food at the listed cells.
func New(width, height int, obstacles []Rect, food []Point) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid dimensions %dx%d: %w", width, height, ErrOutOfBounds)
	}
	m := &Map{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			m.cells[m.index(x, y)] = Cell{X: x, Y: y}
		}
	}
	for _, r := range obstacles {
		if err := m.fill(r); err != nil {
			return nil, err
		}
	}
	for _, p := range food {
		state, ok := m.StateAt(p.X, p.Y)
		if !ok {
			return nil, fmt.Errorf("food at (%d,%d): %w", p.X, p.Y, ErrOutOfBounds)
		}
		if err := m.PlaceFood(state); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Map) fill(r Rect) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("obstacle %+v: empty rectangle", r)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > m.width || r.Y+r.Height > m.height {
		return fmt.Errorf("obstacle %+v: %w", r, ErrOutOfBounds)
	}
	for x := r.X; x < r.X+r.Width; x++ {
		for y := r.Y; y < r.Y+r.Height; y++ {
			m.cells[m.index(x, y)].Blocked = true
		}
	}
	return nil
}

func (m *Map) index(x, y int) int {
	return x*m.height + y
}

// Width is the number of columns.
func (m *Map) Width() int { return m.width }

// Height is the number of rows.
func (m *Map) Height() int { return m.height }

// States is the number of cells, and therefore of state indices.
func (m *Map) States() int { return len(m.cells) }

// InRange reports whether state is a valid state index.
func (m *Map) InRange(state int) bool {
	return state >= 0 && state < len(m.cells)
}

// StateAt maps a coordinate to its state index. ok is false outside
// the grid.
func (m *Map) StateAt(x, y int) (state int, ok bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return 0, false
	}
	return m.index(x, y), true
}

// Coordinates maps a state index back to (x, y). It panics on an index
// outside the grid, like slice indexing.
func (m *Map) Coordinates(state int) (x, y int) {
	c := m.cells[state]
	return c.X, c.Y
}

// Cell returns a copy of the cell at state.
func (m *Map) Cell(state int) Cell {
	return m.cells[state]
}

// Cells returns a copy of every cell in state order.
func (m *Map) Cells() []Cell {
	out := make([]Cell, len(m.cells))
	copy(out, m.cells)
	return out
}

// IsBlocked reports whether the cell at state is an obstacle.
func (m *Map) IsBlocked(state int) bool {
	return m.cells[state].Blocked
}

// HasFood reports whether the cell at state holds food.
func (m *Map) HasFood(state int) bool {
	return m.cells[state].Occupant == OccupantFood
}

// FoodStates lists the states currently holding food, ascending.
func (m *Map) FoodStates() []int {
	var out []int
	for i, c := range m.cells {
		if c.Occupant == OccupantFood {
			out = append(out, i)
		}
	}
	return out
}

// Neighbor returns the destination of taking a from state. ok is false
// when the move would leave the grid or enter a blocked cell.
func (m *Map) Neighbor(state int, a Action) (next int, ok bool) {
	if !m.InRange(state) || !a.Valid() {
		return 0, false
	}
	dx, dy := a.Delta()
	c := m.cells[state]
	next, ok = m.StateAt(c.X+dx, c.Y+dy)
	if !ok || m.cells[next].Blocked {
		return 0, false
	}
	return next, true
}

// PlaceFood puts food on the cell at state.
func (m *Map) PlaceFood(state int) error {
	if !m.InRange(state) {
		return fmt.Errorf("state %d: %w", state, ErrOutOfBounds)
	}
	if m.cells[state].Blocked {
		x, y := m.Coordinates(state)
		return fmt.Errorf("cell (%d,%d): %w", x, y, ErrFoodOnBlocked)
	}
	m.cells[state].Occupant = OccupantFood
	return nil
}

// ClearFood removes any food from the cell at state.
func (m *Map) ClearFood(state int) {
	if m.InRange(state) {
		m.cells[state].Occupant = OccupantNone
	}
}

// RelocateFood clears the food at from and places it on a uniformly
// chosen cell reachable from from that is neither from itself nor
// already holding food.
func (m *Map) RelocateFood(from int, rng Rand) (int, error) {
	if !m.InRange(from) {
		return 0, fmt.Errorf("state %d: %w", from, ErrOutOfBounds)
	}
	reachable := m.Reachable(from)
	candidates := make([]int, 0, len(m.cells))
	for i, c := range m.cells {
		if i == from || !reachable[i] || c.Occupant == OccupantFood {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return 0, ErrNoRelocationTarget
	}
	to := candidates[rng.Intn(len(candidates))]
	m.ClearFood(from)
	m.cells[to].Occupant = OccupantFood
	return to, nil
}

// Reachable marks, by state, every cell that can be walked to from
// state through unblocked neighbours. state itself is included unless
// it is outside the grid.
func (m *Map) Reachable(state int) []bool {
	seen := make([]bool, len(m.cells))
	if !m.InRange(state) {
		return seen
	}
	seen[state] = true
	queue := []int{state}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, a := range Actions {
			next, ok := m.Neighbor(cur, a)
			if ok && !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}
