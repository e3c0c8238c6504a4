// Package report renders a forager world for people: a coloured
// terminal map and an HTML reward chart.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/cartridge/forager/internal/agent"
	"github.com/cartridge/forager/internal/grid"
)

// Glyphs used by Grid.
const (
	GlyphWall  = "#"
	GlyphFood  = "F"
	GlyphAgent = "@"
	GlyphStart = "S"
	GlyphOpen  = "."
)

var arrows = map[grid.Action]string{
	grid.Left:  "<",
	grid.Right: ">",
	grid.Up:    "^",
	grid.Down:  "v",
}

// Options controls terminal rendering.
type Options struct {
	// Color enables ANSI colours.
	Color bool
	// Policy draws the greedy action in open cells that have been
	// learned, instead of GlyphOpen.
	Policy bool
}

// Grid writes the world one display row per line, y growing downward.
// Open cells show the greedy arrow once any of their values is non-zero.
func Grid(w io.Writer, a *agent.Agent, o Options) error {
	au := aurora.NewAurora(o.Color)
	var sb strings.Builder
	for y := 0; y < a.Height(); y++ {
		for x := 0; x < a.Width(); x++ {
			state, _ := a.StateAt(x, y)
			sb.WriteString(fmt.Sprint(cell(au, a, state, o)))
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func cell(au aurora.Aurora, a *agent.Agent, state int, o Options) aurora.Value {
	switch {
	case a.IsBlocked(state):
		return au.Gray(12, GlyphWall)
	case state == a.State():
		return au.Bold(au.Green(GlyphAgent))
	case a.HasFood(state):
		return au.Yellow(GlyphFood)
	case state == a.StartState():
		return au.Cyan(GlyphStart)
	}
	if o.Policy && learned(a, state) {
		if best, ok := a.GreedyAction(state); ok {
			return au.Blue(arrows[best])
		}
	}
	return au.White(GlyphOpen)
}

func learned(a *agent.Agent, state int) bool {
	for _, action := range grid.Actions {
		if a.QValue(state, action) != 0 {
			return true
		}
	}
	return false
}

// Values writes the best valid Q-value of each cell in a fixed-width
// table; blocked cells are left blank.
func Values(w io.Writer, a *agent.Agent, o Options) error {
	au := aurora.NewAurora(o.Color)
	var sb strings.Builder
	for y := 0; y < a.Height(); y++ {
		for x := 0; x < a.Width(); x++ {
			state, _ := a.StateAt(x, y)
			if a.IsBlocked(state) {
				sb.WriteString(fmt.Sprint(au.Gray(12, "      |")))
				continue
			}
			best, ok := a.GreedyAction(state)
			v := 0.0
			if ok {
				v = a.QValue(state, best)
			}
			text := fmt.Sprintf("%6.2f", v)
			switch {
			case v > 0:
				sb.WriteString(fmt.Sprint(au.Green(text)))
			case v < 0:
				sb.WriteString(fmt.Sprint(au.Red(text)))
			default:
				sb.WriteString(text)
			}
			sb.WriteString(fmt.Sprint(au.White("|")))
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
