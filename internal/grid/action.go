package grid

import (
	"fmt"
	"strings"
)

// Action is one of the four discrete moves.
type Action int

const (
	Left Action = iota
	Right
	Up
	Down
)

// Count is the number of actions.
const Count = 4

// Actions lists every action in enumeration order. Iteration and
// tie-breaking rely on this order being stable.
var Actions = [Count]Action{Left, Right, Up, Down}

// Delta returns the coordinate change for the action. Up decreases y.
func (a Action) Delta() (dx, dy int) {
	switch a {
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	}
	return 0, 0
}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	return a >= Left && a <= Down
}

func (a Action) String() string {
	switch a {
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction accepts the case-insensitive action name.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LEFT":
		return Left, nil
	case "RIGHT":
		return Right, nil
	case "UP":
		return Up, nil
	case "DOWN":
		return Down, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// MarshalText encodes the action by name so JSON payloads stay readable.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action name.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
