package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cartridge/forager/internal/agent"
	"github.com/cartridge/forager/internal/report"
)

func newLayoutCmd() *cobra.Command {
	var color bool

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the configured grid layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			a, err := agent.New(cfg)
			if err != nil {
				return err
			}

			blocked := 0
			for _, c := range a.Cells() {
				if c.Blocked {
					blocked++
				}
			}
			sx, sy := a.Coordinates(a.StartState())
			fmt.Fprintf(out, "%dx%d grid, %d blocked, food at %v, start (%d,%d)\n",
				a.Width(), a.Height(), blocked, foodCoordinates(a), sx, sy)
			return report.Grid(out, a, report.Options{Color: color})
		},
	}

	cmd.Flags().BoolVar(&color, "color", true, "Colour the render")
	return cmd
}

func foodCoordinates(a *agent.Agent) []string {
	states := a.FoodStates()
	out := make([]string, 0, len(states))
	for _, state := range states {
		x, y := a.Coordinates(state)
		out = append(out, fmt.Sprintf("(%d,%d)", x, y))
	}
	return out
}
