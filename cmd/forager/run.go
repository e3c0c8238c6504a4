package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cartridge/forager/internal/agent"
	"github.com/cartridge/forager/internal/report"
	"github.com/cartridge/forager/internal/runner"
)

func newRunCmd() *cobra.Command {
	var (
		ticks     int
		chartPath string
		every     uint64
		color     bool
		values    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train headless for a number of ticks and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("ticks") || cfg.Runner.MaxTicks <= 0 {
				cfg.Runner.MaxTicks = ticks
			}
			// Headless runs tick as fast as possible.
			cfg.Runner.TickInterval = 0

			logger := newLogger(cmd.ErrOrStderr())
			series := report.NewSeries(cfg.Learning.Policy, every)
			r, err := runner.New(cfg,
				runner.WithLogger(logger),
				runner.WithObserver(series.Observe),
			)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := r.Run(ctx)

			snap := r.Snapshot()
			fmt.Fprintf(out, "run %s: %d ticks, %d food, cumulative reward %.2f\n",
				snap.RunID, snap.Step, snap.FoodConsumed, snap.CumulativeReward)

			var renderErr error
			r.View(func(a *agent.Agent) {
				renderErr = report.Grid(out, a, report.Options{Color: color, Policy: true})
				if renderErr == nil && values {
					renderErr = report.Values(out, a, report.Options{Color: color})
				}
			})
			if renderErr != nil {
				return renderErr
			}

			if chartPath != "" {
				if err := writeChartFile(chartPath, "forager "+snap.RunID, series); err != nil {
					return err
				}
				logger.Info().Str("path", chartPath).Msg("Wrote reward chart")
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&ticks, "ticks", 10000, "Ticks to run (-1 runs until interrupted)")
	cmd.Flags().StringVar(&chartPath, "chart", "", "Also write the reward chart to this HTML file")
	cmd.Flags().Uint64Var(&every, "every", 10, "Chart one point every N ticks")
	cmd.Flags().BoolVar(&color, "color", true, "Colour the terminal render")
	cmd.Flags().BoolVar(&values, "values", false, "Also print the best Q-value of every cell")
	return cmd
}

func writeChartFile(path, title string, series ...*report.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := report.WriteChart(f, title, series...); err != nil {
		f.Close()
		return fmt.Errorf("render chart: %w", err)
	}
	return f.Close()
}
