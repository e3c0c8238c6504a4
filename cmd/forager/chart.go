package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cartridge/forager/internal/config"
	"github.com/cartridge/forager/internal/policy"
	"github.com/cartridge/forager/internal/report"
	"github.com/cartridge/forager/internal/runner"
)

func newChartCmd() *cobra.Command {
	var (
		ticks    int
		out      string
		every    uint64
		baseline bool
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Train headless and write the cumulative reward chart",
		Long: `Chart trains headless like run and writes an HTML page with the
cumulative reward and food count per tick. With --baseline a second run
using the uniform random policy on the same layout and seed is drawn
alongside for comparison.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Runner.MaxTicks = ticks
			cfg.Runner.TickInterval = 0
			logger := newLogger(cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			learned, err := chartRun(ctx, cfg, logger, every)
			if err != nil {
				return err
			}
			series := []*report.Series{learned}

			if baseline {
				random := *cfg
				random.Learning.Policy = policy.NameRandom
				s, err := chartRun(ctx, &random, logger, every)
				if err != nil {
					return err
				}
				series = append(series, s)
			}

			if err := writeChartFile(out, "forager reward", series...); err != nil {
				return err
			}
			logger.Info().Str("path", out).Int("series", len(series)).Msg("Wrote reward chart")
			return nil
		},
	}

	cmd.Flags().IntVar(&ticks, "ticks", 10000, "Ticks per run")
	cmd.Flags().StringVarP(&out, "out", "o", "forager.html", "Output HTML file")
	cmd.Flags().Uint64Var(&every, "every", 10, "Chart one point every N ticks")
	cmd.Flags().BoolVar(&baseline, "baseline", false, "Add a random-policy baseline series")
	return cmd
}

func chartRun(ctx context.Context, c *config.Config, logger zerolog.Logger, every uint64) (*report.Series, error) {
	series := report.NewSeries(c.Learning.Policy, every)
	r, err := runner.New(c,
		runner.WithLogger(logger),
		runner.WithObserver(series.Observe),
	)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := r.Run(ctx); err != nil {
		return nil, err
	}
	return series, nil
}
