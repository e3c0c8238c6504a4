package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cartridge/forager/internal/events"
	"github.com/cartridge/forager/internal/health"
	httpServer "github.com/cartridge/forager/internal/http"
	"github.com/cartridge/forager/internal/runner"
)

func newServeCmd() *cobra.Command {
	var (
		addr         string
		grpcAddr     string
		natsURL      string
		tickInterval time.Duration
		ticks        int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent in the background and serve the query API",
		Long: `Serve ticks the agent every --tick-interval and exposes its state
over HTTP under /api/v1. With --grpc-addr it also serves the standard
gRPC health service, which turns NOT_SERVING when the agent hits a
fatal error or stops making progress. With --nats-url every tick and
run status change is published to NATS.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = addr
			}
			if flags.Changed("grpc-addr") {
				cfg.Server.GRPCAddr = grpcAddr
			}
			if flags.Changed("nats-url") {
				cfg.Events.NATSURL = natsURL
			}
			if flags.Changed("tick-interval") {
				cfg.Runner.TickInterval = tickInterval
			}
			if flags.Changed("ticks") {
				cfg.Runner.MaxTicks = ticks
			}
			return serve()
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&addr, "addr", ":8080", "HTTP listen address")
	fs.StringVar(&grpcAddr, "grpc-addr", "", "gRPC health listen address (empty disables)")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL (empty disables publishing)")
	fs.DurationVar(&tickInterval, "tick-interval", 500*time.Millisecond, "Time between ticks (0 ticks as fast as possible)")
	fs.IntVar(&ticks, "ticks", -1, "Stop ticking after this many ticks (-1 for unlimited)")
	return cmd
}

func serve() error {
	logger := newLogger(os.Stdout)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		nats, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			return err
		}
		defer nats.Close()
		publisher = nats
		logger.Info().Str("url", cfg.Events.NATSURL).Str("subject", cfg.Events.Subject).Msg("Publishing events to NATS")
	}

	r, err := runner.New(cfg, runner.WithLogger(logger), runner.WithPublisher(publisher))
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing runner")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := httpServer.NewServer(r, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serveErr := make(chan error, 2)
	httpDone := make(chan struct{})
	go func() {
		defer close(httpDone)
		logger.Info().Str("addr", cfg.Server.Addr).Msg("forager HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var stopGRPC func(context.Context)
	if cfg.Server.GRPCAddr != "" {
		grpcServer, hs := health.NewGRPCServer(logger)
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info().Str("addr", lis.Addr().String()).Msg("forager gRPC health server starting")
			if err := grpcServer.Serve(lis); err != nil {
				serveErr <- err
			}
		}()

		monitor := health.NewMonitor(r, hs, health.Config{
			CheckInterval: cfg.Server.HealthInterval,
			StallAfter:    cfg.Server.StallAfter,
			RunningStatus: runner.StatusRunning,
		}, logger)
		go monitor.Start(ctx)

		stopGRPC = func(ctx context.Context) {
			hs.Shutdown()
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-ctx.Done():
				logger.Warn().Msg("Shutdown timeout exceeded, forcing gRPC stop")
				grpcServer.Stop()
			case <-stopped:
			}
		}
	}

	runDone := make(chan error, 1)
	go func() { runDone <- r.Run(ctx) }()

	var failure error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case failure = <-serveErr:
		logger.Error().Err(failure).Msg("server failed")
		stop()
	}

	// The runner may already have stopped on its own; the API keeps
	// serving its final state until shutdown.
	if err := <-runDone; err != nil {
		logger.Error().Err(err).Msg("runner stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if stopGRPC != nil {
		stopGRPC(shutdownCtx)
	}
	<-httpDone
	logger.Info().Msg("forager stopped")
	return failure
}
