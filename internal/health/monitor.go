package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cartridge/forager/internal/metrics"
)

// ServiceName is the gRPC health service name reported for the runner.
// The empty service name mirrors it for clients that ask for overall
// server health.
const ServiceName = "forager.Runner"

// Source is the runner state the monitor inspects.
type Source interface {
	RunID() string
	Status() string
	Err() error
	LastProgress() time.Time
}

// DefaultCheckInterval is used when Config.CheckInterval is not positive.
const DefaultCheckInterval = 15 * time.Second

// Config holds health monitoring configuration
type Config struct {
	CheckInterval time.Duration
	StallAfter    time.Duration
	// RunningStatus is the Source status for which stalls are checked.
	RunningStatus string
}

// Monitor runs background health checks
type Monitor struct {
	source  Source
	server  *grpchealth.Server
	metrics *metrics.Collector
	config  Config
	logger  zerolog.Logger

	mu      sync.Mutex
	current healthpb.HealthCheckResponse_ServingStatus
}

// NewMonitor creates a new health monitor reporting into server
func NewMonitor(source Source, server *grpchealth.Server, config Config, logger zerolog.Logger) *Monitor {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultCheckInterval
	}
	m := &Monitor{
		source:  source,
		server:  server,
		metrics: metrics.NewCollector(logger),
		config:  config,
		logger:  logger,
		current: healthpb.HealthCheckResponse_SERVING,
	}
	m.set(healthpb.HealthCheckResponse_SERVING)
	return m
}

// Start begins the health monitoring loop
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	m.logger.Info().
		Dur("check_interval", m.config.CheckInterval).
		Dur("stall_after", m.config.StallAfter).
		Msg("Starting health monitor")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Health monitor stopped")
			return
		case now := <-ticker.C:
			m.Check(now)
		}
	}
}

// Check evaluates the source at now, updates the gRPC health status and
// returns it. A fatal runner error or a running loop without progress
// for StallAfter is NOT_SERVING.
func (m *Monitor) Check(now time.Time) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	runID := m.source.RunID()

	switch {
	case m.source.Err() != nil:
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if m.changed(status) {
			m.logger.Error().Err(m.source.Err()).Str("run_id", runID).Msg("Runner stopped on fatal error")
			m.metrics.HealthEvent(runID, "fatal_error", "critical")
		}
	case m.config.StallAfter > 0 &&
		m.source.Status() == m.config.RunningStatus &&
		now.Sub(m.source.LastProgress()) > m.config.StallAfter:
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if m.changed(status) {
			m.logger.Warn().
				Str("run_id", runID).
				Time("last_progress", m.source.LastProgress()).
				Msg("Runner made no progress")
			m.metrics.HealthEvent(runID, "stalled", "warning")
		}
	default:
		if m.changed(status) {
			m.logger.Info().Str("run_id", runID).Msg("Runner healthy again")
		}
	}

	m.set(status)
	return status
}

func (m *Monitor) changed(status healthpb.HealthCheckResponse_ServingStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != status
}

func (m *Monitor) set(status healthpb.HealthCheckResponse_ServingStatus) {
	m.mu.Lock()
	m.current = status
	m.mu.Unlock()

	m.server.SetServingStatus(ServiceName, status)
	m.server.SetServingStatus("", status)
}
