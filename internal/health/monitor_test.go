package health

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakeSource struct {
	status   string
	err      error
	progress time.Time
}

func (f *fakeSource) RunID() string           { return "run-1" }
func (f *fakeSource) Status() string          { return f.status }
func (f *fakeSource) Err() error              { return f.err }
func (f *fakeSource) LastProgress() time.Time { return f.progress }

func newMonitor(src Source) (*Monitor, *grpchealth.Server) {
	hs := grpchealth.NewServer()
	m := NewMonitor(src, hs, Config{
		CheckInterval: time.Second,
		StallAfter:    time.Minute,
		RunningStatus: "running",
	}, zerolog.Nop())
	return m, hs
}

func serving(t *testing.T, hs *grpchealth.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	return resp.Status
}

func TestMonitorHealthyWhileProgressing(t *testing.T) {
	now := time.Now()
	m, hs := newMonitor(&fakeSource{status: "running", progress: now.Add(-time.Second)})

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, m.Check(now))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, serving(t, hs))
}

func TestMonitorFatalError(t *testing.T) {
	now := time.Now()
	src := &fakeSource{status: "failed", err: errors.New("no valid action"), progress: now}
	m, hs := newMonitor(src)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, m.Check(now))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, serving(t, hs))
}

func TestMonitorStallAndRecovery(t *testing.T) {
	now := time.Now()
	src := &fakeSource{status: "running", progress: now.Add(-2 * time.Minute)}
	m, hs := newMonitor(src)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, m.Check(now))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, serving(t, hs))

	src.progress = now
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, m.Check(now))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, serving(t, hs))
}

func TestMonitorFinishedRunIsNotStalled(t *testing.T) {
	now := time.Now()
	m, _ := newMonitor(&fakeSource{status: "finished", progress: now.Add(-time.Hour)})
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, m.Check(now))
}

func TestGRPCServerServesHealth(t *testing.T) {
	server, hs := NewGRPCServer(zerolog.Nop())
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(lis) }()
	defer server.Stop()

	conn, err := grpc.Dial(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestMonitorZeroIntervalUsesDefault(t *testing.T) {
	hs := grpchealth.NewServer()
	m := NewMonitor(&fakeSource{status: "running", progress: time.Now()}, hs, Config{}, zerolog.Nop())
	assert.Equal(t, DefaultCheckInterval, m.config.CheckInterval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { m.Start(ctx) })
}
