package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer returns a gRPC server exposing the standard health
// service and reflection, plus the health server to report into.
func NewGRPCServer(logger zerolog.Logger) (*grpc.Server, *grpchealth.Server) {
	server := grpc.NewServer(
		grpc.UnaryInterceptor(loggingInterceptor(logger)),
	)

	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	// Enable reflection for development
	reflection.Register(server)

	return server, hs
}

// loggingInterceptor logs gRPC requests
func loggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		// Call the handler
		resp, err := handler(ctx, req)

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.
			Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Msg("gRPC request")

		return resp, err
	}
}
