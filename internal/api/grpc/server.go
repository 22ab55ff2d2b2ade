package grpc

import (
	"context"
	"net"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"vehicle-booking-engine/internal/api/grpc/interceptor"
	"vehicle-booking-engine/internal/logger"
)

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Server exposes the standard gRPC health service. Each dependency is
// reported under its own service name and the empty name covers them all.
type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	pingers map[string]Pinger
}

func NewServer(pingers map[string]Pinger) *Server {
	s := &Server{
		grpc: grpc.NewServer(
			grpc.ChainUnaryInterceptor(interceptor.Recovery(), interceptor.Logging()),
		),
		health:  health.NewServer(),
		pingers: pingers,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)

	// Register reflection service for grpcurl
	reflection.Register(s.grpc)
	return s
}

// Refresh pings every dependency once and updates the serving status.
func (s *Server) Refresh(ctx context.Context) bool {
	names := make([]string, 0, len(s.pingers))
	for name := range s.pingers {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.pingers[name].PingContext(pingCtx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			st = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("Health check failed", "dependency", name, "error", err)
		}
		s.health.SetServingStatus(name, st)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	return healthy
}

// Watch refreshes the status every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
