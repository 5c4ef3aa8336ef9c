package grpc

import (
	"context"
	"net"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"conversation-service/internal/observability"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// OpsServer exposes the standard gRPC health service.
type OpsServer struct {
	server *gogrpc.Server
	health *health.Server
	db     Pinger
	log    *log.Logger
}

// NewOpsServer builds the server with tracing and metrics interceptors installed.
func NewOpsServer(db Pinger, logger *log.Logger) *OpsServer {
	server := gogrpc.NewServer(
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
		gogrpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	return &OpsServer{server: server, health: hs, db: db, log: logger}
}

// Refresh updates the overall serving status from the database ping.
func (s *OpsServer) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.log.Warn("health check: database unreachable", "err", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}

// Serve blocks until the listener fails or Stop is called.
func (s *OpsServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Info("grpc ops server listening", "addr", addr)
	return s.server.Serve(lis)
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *OpsServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
