// Package grpcapi exposes the standard gRPC health service so orchestrators
// can watch the terminal and its recognition engine.
package grpcapi

import (
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// EngineService is the health service name tracking the recognition engine.
// The empty name tracks the terminal process itself.
const EngineService = "portunus.RecognitionEngine"

type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	// Unknown until the first probe.
	hs.SetServingStatus(EngineService, healthpb.HealthCheckResponse_UNKNOWN)

	return &HealthServer{grpc: gs, health: hs, logger: logger}
}

// SetEngineServing publishes the engine probe's verdict.
func (s *HealthServer) SetEngineServing(up bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(EngineService, st)
}

// Serve blocks until Stop is called.  A clean stop returns nil.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks everything NOT_SERVING and drains in-flight RPCs.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
