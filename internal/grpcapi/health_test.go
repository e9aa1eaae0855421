package grpcapi_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/grpcapi"
)

func dial(t *testing.T, hs *grpcapi.HealthServer) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	go func() { _ = hs.Serve(lis) }()
	t.Cleanup(hs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_ReportsEngineStatus(t *testing.T) {
	hs := grpcapi.NewHealthServer(nil)
	c := dial(t, hs)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, check(t, c, grpcapi.EngineService))

	hs.SetEngineServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c, grpcapi.EngineService))

	hs.SetEngineServing(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c, grpcapi.EngineService))
}
