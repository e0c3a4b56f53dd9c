package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"spacegrid/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakePinger struct {
	down atomic.Bool
}

func (p *fakePinger) PingContext(context.Context) error {
	if p.down.Load() {
		return errors.New("db closed")
	}
	return nil
}

func TestGRPCServer_Health(t *testing.T) {
	cfg := &config.APIConfig{
		Enabled: true,
		GRPC:    config.APIGRPCConfig{Enabled: true, Port: 0, Reflection: true},
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k", Extra: "e"}},
		},
	}
	pinger := &fakePinger{}
	srv, err := NewGRPCServer(cfg, pinger, nil)
	require.NoError(t, err)

	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", srv.listener.Addr().(*net.TCPAddr).Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// health stays reachable without an api key
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	pinger.down.Store(true)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, srv.CheckHealth(ctx))

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func TestBuildTLSConfig_Errors(t *testing.T) {
	_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
	assert.Error(t, err)

	_, err = buildTLSConfig(config.APITLSConfig{Enabled: true, CertFile: "missing.crt", KeyFile: "missing.key"})
	assert.Error(t, err)
}

func TestAuthInterceptor(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys:      []config.APIClientKey{{Key: "valid-key", Extra: "valid-extra"}},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}

	interceptor := NewAuthInterceptor(&cfg).Unary()
	handler := func(_ context.Context, _ any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/spacegrid.v1.Schedule/DayGrid"}

	withMD := func(kv ...string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
	}

	tests := []struct {
		name string
		ctx  context.Context
		info *grpc.UnaryServerInfo
		code codes.Code
	}{
		{"Success", withMD("x-api-key", "valid-key", "x-api-extra", "valid-extra"), info, codes.OK},
		{"MissingMetadata", context.Background(), info, codes.Unauthenticated},
		{"MissingHeaders", withMD(), info, codes.Unauthenticated},
		{"InvalidKey", withMD("x-api-key", "invalid", "x-api-extra", "valid-extra"), info, codes.Unauthenticated},
		{"InvalidExtra", withMD("x-api-key", "valid-key", "x-api-extra", "invalid"), info, codes.Unauthenticated},
		{"PublicHealth", context.Background(), &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(tt.ctx, "req", tt.info, handler)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestAuthInterceptor_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled:   true,
		RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 1},
	}
	interceptor := NewAuthInterceptor(&cfg).Unary()
	handler := func(_ context.Context, _ any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "same"))

	_, err := interceptor(ctx, "req", info, handler)
	require.NoError(t, err)
	_, err = interceptor(ctx, "req", info, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestChainUnaryInterceptors(t *testing.T) {
	var order []string
	mark := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return h(ctx, req)
		}
	}

	chain := ChainUnaryInterceptors(mark("a"), mark("b"), RecoveryUnaryInterceptor(nil))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x"}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp)
	assert.Equal(t, []string{"a", "b", "handler"}, order)

	_, err = chain(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x"}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDMetadataKey, "req-1"))
	assert.Equal(t, "req-1", requestIDFromMetadata(ctx))
	assert.NotEmpty(t, requestIDFromMetadata(context.Background()))
}
