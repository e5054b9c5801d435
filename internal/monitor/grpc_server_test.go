package monitor

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startGRPC(t *testing.T, store *SessionStore) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterMonitorServer(srv, NewGRPCServer(store))
	RegisterHealth(srv, store)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCGetSession(t *testing.T) {
	store := NewSessionStore(initial, nil)
	store.Start()
	store.ObserveTrial(trial(0, 10, 100, true))
	client := NewMonitorClient(startGRPC(t, store))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.GetSession(ctx)
	require.NoError(t, err)
	m := got.AsMap()
	assert.Equal(t, store.ID(), m["id"])
	assert.Equal(t, "running", m["status"])
	assert.Equal(t, 1.0, m["trial_runs"])
}

func TestGRPCGetBest(t *testing.T) {
	store := NewSessionStore(initial, nil)
	client := NewMonitorClient(startGRPC(t, store))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.GetBest(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))

	store.ObserveTrial(trial(0, 10, 100, true))
	store.ObserveTrial(trial(1, 20, 60, true))
	got, err := client.GetBest(ctx)
	require.NoError(t, err)
	m := got.AsMap()
	assert.Equal(t, 1.0, m["run_index"])
	settings := m["settings"].(map[string]any)
	assert.Equal(t, 20.0, settings["coarse_solve"])
}

func TestGRPCGetBestWithNaNTime(t *testing.T) {
	store := NewSessionStore(initial, nil)
	e := trial(0, 10, math.NaN(), false)
	e.ImprovedBest = true
	store.ObserveTrial(e)
	client := NewMonitorClient(startGRPC(t, store))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := client.GetBest(ctx)
	require.NoError(t, err)
	measurement := got.AsMap()["measurement"].(map[string]any)
	assert.Nil(t, measurement["time_ns"])
	assert.Equal(t, 12.0, measurement["cycles"])
}

func TestGRPCHealthFollowsSession(t *testing.T) {
	store := NewSessionStore(initial, nil)
	hc := healthpb.NewHealthClient(startGRPC(t, store))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: MonitorServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	store.Start()
	store.Finish(nil)

	resp, err = hc.Check(ctx, &healthpb.HealthCheckRequest{Service: MonitorServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
