package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/brainscore/internal/config"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
	"github.com/tensorplex-labs/brainscore/internal/store"
	"github.com/tensorplex-labs/brainscore/internal/testkit"
)

func startServer(t *testing.T) *Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(nil)
	go func() { _ = s.App.Listener(ln) }()
	t.Cleanup(func() { _ = s.App.Shutdown() })

	c, err := NewClient(&config.ClientEnvConfig{ServerURL: "http://" + ln.Addr().String() + "/", Timeout: 30 * time.Second})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func identityRequest(t *testing.T, metric string) ScoreRequest {
	t.Helper()
	a, err := testkit.RandomAssembly(testkit.DefaultAssemblyConfig())
	require.NoError(t, err)
	opts := metrics.DefaultOptions()
	opts.Splits = 3
	opts.StratifyCoord = ""
	rec := store.NewAssemblyRecord(a)
	return ScoreRequest{Metric: metric, Source: rec, Target: rec, Options: &opts}
}

func TestClient_RoundTrip(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	names, err := c.Metrics(ctx)
	require.NoError(t, err)
	assert.Contains(t, names.Names, metrics.RDMName)

	rec, err := c.Score(ctx, identityRequest(t, metrics.LinearPearson))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rec.Center, 1e-6)
}

func TestClient_ServerError(t *testing.T) {
	c := startServer(t)
	_, err := c.Score(context.Background(), identityRequest(t, "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error 400")
	assert.Contains(t, err.Error(), "unknown metric")
}

func TestClient_ScoreMany(t *testing.T) {
	c := startServer(t)
	requests := []ScoreRequest{
		identityRequest(t, metrics.LinearPearson),
		identityRequest(t, "nope"),
	}
	records, errs := c.ScoreMany(context.Background(), requests)
	require.Len(t, records, 2)
	assert.NoError(t, errs[0])
	assert.InDelta(t, 1.0, records[0].Center, 1e-6)
	assert.ErrorContains(t, errs[1], "error in request 1")
}

func TestNewClient_Config(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)
	_, err = NewClient(&config.ClientEnvConfig{})
	assert.Error(t, err)

	t.Setenv("SCORING_SERVER_URL", "http://scoring.example:8888")
	c, err := NewClientFromEnv(context.Background())
	require.NoError(t, err)
	c.Close()
}
