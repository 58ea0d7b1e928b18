package core

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellor-io/layer-explorer/explorerClient/config"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		GraphQLEndpoints:  []string{"http://127.0.0.1:1/graphql"},
		RPCEndpoints:      []string{"http://127.0.0.1:1", "http://127.0.0.1:2"},
		CustomRPCEndpoint: "http://127.0.0.1:3",
		QueryServerPort:   freePort(t),
	}
	require.NoError(t, config.Validate(&cfg))
	return cfg
}

func TestNewWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	defer c.Stop()

	assert.NotNil(t, c.Service())
	assert.NotNil(t, c.Monitor())
	assert.Equal(t, source.GraphQL, c.Sources().Primary())
	assert.Equal(t, source.RPC, c.Sources().Fallback())

	pool, ok := c.Sources().Pool(source.RPC)
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:3", pool.CurrentEndpoint())

	gql, ok := c.Sources().Pool(source.GraphQL)
	require.True(t, ok)
	assert.Empty(t, gql.CustomEndpoint())
}

func TestStartServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.QueryServerPort) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
	c.Stop()
}

func TestStartFailsOnBusyPort(t *testing.T) {
	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()

	cfg := testConfig(t)
	cfg.QueryServerPort = busy.Listener.Addr().(*net.TCPAddr).Port
	c, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start query server")
}
