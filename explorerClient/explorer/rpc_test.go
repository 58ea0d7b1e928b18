package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
)

func TestRESTBaseFromRPC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://node-palmito.tellorlayer.com/rpc", "https://node-palmito.tellorlayer.com"},
		{"https://node-palmito.tellorlayer.com/rpc/", "https://node-palmito.tellorlayer.com"},
		{"http://localhost:26657", "http://localhost:1317"},
		{"http://10.0.0.5:26657/", "http://10.0.0.5:1317"},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RESTBaseFromRPC(tt.in))
		})
	}
}

func TestRPCReporters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, reportersPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "reporters": [
    {
      "address": "tellor1reporter",
      "power": "1500",
      "metadata": {
        "min_tokens_required": "1000000",
        "commission_rate": "0.050000000000000000",
        "jailed": true,
        "jailed_until": "2025-04-01T00:00:00Z",
        "moniker": "oracle-one"
      }
    },
    {"address": "tellor1second", "power": "20", "metadata": {"jailed": false}}
  ],
  "pagination": {"next_key": null, "total": "2"}
}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.Client())
	reps, err := c.Reporters(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, "tellor1reporter", reps[0].Address)
	assert.Equal(t, "oracle-one", reps[0].Moniker)
	assert.Equal(t, int64(1500), reps[0].Power)
	assert.True(t, reps[0].Jailed)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), reps[0].JailedUntil)
	assert.Equal(t, int64(20), reps[1].Power)
	assert.True(t, reps[1].JailedUntil.IsZero())
}

func TestRPCReportersErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"code":13,"message":"internal"}`},
		{"invalid json", http.StatusOK, `<html>gateway</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRPCClient(srv.Client()).Reporters(context.Background(), srv.URL)
			require.Error(t, err)
			assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeRPC))
		})
	}
}

// newNode answers the status JSON-RPC call
func newNode(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "status", req.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":{"node_info":{},"sync_info":{"latest_block_height":"42"},"validator_info":{}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCCheckHealth(t *testing.T) {
	c := NewRPCClient(nil)

	assert.NoError(t, c.CheckHealth(context.Background(), newNode(t, true).URL))

	err := c.CheckHealth(context.Background(), newNode(t, false).URL)
	require.Error(t, err)
	assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeRPC))
}

func TestDecodeTxHash(t *testing.T) {
	b, err := decodeTxHash("0x" + testHash)
	require.NoError(t, err)
	assert.Len(t, b, 32)

	_, err = decodeTxHash("zz")
	assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeValidation))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultPageLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxPageLimit, Offset: 0}, Page{Limit: 1000, Offset: -3}.Normalize())
}
