package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
)

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// newIndexer answers each query with the first response whose key appears
// in the query text.
func newIndexer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		for key, body := range responses {
			if strings.Contains(req.Query, key) {
				_, _ = w.Write([]byte(body))
				return
			}
		}
		_, _ = w.Write([]byte(`{"errors":[{"message":"unknown query"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGraphQLLatestBlock(t *testing.T) {
	srv := newIndexer(t, map[string]string{
		"blocks": `{"data":{"blocks":{"nodes":[{"blockHeight":"1234","blockHash":"ABCD","timestamp":"2025-03-01T12:00:00.5","chainId":"layertest-4","proposerAddress":"PROP","numberOfTx":3}]}}}`,
	})
	c := NewGraphQLClient(nil)

	b, err := c.LatestBlock(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), b.Height)
	assert.Equal(t, "ABCD", b.Hash)
	assert.Equal(t, "layertest-4", b.ChainID)
	assert.Equal(t, 3, b.NumTxs)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 500000000, time.UTC), b.Time)
}

func TestGraphQLNotFound(t *testing.T) {
	srv := newIndexer(t, map[string]string{
		"blocks":       `{"data":{"blocks":{"nodes":[]}}}`,
		"transactions": `{"data":{"transactions":{"nodes":[]}}}`,
	})
	c := NewGraphQLClient(nil)

	_, err := c.BlockByHeight(context.Background(), srv.URL, 99)
	require.Error(t, err)
	assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeNotFound))

	_, err = c.TransactionByHash(context.Background(), srv.URL, testHash)
	assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeNotFound))
}

func TestGraphQLErrorsAreClassified(t *testing.T) {
	srv := newIndexer(t, map[string]string{})
	c := NewGraphQLClient(nil)

	_, err := c.Validators(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeGraphQL))
	assert.True(t, exerrors.IsRetryable(err))
	assert.Contains(t, err.Error(), "unknown query")
}

func TestGraphQLPagedLists(t *testing.T) {
	srv := newIndexer(t, map[string]string{
		"aggregateReports": `{"data":{"aggregateReports":{"totalCount":"41","nodes":[{"queryId":"0x83a7","value":"0x01","aggregatePower":"900","aggregateReporter":"tellor1abc","blockHeight":120,"timestamp":"2025-03-01T12:00:00Z","flagged":false}]}}}`,
		"bridgeDeposits":   `{"data":{"bridgeDeposits":{"totalCount":2,"nodes":[{"depositId":"12","sender":"0xsender","recipient":"tellor1rec","amount":"1000loya","tip":"10loya","blockHeight":"88","timestamp":null,"reported":true,"claimed":false}]}}}`,
	})
	c := NewGraphQLClient(nil)
	ctx := context.Background()

	aggs, err := c.AggregateReports(ctx, srv.URL, Page{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(41), aggs.Total)
	require.Len(t, aggs.Items, 1)
	assert.Equal(t, int64(900), aggs.Items[0].AggregatePower)
	assert.Equal(t, "tellor1abc", aggs.Items[0].Reporter)

	deps, err := c.BridgeDeposits(ctx, srv.URL, Page{})
	require.NoError(t, err)
	require.Len(t, deps.Items, 1)
	assert.Equal(t, int64(12), deps.Items[0].DepositID)
	assert.True(t, deps.Items[0].Timestamp.IsZero())
	assert.True(t, deps.Items[0].Reported)
}

func TestGraphQLCheckHealth(t *testing.T) {
	healthy := newIndexer(t, map[string]string{
		"__schema": `{"data":{"__schema":{"queryType":{"name":"Query"}}}}`,
	})
	c := NewGraphQLClient(nil)
	assert.NoError(t, c.CheckHealth(context.Background(), healthy.URL))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	assert.Error(t, c.CheckHealth(context.Background(), down.URL))
}

func TestNumericDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{`42`, 42},
		{`"42"`, 42},
		{`"1.5e3"`, 1500},
		{`null`, 0},
		{`""`, 0},
	}
	for _, tt := range tests {
		var n numeric
		require.NoError(t, json.Unmarshal([]byte(tt.in), &n), tt.in)
		assert.Equal(t, tt.want, int64(n), tt.in)
	}

	var n numeric
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &n))
}
