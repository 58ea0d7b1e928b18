package explorer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellor-io/layer-explorer/explorerClient/cache"
	"github.com/tellor-io/layer-explorer/explorerClient/datasource"
	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
	"github.com/tellor-io/layer-explorer/explorerClient/rpcpool"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

const testHash = "A1B2C3D4E5F60718293A4B5C6D7E8F90A1B2C3D4E5F60718293A4B5C6D7E8F90"

// fakeBackend serves canned data and counts calls per endpoint
type fakeBackend struct {
	src source.Type
	err error

	mu    sync.Mutex
	calls []string
}

func (f *fakeBackend) record(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	return f.err
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) LatestBlock(_ context.Context, ep string) (*Block, error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return &Block{Height: 100, Hash: string(f.src)}, nil
}

func (f *fakeBackend) BlockByHeight(_ context.Context, ep string, height int64) (*Block, error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return &Block{Height: height, Hash: string(f.src)}, nil
}

func (f *fakeBackend) Blocks(_ context.Context, ep string, page Page) (*List[Block], error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	items := make([]Block, page.Limit)
	for i := range items {
		items[i] = Block{Height: int64(100 - page.Offset - i)}
	}
	return &List[Block]{Items: items, Total: 100}, nil
}

func (f *fakeBackend) TransactionByHash(_ context.Context, ep, hash string) (*Transaction, error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return &Transaction{Hash: hash}, nil
}

func (f *fakeBackend) Transactions(_ context.Context, ep string, page Page) (*List[Transaction], error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return &List[Transaction]{Items: []Transaction{{Hash: testHash}}, Total: 1}, nil
}

func (f *fakeBackend) Validators(_ context.Context, ep string) ([]Validator, error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return []Validator{{Address: "VAL1", VotingPower: 10}}, nil
}

func (f *fakeBackend) Reporters(_ context.Context, ep string) ([]Reporter, error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return []Reporter{{Address: "tellor1rep", Power: 5}}, nil
}

func (f *fakeBackend) AggregateReports(_ context.Context, ep string, _ Page) (*List[AggregateReport], error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return &List[AggregateReport]{Items: []AggregateReport{{QueryID: "0xabc"}}, Total: 1}, nil
}

func (f *fakeBackend) BridgeDeposits(_ context.Context, ep string, _ Page) (*List[BridgeDeposit], error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return &List[BridgeDeposit]{Items: []BridgeDeposit{{DepositID: 7}}, Total: 1}, nil
}

func (f *fakeBackend) GovernanceProposals(_ context.Context, ep string, _ Page) (*List[Proposal], error) {
	if err := f.record(ep); err != nil {
		return nil, err
	}
	return &List[Proposal]{Items: []Proposal{{ID: 1}}, Total: 1}, nil
}

func (f *fakeBackend) CheckHealth(_ context.Context, ep string) error {
	return f.record(ep)
}

type hitCounter struct {
	mu   sync.Mutex
	hits map[source.Type]int
}

func (h *hitCounter) RecordCacheHit(src source.Type) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hits == nil {
		h.hits = make(map[source.Type]int)
	}
	h.hits[src]++
}

type serviceEnv struct {
	svc  *Service
	gql  *fakeBackend
	rpc  *fakeBackend
	hits *hitCounter
}

func newServiceEnv(t *testing.T, cacheTTL time.Duration) *serviceEnv {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	poolCfg := rpcpool.PoolConfig{MaxFailures: 5, CircuitResetTime: time.Minute}
	gqlPool := rpcpool.NewGraphQLManager([]string{"https://indexer.example.com/graphql"}, poolCfg, logger)
	rpcPool := rpcpool.NewRPCManager([]string{"https://node.example.com/rpc"}, poolCfg, logger)

	settings := datasource.Settings{
		Primary:             source.GraphQL,
		Fallback:            source.RPC,
		AutoFallback:        true,
		RequestTimeout:      time.Second,
		Retries:             1,
		MaxFailures:         5,
		Retry:               exerrors.RetryConfig{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
		HealthCheckInterval: time.Minute,
		MaxBackoff:          time.Minute,
	}
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	sources, err := datasource.NewManager(settings, []*rpcpool.Manager{gqlPool, rpcPool}, logger, datasource.WithSleeper(noSleep))
	require.NoError(t, err)

	c, err := cache.New(128, cacheTTL, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	env := &serviceEnv{
		gql:  &fakeBackend{src: source.GraphQL},
		rpc:  &fakeBackend{src: source.RPC},
		hits: &hitCounter{},
	}
	env.svc = NewService(sources, env.gql, env.rpc, c, logger, WithCacheRecorder(env.hits))
	return env
}

func TestServicePrimaryServes(t *testing.T) {
	env := newServiceEnv(t, 0)

	res, err := env.svc.LatestBlock(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, source.GraphQL, res.Source)
	assert.Equal(t, "graphql", res.Data.Hash)
	assert.False(t, res.FallbackUsed)
	assert.False(t, res.Cached)
	assert.Equal(t, 0, env.rpc.callCount())
}

func TestServiceFallsBackToRPC(t *testing.T) {
	env := newServiceEnv(t, 0)
	env.gql.err = exerrors.NewGraphQLError("indexer down", errors.New("502 bad gateway"))

	res, err := env.svc.BlockByHeight(context.Background(), 42, Options{})
	require.NoError(t, err)
	assert.Equal(t, source.RPC, res.Source)
	assert.Equal(t, int64(42), res.Data.Height)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, 2, env.gql.callCount())
	assert.Equal(t, 3, res.Attempts)
}

func TestServiceIndexerOnlyOperations(t *testing.T) {
	env := newServiceEnv(t, 0)
	opts := Options{Options: datasource.Options{ForceSource: source.RPC}}
	ctx := context.Background()

	_, err := env.svc.AggregateReports(ctx, Page{}, opts)
	require.Error(t, err)
	assert.True(t, exerrors.IsUnsupported(err))
	assert.Contains(t, err.Error(), "aggregate reports is only available via GraphQL")

	_, err = env.svc.BridgeDeposits(ctx, Page{}, opts)
	assert.True(t, exerrors.IsUnsupported(err))

	_, err = env.svc.GovernanceProposals(ctx, Page{}, opts)
	assert.True(t, exerrors.IsUnsupported(err))

	// the unsupported answer does not count against the RPC source
	status := env.svc.Sources().Status()[source.RPC]
	assert.True(t, status.IsAvailable)
	assert.Equal(t, 0, status.FailureCount)
}

func TestServiceIndexerOnlyFallbackFailsFast(t *testing.T) {
	env := newServiceEnv(t, 0)
	env.gql.err = exerrors.NewGraphQLError("indexer down", nil)

	_, err := env.svc.BridgeDeposits(context.Background(), Page{Limit: 10}, Options{})
	require.Error(t, err)
	assert.True(t, exerrors.IsUnsupported(err))
	assert.Equal(t, 2, env.gql.callCount())
}

func TestServiceCache(t *testing.T) {
	env := newServiceEnv(t, time.Minute)
	ctx := context.Background()

	first, err := env.svc.Validators(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := env.svc.Validators(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.False(t, second.FallbackUsed)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, 1, env.gql.callCount())
	assert.Equal(t, 1, env.hits.hits[source.GraphQL])

	third, err := env.svc.Validators(ctx, Options{SkipCache: true})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, env.gql.callCount())
}

func TestServiceCacheKeyedByArguments(t *testing.T) {
	env := newServiceEnv(t, time.Minute)
	ctx := context.Background()

	_, err := env.svc.Blocks(ctx, Page{Limit: 5}, Options{})
	require.NoError(t, err)
	res, err := env.svc.Blocks(ctx, Page{Limit: 5, Offset: 5}, Options{})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int64(95), res.Data.Items[0].Height)

	forced, err := env.svc.Blocks(ctx, Page{Limit: 5}, Options{Options: datasource.Options{ForceSource: source.RPC}})
	require.NoError(t, err)
	assert.False(t, forced.Cached)
	assert.Equal(t, source.RPC, forced.Source)
}

func TestServiceCachedFallbackResult(t *testing.T) {
	env := newServiceEnv(t, time.Minute)
	env.gql.err = exerrors.NewGraphQLError("indexer down", nil)
	ctx := context.Background()

	_, err := env.svc.Reporters(ctx, Options{})
	require.NoError(t, err)

	res, err := env.svc.Reporters(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, source.RPC, res.Source)
	assert.Equal(t, 1, env.hits.hits[source.RPC])
}

func TestServiceCachedForcedSourceResult(t *testing.T) {
	env := newServiceEnv(t, time.Minute)
	ctx := context.Background()
	opts := Options{Options: datasource.Options{ForceSource: source.RPC}}

	first, err := env.svc.Validators(ctx, opts)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.False(t, first.FallbackUsed)

	second, err := env.svc.Validators(ctx, opts)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.False(t, second.FallbackUsed)
	assert.Equal(t, source.RPC, second.Source)
	assert.Equal(t, 1, env.rpc.callCount())
}

func TestServiceCacheStoresCopy(t *testing.T) {
	env := newServiceEnv(t, time.Minute)
	env.gql.err = exerrors.NewGraphQLError("indexer down", nil)
	ctx := context.Background()

	first, err := env.svc.LatestBlock(ctx, Options{})
	require.NoError(t, err)
	attempts := first.Attempts
	first.Endpoint = "changed by caller"
	first.Attempts = 99

	second, err := env.svc.LatestBlock(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.True(t, second.FallbackUsed)
	assert.Equal(t, "https://node.example.com/rpc", second.Endpoint)
	assert.Equal(t, attempts, second.Attempts)
	assert.Equal(t, 3, second.Attempts)
}

func TestServiceValidation(t *testing.T) {
	env := newServiceEnv(t, 0)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"zero height", func() error { _, err := env.svc.BlockByHeight(ctx, 0, Options{}); return err }},
		{"bad hash", func() error { _, err := env.svc.TransactionByHash(ctx, "xyz", Options{}); return err }},
		{"short hash", func() error { _, err := env.svc.TransactionByHash(ctx, "ABCD", Options{}); return err }},
		{"negative offset", func() error { _, err := env.svc.Blocks(ctx, Page{Offset: -1}, Options{}); return err }},
		{"limit too large", func() error { _, err := env.svc.Transactions(ctx, Page{Limit: 500}, Options{}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, exerrors.IsCode(err, exerrors.ErrCodeValidation))
		})
	}
	assert.Equal(t, 0, env.gql.callCount())
	assert.Equal(t, 0, env.rpc.callCount())
}

func TestServiceNormalizesHash(t *testing.T) {
	env := newServiceEnv(t, 0)

	res, err := env.svc.TransactionByHash(context.Background(), "0x"+testHash, Options{})
	require.NoError(t, err)
	assert.Equal(t, testHash, res.Data.Hash)
}

func TestServiceDefaultPage(t *testing.T) {
	env := newServiceEnv(t, 0)

	res, err := env.svc.Blocks(context.Background(), Page{}, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Data.Items, DefaultPageLimit)
}

func TestHealthCheckers(t *testing.T) {
	gql := &fakeBackend{src: source.GraphQL}
	rpc := &fakeBackend{src: source.RPC, err: errors.New("connection refused")}

	assert.NoError(t, GraphQLHealthChecker(gql).CheckHealth(context.Background(), "g"))
	assert.Error(t, RPCHealthChecker(rpc).CheckHealth(context.Background(), "r"))
	assert.Equal(t, []string{"g"}, gql.calls)
	assert.Equal(t, []string{"r"}, rpc.calls)
}
