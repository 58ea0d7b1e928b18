package explorer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tellor-io/layer-explorer/explorerClient/cache"
	"github.com/tellor-io/layer-explorer/explorerClient/datasource"
	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
	"github.com/tellor-io/layer-explorer/explorerClient/rpcpool"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Operation names, used for logs, metrics and cache keys
const (
	OpLatestBlock         = "latest_block"
	OpBlockByHeight       = "block_by_height"
	OpBlocks              = "blocks"
	OpTransactionByHash   = "transaction_by_hash"
	OpTransactions        = "transactions"
	OpValidators          = "validators"
	OpReporters           = "reporters"
	OpAggregateReports    = "aggregate_reports"
	OpBridgeDeposits      = "bridge_deposits"
	OpGovernanceProposals = "governance_proposals"
)

// Options tune a single service call
type Options struct {
	datasource.Options
	SkipCache bool
}

// CacheRecorder is told about every response served from the cache
type CacheRecorder interface {
	RecordCacheHit(src source.Type)
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithCacheRecorder reports cache hits to r
func WithCacheRecorder(r CacheRecorder) ServiceOption {
	return func(s *Service) {
		s.hits = r
	}
}

// Service exposes the explorer's logical operations. Every call goes
// through the data source manager, so it gets retries, endpoint rotation
// and source fallback.
type Service struct {
	sources *datasource.Manager
	graphql GraphQLBackend
	rpc     RPCBackend
	cache   *cache.Cache
	hits    CacheRecorder
	logger  zerolog.Logger
}

// NewService creates a service. c may be nil to disable caching.
func NewService(sources *datasource.Manager, gql GraphQLBackend, rpc RPCBackend, c *cache.Cache, logger zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		sources: sources,
		graphql: gql,
		rpc:     rpc,
		cache:   c,
		logger:  logger.With().Str("component", "explorer_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources returns the underlying data source manager
func (s *Service) Sources() *datasource.Manager {
	return s.sources
}

func unsupportedOnRPC[T any](what string) func(context.Context, string) (T, error) {
	return func(context.Context, string) (T, error) {
		var zero T
		return zero, exerrors.NewUnsupportedError(source.RPC, what)
	}
}

// fetch serves op from the cache when possible, otherwise through the data
// source manager, dispatching each attempt to the backend of its source.
func fetch[T any](ctx context.Context, s *Service, op string, opts Options, gql, rpc func(context.Context, string) (T, error), args ...any) (*datasource.FetchResult[T], error) {
	key := cache.Key(op, append([]any{string(opts.ForceSource)}, args...)...)
	if !opts.SkipCache && s.cache != nil {
		if entry, ok := s.cache.Get(key); ok {
			if cached, ok := entry.Value.(*datasource.FetchResult[T]); ok {
				if s.hits != nil {
					s.hits.RecordCacheHit(entry.Source)
				}
				s.logger.Debug().Str("operation", op).Str("source", entry.Source.String()).Msg("served from cache")
				hit := *cached
				hit.Cached = true
				return &hit, nil
			}
		}
	}

	fn := func(ctx context.Context, target datasource.Target) (T, error) {
		switch target.Source {
		case source.GraphQL:
			return gql(ctx, target.Endpoint)
		case source.RPC:
			return rpc(ctx, target.Endpoint)
		default:
			var zero T
			return zero, exerrors.NewValidationError(fmt.Sprintf("unknown data source %q", target.Source))
		}
	}

	res, err := datasource.Fetch(ctx, s.sources, op, fn, opts.Options)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		stored := *res
		s.cache.Set(key, &stored, res.Source)
	}
	return res, nil
}

func validatePage(page Page) (Page, error) {
	if page.Limit < 0 {
		return page, exerrors.NewValidationError("limit must not be negative")
	}
	if page.Offset < 0 {
		return page, exerrors.NewValidationError("offset must not be negative")
	}
	if page.Limit > MaxPageLimit {
		return page, exerrors.NewValidationError(fmt.Sprintf("limit must not exceed %d", MaxPageLimit))
	}
	return page.Normalize(), nil
}

// LatestBlock returns the chain head
func (s *Service) LatestBlock(ctx context.Context, opts Options) (*datasource.FetchResult[*Block], error) {
	return fetch(ctx, s, OpLatestBlock, opts,
		s.graphql.LatestBlock,
		s.rpc.LatestBlock,
	)
}

// BlockByHeight returns the block at height
func (s *Service) BlockByHeight(ctx context.Context, height int64, opts Options) (*datasource.FetchResult[*Block], error) {
	if height < 1 {
		return nil, exerrors.NewValidationError("height must be positive")
	}
	return fetch(ctx, s, OpBlockByHeight, opts,
		func(ctx context.Context, ep string) (*Block, error) { return s.graphql.BlockByHeight(ctx, ep, height) },
		func(ctx context.Context, ep string) (*Block, error) { return s.rpc.BlockByHeight(ctx, ep, height) },
		height,
	)
}

// Blocks returns a newest-first page of blocks
func (s *Service) Blocks(ctx context.Context, page Page, opts Options) (*datasource.FetchResult[*List[Block]], error) {
	page, err := validatePage(page)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, OpBlocks, opts,
		func(ctx context.Context, ep string) (*List[Block], error) { return s.graphql.Blocks(ctx, ep, page) },
		func(ctx context.Context, ep string) (*List[Block], error) { return s.rpc.Blocks(ctx, ep, page) },
		page.Limit, page.Offset,
	)
}

// TransactionByHash looks up a transaction by its hex hash
func (s *Service) TransactionByHash(ctx context.Context, hash string, opts Options) (*datasource.FetchResult[*Transaction], error) {
	if _, err := decodeTxHash(hash); err != nil {
		return nil, err
	}
	hash = strings.ToUpper(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(hash), "0x"), "0X"))
	return fetch(ctx, s, OpTransactionByHash, opts,
		func(ctx context.Context, ep string) (*Transaction, error) {
			return s.graphql.TransactionByHash(ctx, ep, hash)
		},
		func(ctx context.Context, ep string) (*Transaction, error) {
			return s.rpc.TransactionByHash(ctx, ep, hash)
		},
		hash,
	)
}

// Transactions returns a newest-first page of transactions
func (s *Service) Transactions(ctx context.Context, page Page, opts Options) (*datasource.FetchResult[*List[Transaction]], error) {
	page, err := validatePage(page)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, OpTransactions, opts,
		func(ctx context.Context, ep string) (*List[Transaction], error) {
			return s.graphql.Transactions(ctx, ep, page)
		},
		func(ctx context.Context, ep string) (*List[Transaction], error) {
			return s.rpc.Transactions(ctx, ep, page)
		},
		page.Limit, page.Offset,
	)
}

// Validators returns the active validator set
func (s *Service) Validators(ctx context.Context, opts Options) (*datasource.FetchResult[[]Validator], error) {
	return fetch(ctx, s, OpValidators, opts, s.graphql.Validators, s.rpc.Validators)
}

// Reporters returns the registered oracle reporters
func (s *Service) Reporters(ctx context.Context, opts Options) (*datasource.FetchResult[[]Reporter], error) {
	return fetch(ctx, s, OpReporters, opts, s.graphql.Reporters, s.rpc.Reporters)
}

// AggregateReports is only served by the indexer
func (s *Service) AggregateReports(ctx context.Context, page Page, opts Options) (*datasource.FetchResult[*List[AggregateReport]], error) {
	page, err := validatePage(page)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, OpAggregateReports, opts,
		func(ctx context.Context, ep string) (*List[AggregateReport], error) {
			return s.graphql.AggregateReports(ctx, ep, page)
		},
		unsupportedOnRPC[*List[AggregateReport]]("aggregate reports"),
		page.Limit, page.Offset,
	)
}

// BridgeDeposits is only served by the indexer
func (s *Service) BridgeDeposits(ctx context.Context, page Page, opts Options) (*datasource.FetchResult[*List[BridgeDeposit]], error) {
	page, err := validatePage(page)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, OpBridgeDeposits, opts,
		func(ctx context.Context, ep string) (*List[BridgeDeposit], error) {
			return s.graphql.BridgeDeposits(ctx, ep, page)
		},
		unsupportedOnRPC[*List[BridgeDeposit]]("bridge deposits"),
		page.Limit, page.Offset,
	)
}

// GovernanceProposals is only served by the indexer
func (s *Service) GovernanceProposals(ctx context.Context, page Page, opts Options) (*datasource.FetchResult[*List[Proposal]], error) {
	page, err := validatePage(page)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, OpGovernanceProposals, opts,
		func(ctx context.Context, ep string) (*List[Proposal], error) {
			return s.graphql.GovernanceProposals(ctx, ep, page)
		},
		unsupportedOnRPC[*List[Proposal]]("governance proposals"),
		page.Limit, page.Offset,
	)
}

// RPCHealthChecker probes RPC endpoints with a status request
func RPCHealthChecker(b RPCBackend) rpcpool.HealthChecker {
	return rpcpool.HealthCheckerFunc(b.CheckHealth)
}

// GraphQLHealthChecker probes indexer endpoints with an introspection query
func GraphQLHealthChecker(b GraphQLBackend) rpcpool.HealthChecker {
	return rpcpool.HealthCheckerFunc(b.CheckHealth)
}
