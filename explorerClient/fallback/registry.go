package fallback

import (
	"context"

	"github.com/tellor-io/layer-explorer/explorerClient/datasource"
	"github.com/tellor-io/layer-explorer/explorerClient/explorer"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Operation names a logical explorer operation
type Operation string

const (
	LatestBlock         Operation = explorer.OpLatestBlock
	BlockByHeight       Operation = explorer.OpBlockByHeight
	Blocks              Operation = explorer.OpBlocks
	TransactionByHash   Operation = explorer.OpTransactionByHash
	Transactions        Operation = explorer.OpTransactions
	Validators          Operation = explorer.OpValidators
	Reporters           Operation = explorer.OpReporters
	AggregateReports    Operation = explorer.OpAggregateReports
	BridgeDeposits      Operation = explorer.OpBridgeDeposits
	GovernanceProposals Operation = explorer.OpGovernanceProposals
)

func (o Operation) String() string { return string(o) }

// Request carries the arguments a handler needs to repeat an operation
type Request struct {
	Height int64
	Hash   string
	Page   explorer.Page
}

// Handler produces the fallback value for an operation. The value must have
// the same type the primary call returns.
type Handler func(ctx context.Context, req Request) (any, error)

// Registry maps operations to their fallback handlers
type Registry map[Operation]Handler

// Lookup returns the handler for op
func (r Registry) Lookup(op Operation) (Handler, bool) {
	h, ok := r[op]
	return h, ok && h != nil
}

// DefaultRegistry repeats each operation against target, bypassing the
// cache. Indexer-only operations have a handler only when target is the
// indexer.
func DefaultRegistry(svc *explorer.Service, target source.Type) Registry {
	opts := explorer.Options{
		Options:   datasource.Options{ForceSource: target},
		SkipCache: true,
	}
	reg := Registry{
		LatestBlock: func(ctx context.Context, _ Request) (any, error) {
			return svc.LatestBlock(ctx, opts)
		},
		BlockByHeight: func(ctx context.Context, req Request) (any, error) {
			return svc.BlockByHeight(ctx, req.Height, opts)
		},
		Blocks: func(ctx context.Context, req Request) (any, error) {
			return svc.Blocks(ctx, req.Page, opts)
		},
		TransactionByHash: func(ctx context.Context, req Request) (any, error) {
			return svc.TransactionByHash(ctx, req.Hash, opts)
		},
		Transactions: func(ctx context.Context, req Request) (any, error) {
			return svc.Transactions(ctx, req.Page, opts)
		},
		Validators: func(ctx context.Context, _ Request) (any, error) {
			return svc.Validators(ctx, opts)
		},
		Reporters: func(ctx context.Context, _ Request) (any, error) {
			return svc.Reporters(ctx, opts)
		},
	}
	if target != source.GraphQL {
		return reg
	}
	reg[AggregateReports] = func(ctx context.Context, req Request) (any, error) {
		return svc.AggregateReports(ctx, req.Page, opts)
	}
	reg[BridgeDeposits] = func(ctx context.Context, req Request) (any, error) {
		return svc.BridgeDeposits(ctx, req.Page, opts)
	}
	reg[GovernanceProposals] = func(ctx context.Context, req Request) (any, error) {
		return svc.GovernanceProposals(ctx, req.Page, opts)
	}
	return reg
}
