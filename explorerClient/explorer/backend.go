package explorer

import "context"

// GraphQLBackend serves every logical operation from the indexer
type GraphQLBackend interface {
	LatestBlock(ctx context.Context, endpoint string) (*Block, error)
	BlockByHeight(ctx context.Context, endpoint string, height int64) (*Block, error)
	Blocks(ctx context.Context, endpoint string, page Page) (*List[Block], error)
	TransactionByHash(ctx context.Context, endpoint, hash string) (*Transaction, error)
	Transactions(ctx context.Context, endpoint string, page Page) (*List[Transaction], error)
	Validators(ctx context.Context, endpoint string) ([]Validator, error)
	Reporters(ctx context.Context, endpoint string) ([]Reporter, error)
	AggregateReports(ctx context.Context, endpoint string, page Page) (*List[AggregateReport], error)
	BridgeDeposits(ctx context.Context, endpoint string, page Page) (*List[BridgeDeposit], error)
	GovernanceProposals(ctx context.Context, endpoint string, page Page) (*List[Proposal], error)
	CheckHealth(ctx context.Context, endpoint string) error
}

// RPCBackend serves the operations a node can answer directly. Aggregate
// reports, bridge deposits and governance proposals need the indexer.
type RPCBackend interface {
	LatestBlock(ctx context.Context, endpoint string) (*Block, error)
	BlockByHeight(ctx context.Context, endpoint string, height int64) (*Block, error)
	Blocks(ctx context.Context, endpoint string, page Page) (*List[Block], error)
	TransactionByHash(ctx context.Context, endpoint, hash string) (*Transaction, error)
	Transactions(ctx context.Context, endpoint string, page Page) (*List[Transaction], error)
	Validators(ctx context.Context, endpoint string) ([]Validator, error)
	Reporters(ctx context.Context, endpoint string) ([]Reporter, error)
	CheckHealth(ctx context.Context, endpoint string) error
}
