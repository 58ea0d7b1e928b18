package explorer

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/machinebox/graphql"
	"github.com/pkg/errors"

	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

const (
	blockFields = `id blockHeight blockHash timestamp chainId proposerAddress numberOfTx`
	txFields    = `id txHash blockHeight timestamp code gasWanted gasUsed messages memo log`
)

const (
	queryLatestBlock = `query {
  blocks(first: 1, orderBy: BLOCK_HEIGHT_DESC) { nodes { ` + blockFields + ` } }
}`
	queryBlockByHeight = `query ($height: BigFloat!) {
  blocks(first: 1, filter: { blockHeight: { equalTo: $height } }) { nodes { ` + blockFields + ` } }
}`
	queryBlocks = `query ($first: Int!, $offset: Int!) {
  blocks(first: $first, offset: $offset, orderBy: BLOCK_HEIGHT_DESC) { totalCount nodes { ` + blockFields + ` } }
}`
	queryTxByHash = `query ($hash: String!) {
  transactions(first: 1, filter: { txHash: { equalToInsensitive: $hash } }) { nodes { ` + txFields + ` } }
}`
	queryTransactions = `query ($first: Int!, $offset: Int!) {
  transactions(first: $first, offset: $offset, orderBy: BLOCK_HEIGHT_DESC) { totalCount nodes { ` + txFields + ` } }
}`
	queryValidators = `query {
  validators(orderBy: VOTING_POWER_DESC) {
    nodes { consensusAddress operatorAddress moniker pubKey votingPower proposerPriority jailed bondStatus }
  }
}`
	queryReporters = `query {
  reporters(orderBy: POWER_DESC) {
    nodes { id moniker power minTokensRequired commissionRate jailed jailedUntil }
  }
}`
	queryAggregates = `query ($first: Int!, $offset: Int!) {
  aggregateReports(first: $first, offset: $offset, orderBy: BLOCK_HEIGHT_DESC) {
    totalCount nodes { queryId value aggregatePower aggregateReporter blockHeight timestamp flagged }
  }
}`
	queryDeposits = `query ($first: Int!, $offset: Int!) {
  bridgeDeposits(first: $first, offset: $offset, orderBy: DEPOSIT_ID_DESC) {
    totalCount nodes { depositId sender recipient amount tip blockHeight timestamp reported claimed }
  }
}`
	queryProposals = `query ($first: Int!, $offset: Int!) {
  govProposals(first: $first, offset: $offset, orderBy: PROPOSAL_ID_DESC) {
    totalCount nodes { proposalId title summary status proposer submitTime votingEndTime }
  }
}`
	queryIntrospection = `{ __schema { queryType { name } } }`
)

// numeric decodes values the indexer may encode as either JSON numbers or
// strings (BigInt / BigFloat columns).
type numeric int64

func (n *numeric) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*n = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return errors.Wrapf(err, "invalid numeric %q", s)
		}
		v = int64(f)
	}
	*n = numeric(v)
	return nil
}

// stamp decodes indexer timestamps, which may omit the zone offset.
type stamp time.Time

var stampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"}

func (t *stamp) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*t = stamp{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	for _, layout := range stampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = stamp(v.UTC())
			return nil
		}
	}
	return errors.Errorf("invalid timestamp %q", s)
}

func (t stamp) Time() time.Time { return time.Time(t) }

type gqlBlock struct {
	BlockHeight     numeric   `json:"blockHeight"`
	BlockHash       string    `json:"blockHash"`
	Timestamp       stamp     `json:"timestamp"`
	ChainID         string    `json:"chainId"`
	ProposerAddress string    `json:"proposerAddress"`
	NumberOfTx      numeric   `json:"numberOfTx"`
}

func (b gqlBlock) toModel() Block {
	return Block{
		Height:   int64(b.BlockHeight),
		Hash:     b.BlockHash,
		Time:     b.Timestamp.Time(),
		ChainID:  b.ChainID,
		Proposer: b.ProposerAddress,
		NumTxs:   int(b.NumberOfTx),
	}
}

type gqlTx struct {
	TxHash      string    `json:"txHash"`
	BlockHeight numeric   `json:"blockHeight"`
	Timestamp   stamp     `json:"timestamp"`
	Code        numeric   `json:"code"`
	GasWanted   numeric   `json:"gasWanted"`
	GasUsed     numeric   `json:"gasUsed"`
	Messages    []string  `json:"messages"`
	Memo        string    `json:"memo"`
	Log         string    `json:"log"`
}

func (t gqlTx) toModel() Transaction {
	return Transaction{
		Hash:      t.TxHash,
		Height:    int64(t.BlockHeight),
		Time:      t.Timestamp.Time(),
		Code:      uint32(t.Code),
		GasWanted: int64(t.GasWanted),
		GasUsed:   int64(t.GasUsed),
		Messages:  t.Messages,
		Memo:      t.Memo,
		Log:       t.Log,
	}
}

type gqlValidator struct {
	ConsensusAddress string  `json:"consensusAddress"`
	OperatorAddress  string  `json:"operatorAddress"`
	Moniker          string  `json:"moniker"`
	PubKey           string  `json:"pubKey"`
	VotingPower      numeric `json:"votingPower"`
	ProposerPriority numeric `json:"proposerPriority"`
	Jailed           bool    `json:"jailed"`
	BondStatus       string  `json:"bondStatus"`
}

type gqlReporter struct {
	ID                string    `json:"id"`
	Moniker           string    `json:"moniker"`
	Power             numeric   `json:"power"`
	MinTokensRequired string    `json:"minTokensRequired"`
	CommissionRate    string    `json:"commissionRate"`
	Jailed            bool      `json:"jailed"`
	JailedUntil       stamp     `json:"jailedUntil"`
}

type gqlAggregate struct {
	QueryID           string    `json:"queryId"`
	Value             string    `json:"value"`
	AggregatePower    numeric   `json:"aggregatePower"`
	AggregateReporter string    `json:"aggregateReporter"`
	BlockHeight       numeric   `json:"blockHeight"`
	Timestamp         stamp     `json:"timestamp"`
	Flagged           bool      `json:"flagged"`
}

type gqlDeposit struct {
	DepositID   numeric   `json:"depositId"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	Amount      string    `json:"amount"`
	Tip         string    `json:"tip"`
	BlockHeight numeric   `json:"blockHeight"`
	Timestamp   stamp     `json:"timestamp"`
	Reported    bool      `json:"reported"`
	Claimed     bool      `json:"claimed"`
}

type gqlProposal struct {
	ProposalID    numeric   `json:"proposalId"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Status        string    `json:"status"`
	Proposer      string    `json:"proposer"`
	SubmitTime    stamp     `json:"submitTime"`
	VotingEndTime stamp     `json:"votingEndTime"`
}

type connection[T any] struct {
	TotalCount numeric `json:"totalCount"`
	Nodes      []T     `json:"nodes"`
}

// GraphQLClient talks to the Layer indexer. One machinebox client is kept per
// endpoint, all sharing a pooled transport.
type GraphQLClient struct {
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*graphql.Client
}

// NewGraphQLClient creates a client. A nil httpClient uses a pooled default.
func NewGraphQLClient(httpClient *http.Client) *GraphQLClient {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	return &GraphQLClient{
		httpClient: httpClient,
		clients:    make(map[string]*graphql.Client),
	}
}

func (c *GraphQLClient) client(endpoint string) *graphql.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[endpoint]; ok {
		return cl
	}
	cl := graphql.NewClient(endpoint, graphql.WithHTTPClient(c.httpClient))
	c.clients[endpoint] = cl
	return cl
}

func (c *GraphQLClient) run(ctx context.Context, endpoint, query string, vars map[string]interface{}, resp interface{}) error {
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	if err := c.client(endpoint).Run(ctx, req, resp); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return exerrors.NewGraphQLError("query failed", err).WithEndpoint(endpoint)
	}
	return nil
}

func pageVars(page Page) map[string]interface{} {
	page = page.Normalize()
	return map[string]interface{}{"first": page.Limit, "offset": page.Offset}
}

func (c *GraphQLClient) LatestBlock(ctx context.Context, endpoint string) (*Block, error) {
	var resp struct {
		Blocks connection[gqlBlock] `json:"blocks"`
	}
	if err := c.run(ctx, endpoint, queryLatestBlock, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Blocks.Nodes) == 0 {
		return nil, exerrors.NewNotFoundError(source.GraphQL, "no blocks indexed")
	}
	b := resp.Blocks.Nodes[0].toModel()
	return &b, nil
}

func (c *GraphQLClient) BlockByHeight(ctx context.Context, endpoint string, height int64) (*Block, error) {
	var resp struct {
		Blocks connection[gqlBlock] `json:"blocks"`
	}
	vars := map[string]interface{}{"height": strconv.FormatInt(height, 10)}
	if err := c.run(ctx, endpoint, queryBlockByHeight, vars, &resp); err != nil {
		return nil, err
	}
	if len(resp.Blocks.Nodes) == 0 {
		return nil, exerrors.NewNotFoundError(source.GraphQL, "block "+strconv.FormatInt(height, 10)+" not found")
	}
	b := resp.Blocks.Nodes[0].toModel()
	return &b, nil
}

func (c *GraphQLClient) Blocks(ctx context.Context, endpoint string, page Page) (*List[Block], error) {
	var resp struct {
		Blocks connection[gqlBlock] `json:"blocks"`
	}
	if err := c.run(ctx, endpoint, queryBlocks, pageVars(page), &resp); err != nil {
		return nil, err
	}
	out := &List[Block]{Items: make([]Block, 0, len(resp.Blocks.Nodes)), Total: int64(resp.Blocks.TotalCount)}
	for _, n := range resp.Blocks.Nodes {
		out.Items = append(out.Items, n.toModel())
	}
	return out, nil
}

func (c *GraphQLClient) TransactionByHash(ctx context.Context, endpoint, hash string) (*Transaction, error) {
	var resp struct {
		Transactions connection[gqlTx] `json:"transactions"`
	}
	if err := c.run(ctx, endpoint, queryTxByHash, map[string]interface{}{"hash": hash}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Transactions.Nodes) == 0 {
		return nil, exerrors.NewNotFoundError(source.GraphQL, "transaction "+hash+" not found")
	}
	tx := resp.Transactions.Nodes[0].toModel()
	return &tx, nil
}

func (c *GraphQLClient) Transactions(ctx context.Context, endpoint string, page Page) (*List[Transaction], error) {
	var resp struct {
		Transactions connection[gqlTx] `json:"transactions"`
	}
	if err := c.run(ctx, endpoint, queryTransactions, pageVars(page), &resp); err != nil {
		return nil, err
	}
	out := &List[Transaction]{Items: make([]Transaction, 0, len(resp.Transactions.Nodes)), Total: int64(resp.Transactions.TotalCount)}
	for _, n := range resp.Transactions.Nodes {
		out.Items = append(out.Items, n.toModel())
	}
	return out, nil
}

func (c *GraphQLClient) Validators(ctx context.Context, endpoint string) ([]Validator, error) {
	var resp struct {
		Validators connection[gqlValidator] `json:"validators"`
	}
	if err := c.run(ctx, endpoint, queryValidators, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Validator, 0, len(resp.Validators.Nodes))
	for _, n := range resp.Validators.Nodes {
		out = append(out, Validator{
			Address:          n.ConsensusAddress,
			OperatorAddress:  n.OperatorAddress,
			Moniker:          n.Moniker,
			PubKey:           n.PubKey,
			VotingPower:      int64(n.VotingPower),
			ProposerPriority: int64(n.ProposerPriority),
			Jailed:           n.Jailed,
			Status:           n.BondStatus,
		})
	}
	return out, nil
}

func (c *GraphQLClient) Reporters(ctx context.Context, endpoint string) ([]Reporter, error) {
	var resp struct {
		Reporters connection[gqlReporter] `json:"reporters"`
	}
	if err := c.run(ctx, endpoint, queryReporters, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Reporter, 0, len(resp.Reporters.Nodes))
	for _, n := range resp.Reporters.Nodes {
		out = append(out, Reporter{
			Address:           n.ID,
			Moniker:           n.Moniker,
			Power:             int64(n.Power),
			MinTokensRequired: n.MinTokensRequired,
			CommissionRate:    n.CommissionRate,
			Jailed:            n.Jailed,
			JailedUntil:       n.JailedUntil.Time(),
		})
	}
	return out, nil
}

func (c *GraphQLClient) AggregateReports(ctx context.Context, endpoint string, page Page) (*List[AggregateReport], error) {
	var resp struct {
		AggregateReports connection[gqlAggregate] `json:"aggregateReports"`
	}
	if err := c.run(ctx, endpoint, queryAggregates, pageVars(page), &resp); err != nil {
		return nil, err
	}
	out := &List[AggregateReport]{Items: make([]AggregateReport, 0, len(resp.AggregateReports.Nodes)), Total: int64(resp.AggregateReports.TotalCount)}
	for _, n := range resp.AggregateReports.Nodes {
		out.Items = append(out.Items, AggregateReport{
			QueryID:        n.QueryID,
			Value:          n.Value,
			AggregatePower: int64(n.AggregatePower),
			Reporter:       n.AggregateReporter,
			Height:         int64(n.BlockHeight),
			Timestamp:      n.Timestamp.Time(),
			Flagged:        n.Flagged,
		})
	}
	return out, nil
}

func (c *GraphQLClient) BridgeDeposits(ctx context.Context, endpoint string, page Page) (*List[BridgeDeposit], error) {
	var resp struct {
		BridgeDeposits connection[gqlDeposit] `json:"bridgeDeposits"`
	}
	if err := c.run(ctx, endpoint, queryDeposits, pageVars(page), &resp); err != nil {
		return nil, err
	}
	out := &List[BridgeDeposit]{Items: make([]BridgeDeposit, 0, len(resp.BridgeDeposits.Nodes)), Total: int64(resp.BridgeDeposits.TotalCount)}
	for _, n := range resp.BridgeDeposits.Nodes {
		out.Items = append(out.Items, BridgeDeposit{
			DepositID: int64(n.DepositID),
			Sender:    n.Sender,
			Recipient: n.Recipient,
			Amount:    n.Amount,
			Tip:       n.Tip,
			Height:    int64(n.BlockHeight),
			Timestamp: n.Timestamp.Time(),
			Reported:  n.Reported,
			Claimed:   n.Claimed,
		})
	}
	return out, nil
}

func (c *GraphQLClient) GovernanceProposals(ctx context.Context, endpoint string, page Page) (*List[Proposal], error) {
	var resp struct {
		GovProposals connection[gqlProposal] `json:"govProposals"`
	}
	if err := c.run(ctx, endpoint, queryProposals, pageVars(page), &resp); err != nil {
		return nil, err
	}
	out := &List[Proposal]{Items: make([]Proposal, 0, len(resp.GovProposals.Nodes)), Total: int64(resp.GovProposals.TotalCount)}
	for _, n := range resp.GovProposals.Nodes {
		out.Items = append(out.Items, Proposal{
			ID:            int64(n.ProposalID),
			Title:         n.Title,
			Summary:       n.Summary,
			Status:        n.Status,
			Proposer:      n.Proposer,
			SubmitTime:    n.SubmitTime.Time(),
			VotingEndTime: n.VotingEndTime.Time(),
		})
	}
	return out, nil
}

// CheckHealth runs an introspection query against endpoint
func (c *GraphQLClient) CheckHealth(ctx context.Context, endpoint string) error {
	var resp struct {
		Schema struct {
			QueryType struct {
				Name string `json:"name"`
			} `json:"queryType"`
		} `json:"__schema"`
	}
	if err := c.run(ctx, endpoint, queryIntrospection, nil, &resp); err != nil {
		return err
	}
	if resp.Schema.QueryType.Name == "" {
		return exerrors.NewGraphQLError("introspection returned no query type", nil).WithEndpoint(endpoint)
	}
	return nil
}
