package explorer

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

const (
	// blockchainInfoMaxSpan is the most block metas a node returns per call
	blockchainInfoMaxSpan = 20
	reportersPath         = "/tellor-io/layer/reporter/reporters"
	maxRESTBody           = 8 << 20
)

// RPCClient reads chain data straight from Layer nodes over CometBFT RPC.
// Reporters come from the node's REST gateway.
type RPCClient struct {
	httpClient *http.Client
	restBase   func(rpcEndpoint string) string

	mu      sync.Mutex
	clients map[string]*rpchttp.HTTP
}

// NewRPCClient creates a client. A nil httpClient uses a pooled default for
// REST calls.
func NewRPCClient(httpClient *http.Client) *RPCClient {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	return &RPCClient{
		httpClient: httpClient,
		restBase:   RESTBaseFromRPC,
		clients:    make(map[string]*rpchttp.HTTP),
	}
}

// RESTBaseFromRPC derives the REST gateway of a node from its RPC URL: a
// trailing /rpc path is dropped and the CometBFT port 26657 maps to 1317.
func RESTBaseFromRPC(rpcEndpoint string) string {
	u, err := url.Parse(strings.TrimSpace(rpcEndpoint))
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.TrimSuffix(rpcEndpoint, "/"), "/rpc")
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/rpc")
	if u.Port() == "26657" {
		u.Host = u.Hostname() + ":1317"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/")
}

func (c *RPCClient) client(endpoint string) (*rpchttp.HTTP, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[endpoint]; ok {
		return cl, nil
	}
	cl, err := rpchttp.New(endpoint, "/websocket")
	if err != nil {
		return nil, exerrors.NewRPCError("failed to create RPC client", err).WithEndpoint(endpoint)
	}
	c.clients[endpoint] = cl
	return cl, nil
}

func rpcFailure(ctx context.Context, endpoint, msg string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return exerrors.NewRPCError(msg, err).WithEndpoint(endpoint)
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "must be less than or equal to the current blockchain height") ||
		strings.Contains(msg, "is not available, lowest height is")
}

func (c *RPCClient) status(ctx context.Context, endpoint string) (*coretypes.ResultStatus, error) {
	cl, err := c.client(endpoint)
	if err != nil {
		return nil, err
	}
	st, err := cl.Status(ctx)
	if err != nil {
		return nil, rpcFailure(ctx, endpoint, "status request failed", err)
	}
	return st, nil
}

func (c *RPCClient) LatestBlock(ctx context.Context, endpoint string) (*Block, error) {
	st, err := c.status(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return c.BlockByHeight(ctx, endpoint, st.SyncInfo.LatestBlockHeight)
}

func (c *RPCClient) BlockByHeight(ctx context.Context, endpoint string, height int64) (*Block, error) {
	cl, err := c.client(endpoint)
	if err != nil {
		return nil, err
	}
	res, err := cl.Block(ctx, &height)
	if err != nil {
		if ctx.Err() == nil && isNotFound(err) {
			return nil, exerrors.NewNotFoundError(source.RPC, fmt.Sprintf("block %d not found", height))
		}
		return nil, rpcFailure(ctx, endpoint, "block request failed", err)
	}
	if res.Block == nil {
		return nil, exerrors.NewNotFoundError(source.RPC, fmt.Sprintf("block %d not found", height))
	}
	h := res.Block.Header
	return &Block{
		Height:   h.Height,
		Hash:     res.BlockID.Hash.String(),
		Time:     h.Time.UTC(),
		ChainID:  h.ChainID,
		Proposer: h.ProposerAddress.String(),
		NumTxs:   len(res.Block.Data.Txs),
	}, nil
}

// Blocks walks back from the chain head. The node caps each BlockchainInfo
// call, so larger pages are fetched in spans.
func (c *RPCClient) Blocks(ctx context.Context, endpoint string, page Page) (*List[Block], error) {
	page = page.Normalize()
	st, err := c.status(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	cl, err := c.client(endpoint)
	if err != nil {
		return nil, err
	}

	latest := st.SyncInfo.LatestBlockHeight
	out := &List[Block]{Items: make([]Block, 0, page.Limit), Total: latest}
	maxHeight := latest - int64(page.Offset)
	minHeight := maxHeight - int64(page.Limit) + 1
	if minHeight < 1 {
		minHeight = 1
	}

	for top := maxHeight; top >= minHeight; top -= blockchainInfoMaxSpan {
		bottom := top - blockchainInfoMaxSpan + 1
		if bottom < minHeight {
			bottom = minHeight
		}
		res, err := cl.BlockchainInfo(ctx, bottom, top)
		if err != nil {
			return nil, rpcFailure(ctx, endpoint, "blockchain info request failed", err)
		}
		for _, meta := range res.BlockMetas {
			if meta == nil {
				continue
			}
			out.Items = append(out.Items, Block{
				Height:   meta.Header.Height,
				Hash:     meta.BlockID.Hash.String(),
				Time:     meta.Header.Time.UTC(),
				ChainID:  meta.Header.ChainID,
				Proposer: meta.Header.ProposerAddress.String(),
				NumTxs:   meta.NumTxs,
			})
		}
	}
	return out, nil
}

func decodeTxHash(hash string) ([]byte, error) {
	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(hash), "0x"), "0X")
	b, err := hex.DecodeString(h)
	if err != nil || len(b) != 32 {
		return nil, exerrors.NewValidationError(fmt.Sprintf("invalid transaction hash %q", hash))
	}
	return b, nil
}

func txFromResult(r *coretypes.ResultTx) Transaction {
	return Transaction{
		Hash:      r.Hash.String(),
		Height:    r.Height,
		Code:      r.TxResult.Code,
		GasWanted: r.TxResult.GasWanted,
		GasUsed:   r.TxResult.GasUsed,
		Log:       r.TxResult.Log,
	}
}

func (c *RPCClient) TransactionByHash(ctx context.Context, endpoint, hash string) (*Transaction, error) {
	raw, err := decodeTxHash(hash)
	if err != nil {
		return nil, err
	}
	cl, err := c.client(endpoint)
	if err != nil {
		return nil, err
	}
	res, err := cl.Tx(ctx, raw, false)
	if err != nil {
		if ctx.Err() == nil && isNotFound(err) {
			return nil, exerrors.NewNotFoundError(source.RPC, "transaction "+hash+" not found")
		}
		return nil, rpcFailure(ctx, endpoint, "tx request failed", err)
	}
	tx := txFromResult(res)
	return &tx, nil
}

// Transactions searches newest first. Offsets are rounded down to a page
// boundary of the requested limit.
func (c *RPCClient) Transactions(ctx context.Context, endpoint string, page Page) (*List[Transaction], error) {
	page = page.Normalize()
	cl, err := c.client(endpoint)
	if err != nil {
		return nil, err
	}
	pageNum := page.Offset/page.Limit + 1
	perPage := page.Limit
	res, err := cl.TxSearch(ctx, "tx.height>=1", false, &pageNum, &perPage, "desc")
	if err != nil {
		return nil, rpcFailure(ctx, endpoint, "tx search failed", err)
	}
	out := &List[Transaction]{Items: make([]Transaction, 0, len(res.Txs)), Total: int64(res.TotalCount)}
	for _, r := range res.Txs {
		if r == nil {
			continue
		}
		out.Items = append(out.Items, txFromResult(r))
	}
	return out, nil
}

func (c *RPCClient) Validators(ctx context.Context, endpoint string) ([]Validator, error) {
	cl, err := c.client(endpoint)
	if err != nil {
		return nil, err
	}

	var out []Validator
	pageNum, perPage := 1, 100
	for {
		res, err := cl.Validators(ctx, nil, &pageNum, &perPage)
		if err != nil {
			return nil, rpcFailure(ctx, endpoint, "validators request failed", err)
		}
		for _, v := range res.Validators {
			if v == nil {
				continue
			}
			val := Validator{
				Address:          v.Address.String(),
				VotingPower:      v.VotingPower,
				ProposerPriority: v.ProposerPriority,
				Status:           "BOND_STATUS_BONDED",
			}
			if v.PubKey != nil {
				val.PubKey = fmt.Sprintf("%X", v.PubKey.Bytes())
			}
			out = append(out, val)
		}
		if len(out) >= res.Total || len(res.Validators) == 0 {
			return out, nil
		}
		pageNum++
	}
}

// Reporters queries the reporter module over the node's REST gateway.
func (c *RPCClient) Reporters(ctx context.Context, endpoint string) ([]Reporter, error) {
	target := c.restBase(endpoint) + reportersPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, exerrors.NewRPCError("invalid reporters request", err).WithEndpoint(endpoint)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, rpcFailure(ctx, endpoint, "reporters request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRESTBody))
	if err != nil {
		return nil, rpcFailure(ctx, endpoint, "failed to read reporters response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, exerrors.NewRPCError(
			fmt.Sprintf("reporters request returned %d", resp.StatusCode),
			errors.New(strings.TrimSpace(string(body))),
		).WithEndpoint(endpoint)
	}
	if !gjson.ValidBytes(body) {
		return nil, exerrors.NewRPCError("reporters response is not valid JSON", nil).WithEndpoint(endpoint)
	}

	return parseReporters(body), nil
}

func parseReporters(body []byte) []Reporter {
	list := gjson.GetBytes(body, "reporters").Array()
	out := make([]Reporter, 0, len(list))
	for _, r := range list {
		md := r.Get("metadata")
		rep := Reporter{
			Address:           r.Get("address").String(),
			Moniker:           md.Get("moniker").String(),
			Power:             r.Get("power").Int(),
			MinTokensRequired: md.Get("min_tokens_required").String(),
			CommissionRate:    md.Get("commission_rate").String(),
			Jailed:            md.Get("jailed").Bool(),
		}
		if ju := md.Get("jailed_until"); ju.Exists() {
			rep.JailedUntil = ju.Time().UTC()
		}
		out = append(out, rep)
	}
	return out
}

// CheckHealth asks the node for its status
func (c *RPCClient) CheckHealth(ctx context.Context, endpoint string) error {
	_, err := c.status(ctx, endpoint)
	return err
}
