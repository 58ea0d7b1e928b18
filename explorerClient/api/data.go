package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tellor-io/layer-explorer/explorerClient/datasource"
	"github.com/tellor-io/layer-explorer/explorerClient/explorer"
	"github.com/tellor-io/layer-explorer/explorerClient/fallback"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

func parseOptions(r *http.Request) (explorer.Options, error) {
	var opts explorer.Options
	q := r.URL.Query()
	if v := q.Get("source"); v != "" {
		src, err := source.Parse(v)
		if err != nil {
			return opts, err
		}
		opts.ForceSource = src
	}
	if v := q.Get("nocache"); v == "1" || v == "true" {
		opts.SkipCache = true
	}
	return opts, nil
}

func parsePage(r *http.Request) (explorer.Page, error) {
	var page explorer.Page
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, err
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, err
		}
		page.Offset = n
	}
	return page, nil
}

// useRunner reports whether op goes through the delayed fallback runner
// rather than straight to the data source manager.
func (s *Server) useRunner(op fallback.Operation, opts explorer.Options) bool {
	return s.fallback != nil &&
		opts.ForceSource == "" &&
		s.service.Sources().AutoFallback() &&
		s.fallback.Handles(op)
}

// serveFetch runs call and writes the result. When the runner guards op,
// call only tries the primary source and the runner's handler owns the
// fallback source.
func serveFetch[T any](s *Server, w http.ResponseWriter, r *http.Request, op fallback.Operation, req fallback.Request, call func(ctx context.Context, opts explorer.Options) (*datasource.FetchResult[T], error)) {
	opts, err := parseOptions(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	var res *datasource.FetchResult[T]
	uiFallback := false
	if s.useRunner(op, opts) {
		primaryOnly := false
		opts.FallbackOnError = &primaryOnly
		out, err := fallback.RunRequest(r.Context(), s.fallback, op, req, func(ctx context.Context) (*datasource.FetchResult[T], error) {
			return call(ctx, opts)
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		res, uiFallback = out.Data, out.FallbackUsed
	} else {
		res, err = call(r.Context(), opts)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, QueryResponse{
		Data:           res.Data,
		Source:         res.Source,
		Endpoint:       res.Endpoint,
		Cached:         res.Cached,
		FallbackUsed:   res.FallbackUsed || uiFallback,
		Attempts:       res.Attempts,
		ResponseTimeMs: res.ResponseTime.Milliseconds(),
	})
}

func (s *Server) servePaged(w http.ResponseWriter, r *http.Request, serve func(page explorer.Page)) {
	page, err := parsePage(r)
	if err != nil {
		s.badRequest(w, "limit and offset must be integers")
		return
	}
	serve(page)
}

// handleLatestBlock handles GET /api/v1/blocks/latest
func (s *Server) handleLatestBlock(w http.ResponseWriter, r *http.Request) {
	serveFetch(s, w, r, fallback.LatestBlock, fallback.Request{}, s.service.LatestBlock)
}

// handleBlockByHeight handles GET /api/v1/blocks/{height}
func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseInt(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		s.badRequest(w, "height must be an integer")
		return
	}
	serveFetch(s, w, r, fallback.BlockByHeight, fallback.Request{Height: height},
		func(ctx context.Context, opts explorer.Options) (*datasource.FetchResult[*explorer.Block], error) {
			return s.service.BlockByHeight(ctx, height, opts)
		})
}

// handleBlocks handles GET /api/v1/blocks?limit=<n>&offset=<n>
func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	s.servePaged(w, r, func(page explorer.Page) {
		serveFetch(s, w, r, fallback.Blocks, fallback.Request{Page: page},
			func(ctx context.Context, opts explorer.Options) (*datasource.FetchResult[*explorer.List[explorer.Block]], error) {
				return s.service.Blocks(ctx, page, opts)
			})
	})
}

// handleTransactionByHash handles GET /api/v1/txs/{hash}
func (s *Server) handleTransactionByHash(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	serveFetch(s, w, r, fallback.TransactionByHash, fallback.Request{Hash: hash},
		func(ctx context.Context, opts explorer.Options) (*datasource.FetchResult[*explorer.Transaction], error) {
			return s.service.TransactionByHash(ctx, hash, opts)
		})
}

// handleTransactions handles GET /api/v1/txs?limit=<n>&offset=<n>
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	s.servePaged(w, r, func(page explorer.Page) {
		serveFetch(s, w, r, fallback.Transactions, fallback.Request{Page: page},
			func(ctx context.Context, opts explorer.Options) (*datasource.FetchResult[*explorer.List[explorer.Transaction]], error) {
				return s.service.Transactions(ctx, page, opts)
			})
	})
}

// handleValidators handles GET /api/v1/validators
func (s *Server) handleValidators(w http.ResponseWriter, r *http.Request) {
	serveFetch(s, w, r, fallback.Validators, fallback.Request{}, s.service.Validators)
}

// handleReporters handles GET /api/v1/reporters
func (s *Server) handleReporters(w http.ResponseWriter, r *http.Request) {
	serveFetch(s, w, r, fallback.Reporters, fallback.Request{}, s.service.Reporters)
}

// handleAggregateReports handles GET /api/v1/aggregates
func (s *Server) handleAggregateReports(w http.ResponseWriter, r *http.Request) {
	s.servePaged(w, r, func(page explorer.Page) {
		serveFetch(s, w, r, fallback.AggregateReports, fallback.Request{Page: page},
			func(ctx context.Context, opts explorer.Options) (*datasource.FetchResult[*explorer.List[explorer.AggregateReport]], error) {
				return s.service.AggregateReports(ctx, page, opts)
			})
	})
}

// handleBridgeDeposits handles GET /api/v1/bridge/deposits
func (s *Server) handleBridgeDeposits(w http.ResponseWriter, r *http.Request) {
	s.servePaged(w, r, func(page explorer.Page) {
		serveFetch(s, w, r, fallback.BridgeDeposits, fallback.Request{Page: page},
			func(ctx context.Context, opts explorer.Options) (*datasource.FetchResult[*explorer.List[explorer.BridgeDeposit]], error) {
				return s.service.BridgeDeposits(ctx, page, opts)
			})
	})
}

// handleGovernanceProposals handles GET /api/v1/proposals
func (s *Server) handleGovernanceProposals(w http.ResponseWriter, r *http.Request) {
	s.servePaged(w, r, func(page explorer.Page) {
		serveFetch(s, w, r, fallback.GovernanceProposals, fallback.Request{Page: page},
			func(ctx context.Context, opts explorer.Options) (*datasource.FetchResult[*explorer.List[explorer.Proposal]], error) {
				return s.service.GovernanceProposals(ctx, page, opts)
			})
	})
}
