package explorer

import "time"

// Block is a block header summary
type Block struct {
	Height   int64     `json:"height" yaml:"height"`
	Hash     string    `json:"hash" yaml:"hash"`
	Time     time.Time `json:"time" yaml:"time"`
	ChainID  string    `json:"chain_id,omitempty" yaml:"chain_id,omitempty"`
	Proposer string    `json:"proposer,omitempty" yaml:"proposer,omitempty"`
	NumTxs   int       `json:"num_txs" yaml:"num_txs"`
}

// Transaction is an executed transaction
type Transaction struct {
	Hash      string    `json:"hash" yaml:"hash"`
	Height    int64     `json:"height" yaml:"height"`
	Time      time.Time `json:"time,omitempty" yaml:"time,omitempty"`
	Code      uint32    `json:"code" yaml:"code"`
	GasWanted int64     `json:"gas_wanted" yaml:"gas_wanted"`
	GasUsed   int64     `json:"gas_used" yaml:"gas_used"`
	Messages  []string  `json:"messages,omitempty" yaml:"messages,omitempty"`
	Memo      string    `json:"memo,omitempty" yaml:"memo,omitempty"`
	Log       string    `json:"log,omitempty" yaml:"log,omitempty"`
}

// Success reports whether the transaction executed without error
func (t Transaction) Success() bool { return t.Code == 0 }

// Validator is a member of the active validator set
type Validator struct {
	Address          string `json:"address" yaml:"address"`
	OperatorAddress  string `json:"operator_address,omitempty" yaml:"operator_address,omitempty"`
	Moniker          string `json:"moniker,omitempty" yaml:"moniker,omitempty"`
	PubKey           string `json:"pub_key,omitempty" yaml:"pub_key,omitempty"`
	VotingPower      int64  `json:"voting_power" yaml:"voting_power"`
	ProposerPriority int64  `json:"proposer_priority" yaml:"proposer_priority"`
	Jailed           bool   `json:"jailed" yaml:"jailed"`
	Status           string `json:"status,omitempty" yaml:"status,omitempty"`
}

// Reporter is an oracle data reporter
type Reporter struct {
	Address           string    `json:"address" yaml:"address"`
	Moniker           string    `json:"moniker,omitempty" yaml:"moniker,omitempty"`
	Power             int64     `json:"power" yaml:"power"`
	MinTokensRequired string    `json:"min_tokens_required,omitempty" yaml:"min_tokens_required,omitempty"`
	CommissionRate    string    `json:"commission_rate,omitempty" yaml:"commission_rate,omitempty"`
	Jailed            bool      `json:"jailed" yaml:"jailed"`
	JailedUntil       time.Time `json:"jailed_until,omitempty" yaml:"jailed_until,omitempty"`
}

// AggregateReport is an aggregated oracle value for a query
type AggregateReport struct {
	QueryID        string    `json:"query_id" yaml:"query_id"`
	Value          string    `json:"value" yaml:"value"`
	AggregatePower int64     `json:"aggregate_power" yaml:"aggregate_power"`
	Reporter       string    `json:"reporter,omitempty" yaml:"reporter,omitempty"`
	Height         int64     `json:"height" yaml:"height"`
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
	Flagged        bool      `json:"flagged" yaml:"flagged"`
}

// BridgeDeposit is a token deposit bridged from Ethereum
type BridgeDeposit struct {
	DepositID int64     `json:"deposit_id" yaml:"deposit_id"`
	Sender    string    `json:"sender" yaml:"sender"`
	Recipient string    `json:"recipient" yaml:"recipient"`
	Amount    string    `json:"amount" yaml:"amount"`
	Tip       string    `json:"tip,omitempty" yaml:"tip,omitempty"`
	Height    int64     `json:"height" yaml:"height"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Reported  bool      `json:"reported" yaml:"reported"`
	Claimed   bool      `json:"claimed" yaml:"claimed"`
}

// Proposal is a governance proposal
type Proposal struct {
	ID            int64     `json:"id" yaml:"id"`
	Title         string    `json:"title" yaml:"title"`
	Summary       string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Status        string    `json:"status" yaml:"status"`
	Proposer      string    `json:"proposer,omitempty" yaml:"proposer,omitempty"`
	SubmitTime    time.Time `json:"submit_time" yaml:"submit_time"`
	VotingEndTime time.Time `json:"voting_end_time,omitempty" yaml:"voting_end_time,omitempty"`
}

// Page selects a window of a newest-first list
type Page struct {
	Limit  int `json:"limit" yaml:"limit"`
	Offset int `json:"offset" yaml:"offset"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize applies the default limit and clamps out-of-range values
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// List is one page of items and the total available
type List[T any] struct {
	Items []T   `json:"items" yaml:"items"`
	Total int64 `json:"total" yaml:"total"`
}
