package rpcpool

import (
	"time"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// PoolStatus represents the circuit state of every endpoint of one source
type PoolStatus struct {
	Source          source.Type      `json:"source"`
	TotalEndpoints  int              `json:"total_endpoints"`
	AvailableCount  int              `json:"available_count"`
	OpenCount       int              `json:"open_count"`
	CurrentEndpoint string           `json:"current_endpoint"`
	CurrentIndex    int              `json:"current_index"`
	CustomEndpoint  string           `json:"custom_endpoint,omitempty"`
	Endpoints       []EndpointStatus `json:"endpoints"`
}

// EndpointStatus represents the status of a single endpoint
type EndpointStatus struct {
	URL          string    `json:"url"`
	State        string    `json:"state"`
	FailureCount int       `json:"failure_count"`
	CircuitOpen  bool      `json:"circuit_open"`
	LastAttempt  time.Time `json:"last_attempt,omitempty"`
	Primary      bool      `json:"primary"`
	Custom       bool      `json:"custom"`
}
