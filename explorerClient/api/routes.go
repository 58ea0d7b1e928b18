package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the API server
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// resilience layer
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/export", s.handleMetricsExport).Methods(http.MethodGet)
	v1.HandleFunc("/metrics.csv", s.handleMetricsCSV).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/endpoints", s.handleEndpoints).Methods(http.MethodGet)
	v1.HandleFunc("/endpoints/{source}/custom", s.handleSetCustomEndpoint).Methods(http.MethodPut)
	v1.HandleFunc("/endpoints/{source}/custom", s.handleClearCustomEndpoint).Methods(http.MethodDelete)
	v1.HandleFunc("/sources/{source}/reset", s.handleResetSource).Methods(http.MethodPost)

	// explorer data
	v1.HandleFunc("/blocks/latest", s.handleLatestBlock).Methods(http.MethodGet)
	v1.HandleFunc("/blocks/{height:[0-9]+}", s.handleBlockByHeight).Methods(http.MethodGet)
	v1.HandleFunc("/blocks", s.handleBlocks).Methods(http.MethodGet)
	v1.HandleFunc("/txs/{hash}", s.handleTransactionByHash).Methods(http.MethodGet)
	v1.HandleFunc("/txs", s.handleTransactions).Methods(http.MethodGet)
	v1.HandleFunc("/validators", s.handleValidators).Methods(http.MethodGet)
	v1.HandleFunc("/reporters", s.handleReporters).Methods(http.MethodGet)
	v1.HandleFunc("/aggregates", s.handleAggregateReports).Methods(http.MethodGet)
	v1.HandleFunc("/bridge/deposits", s.handleBridgeDeposits).Methods(http.MethodGet)
	v1.HandleFunc("/proposals", s.handleGovernanceProposals).Methods(http.MethodGet)

	return r
}
