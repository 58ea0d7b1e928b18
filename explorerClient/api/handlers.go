package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
	"github.com/tellor-io/layer-explorer/explorerClient/monitoring"
	"github.com/tellor-io/layer-explorer/explorerClient/rpcpool"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	var srcErr *exerrors.SourceError
	if exerrors.As(err, &srcErr) {
		resp.Code = string(srcErr.Code)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Int("status", status).Msg("request failed")
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: string(exerrors.ErrCodeValidation)})
}

func statusFor(err error) int {
	switch {
	case exerrors.IsCode(err, exerrors.ErrCodeValidation):
		return http.StatusBadRequest
	case exerrors.IsCode(err, exerrors.ErrCodeNotFound):
		return http.StatusNotFound
	case exerrors.IsCode(err, exerrors.ErrCodeUnsupported):
		return http.StatusNotImplemented
	case exerrors.IsCode(err, exerrors.ErrCodeExhausted):
		return http.StatusBadGateway
	case exerrors.IsCode(err, exerrors.ErrCodeTimeout), exerrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case exerrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case exerrors.IsRetryable(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sourceVar(r *http.Request) (source.Type, error) {
	return source.Parse(strings.ToLower(mux.Vars(r)["source"]))
}

// overallStatus is healthy when every source is available, unhealthy when
// none is.
func overallStatus(available, total int) string {
	switch {
	case total == 0 || available == 0:
		return StatusUnhealthy
	case available < total:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.sources.Status()
	resp := HealthResponse{
		Primary:   s.sources.Primary(),
		Fallback:  s.sources.Fallback(),
		Sources:   make(map[source.Type]SourceHealth, len(statuses)),
		Timestamp: time.Now().UTC(),
	}
	available := 0
	for src, st := range statuses {
		if st.IsAvailable {
			available++
		}
		resp.Sources[src] = SourceHealth{Status: st, Health: s.monitor.Health(src)}
	}
	resp.Status = overallStatus(available, len(statuses))

	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

// handleStatus handles GET /api/v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Sources:   s.sources.Status(),
		Endpoints: s.poolStatuses(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) poolStatuses() map[source.Type]*rpcpool.PoolStatus {
	out := make(map[source.Type]*rpcpool.PoolStatus)
	for _, src := range source.All() {
		if pool, ok := s.sources.Pool(src); ok {
			out[src] = pool.Status()
		}
	}
	return out
}

// handleMetrics handles GET /api/v1/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, MetricsResponse{
		Metrics: s.monitor.AllMetrics(),
		Summary: s.monitor.PerformanceSummary(),
	})
}

// handleMetricsExport handles GET /api/v1/metrics/export
func (s *Server) handleMetricsExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="explorer-metrics.json"`)
	s.writeJSON(w, http.StatusOK, s.monitor.Export())
}

// handleMetricsCSV handles GET /api/v1/metrics.csv
func (s *Server) handleMetricsCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="explorer-metrics.csv"`)
	if err := monitoring.WriteCSV(w, s.monitor.Export()); err != nil {
		s.logger.Error().Err(err).Msg("failed to write metrics csv")
	}
}

// handleEvents handles GET /api/v1/events?source=<source>&type=<type>&limit=<n>
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	src, err := source.Parse(q.Get("source"))
	if err != nil {
		s.badRequest(w, "source parameter must be graphql or rpc")
		return
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.badRequest(w, "limit must be a non-negative integer")
			return
		}
	}

	var events []monitoring.Event
	if v := q.Get("type"); v != "" {
		eventType, ok := monitoring.ParseEventType(v)
		if !ok {
			s.badRequest(w, fmt.Sprintf("unknown event type %q", v))
			return
		}
		events = s.monitor.EventsByType(src, eventType, limit)
	} else {
		events = s.monitor.RecentEvents(src, limit)
	}
	if events == nil {
		events = []monitoring.Event{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

// handleEndpoints handles GET /api/v1/endpoints
func (s *Server) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.poolStatuses())
}

// handleSetCustomEndpoint handles PUT /api/v1/endpoints/{source}/custom
func (s *Server) handleSetCustomEndpoint(w http.ResponseWriter, r *http.Request) {
	src, err := sourceVar(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	var req CustomEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	endpoint := strings.TrimSpace(req.Endpoint)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		s.badRequest(w, "endpoint must be an http(s) URL")
		return
	}

	pool, ok := s.sources.Pool(src)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no endpoint pool for %s", src)})
		return
	}
	pool.SetCustomEndpoint(endpoint)
	s.logger.Info().Str("source", src.String()).Str("endpoint", endpoint).Msg("custom endpoint set")
	s.writeJSON(w, http.StatusOK, pool.Status())
}

// handleClearCustomEndpoint handles DELETE /api/v1/endpoints/{source}/custom
func (s *Server) handleClearCustomEndpoint(w http.ResponseWriter, r *http.Request) {
	src, err := sourceVar(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	pool, ok := s.sources.Pool(src)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no endpoint pool for %s", src)})
		return
	}
	pool.SetCustomEndpoint("")
	s.logger.Info().Str("source", src.String()).Msg("custom endpoint cleared")
	s.writeJSON(w, http.StatusOK, pool.Status())
}

// handleResetSource handles POST /api/v1/sources/{source}/reset
func (s *Server) handleResetSource(w http.ResponseWriter, r *http.Request) {
	src, err := sourceVar(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	pool, ok := s.sources.Pool(src)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no endpoint pool for %s", src)})
		return
	}
	pool.ResetAll()
	s.sources.ResetCircuitBreaker(src)
	s.writeJSON(w, http.StatusOK, s.sources.Status()[src])
}
