package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tellor-io/layer-explorer/explorerClient/datasource"
	"github.com/tellor-io/layer-explorer/explorerClient/explorer"
	"github.com/tellor-io/layer-explorer/explorerClient/fallback"
	"github.com/tellor-io/layer-explorer/explorerClient/monitoring"
)

// Deps are the components the server exposes
type Deps struct {
	Service  *explorer.Service
	Sources  *datasource.Manager
	Monitor  *monitoring.Service
	Fallback *fallback.Runner
	Gatherer prometheus.Gatherer
}

// Server provides HTTP endpoints
type Server struct {
	logger   zerolog.Logger
	server   *http.Server
	service  *explorer.Service
	sources  *datasource.Manager
	monitor  *monitoring.Service
	fallback *fallback.Runner
	gatherer prometheus.Gatherer
}

// NewServer creates a new Server instance
func NewServer(logger zerolog.Logger, port int, deps Deps) *Server {
	s := &Server{
		logger:   logger.With().Str("component", "api").Logger(),
		service:  deps.Service,
		sources:  deps.Sources,
		monitor:  deps.Monitor,
		fallback: deps.Fallback,
		gatherer: deps.Gatherer,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("query server is nil")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
	}

	go func() {
		err := s.server.Serve(ln)
		switch err {
		case nil:
			s.logger.Info().Msg("query server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("query server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("query server error")
		}
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("query server listening")
	return nil
}

// Stop shuts down the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
