package rpcpool

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// HealthMonitor periodically probes endpoints with open circuits and closes
// them once they answer again.
type HealthMonitor struct {
	manager       *Manager
	config        PoolConfig
	clock         clock.Clock
	logger        zerolog.Logger
	healthChecker HealthChecker
	observer      HealthObserver
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(manager *Manager, config PoolConfig, clk clock.Clock, logger zerolog.Logger) *HealthMonitor {
	return &HealthMonitor{
		manager: manager,
		config:  config,
		clock:   clk,
		logger: logger.With().
			Str("component", "health_monitor").
			Str("source", manager.source.String()).
			Logger(),
		stopCh: make(chan struct{}),
	}
}

// SetHealthChecker sets the health checker implementation
func (h *HealthMonitor) SetHealthChecker(checker HealthChecker) {
	h.healthChecker = checker
}

// SetObserver sets the sink for probe outcomes
func (h *HealthMonitor) SetObserver(observer HealthObserver) {
	h.observer = observer
}

// Start begins the health monitoring loop
func (h *HealthMonitor) Start(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	if h.config.HealthCheckInterval <= 0 {
		h.logger.Warn().Msg("health check interval not set, recovery probes disabled")
		return
	}

	h.logger.Info().
		Dur("interval", h.config.HealthCheckInterval).
		Dur("circuit_reset_time", h.config.CircuitResetTime).
		Msg("starting health monitor")

	ticker := h.clock.Ticker(h.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("health monitor stopping: context cancelled")
			return
		case <-h.stopCh:
			h.logger.Info().Msg("health monitor stopping: stop signal received")
			return
		case <-ticker.C:
			h.performHealthChecks(ctx)
		}
	}
}

// Stop stops the health monitor
func (h *HealthMonitor) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// performHealthChecks probes every open endpoint whose reset time elapsed
func (h *HealthMonitor) performHealthChecks(ctx context.Context) {
	if h.healthChecker == nil {
		return
	}

	candidates := h.manager.probeCandidates()
	if len(candidates) == 0 {
		return
	}
	h.logger.Debug().Int("candidates", len(candidates)).Msg("probing open endpoints")

	var wg sync.WaitGroup
	for _, endpoint := range candidates {
		wg.Add(1)
		go func(ep string) {
			defer wg.Done()
			h.checkEndpointHealth(ctx, ep)
		}(endpoint)
	}
	wg.Wait()
}

// checkEndpointHealth probes one endpoint and updates its circuit
func (h *HealthMonitor) checkEndpointHealth(ctx context.Context, endpoint string) {
	checkCtx := ctx
	if h.config.HealthCheckTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, h.config.HealthCheckTimeout)
		defer cancel()
	}

	start := h.clock.Now()
	err := h.healthChecker.CheckHealth(checkCtx, endpoint)
	latency := h.clock.Since(start)

	if h.observer != nil {
		h.observer.RecordHealthCheck(h.manager.source, err == nil, latency, endpoint)
	}

	if err != nil {
		h.manager.touch(endpoint)
		h.logger.Warn().
			Str("endpoint", endpoint).
			Err(err).
			Msg("endpoint recovery failed, circuit stays open")
		return
	}

	h.manager.ReportSuccess(endpoint)
	h.logger.Info().
		Str("endpoint", endpoint).
		Dur("latency", latency).
		Msg("endpoint recovered")
}
