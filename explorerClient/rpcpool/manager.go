package rpcpool

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tellor-io/layer-explorer/explorerClient/config"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// PoolConfig holds the circuit breaker and probe settings of one pool
type PoolConfig struct {
	MaxFailures         int
	CircuitResetTime    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}

// NewPoolConfig extracts the pool settings for src from a validated config.
func NewPoolConfig(cfg *config.Config, src source.Type) PoolConfig {
	return PoolConfig{
		MaxFailures:         cfg.MaxFailures,
		CircuitResetTime:    cfg.CircuitResetTime(),
		HealthCheckInterval: cfg.HealthCheckInterval(src),
		HealthCheckTimeout:  cfg.HealthCheckTimeout(),
	}
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithPrimaryFastFailover makes a single primary failure open its circuit and
// a primary success reset every endpoint.
func WithPrimaryFastFailover(enabled bool) Option {
	return func(m *Manager) { m.primaryFastFailover = enabled }
}

// WithHealthChecker sets the probe used to close open circuits
func WithHealthChecker(checker HealthChecker) Option {
	return func(m *Manager) { m.healthChecker = checker }
}

// WithHealthObserver sets the sink for probe outcomes
func WithHealthObserver(observer HealthObserver) Option {
	return func(m *Manager) { m.observer = observer }
}

// Manager owns the ordered endpoint list of one source and a circuit breaker
// per endpoint. Its methods never fail; they only update state and answer
// which endpoint to use next.
type Manager struct {
	source              source.Type
	endpoints           []string
	custom              string
	states              map[string]*EndpointState
	currentIndex        int
	config              PoolConfig
	primaryFastFailover bool
	clock               clock.Clock
	healthChecker       HealthChecker
	observer            HealthObserver
	logger              zerolog.Logger
	HealthMonitor       *HealthMonitor
	mu                  sync.Mutex
	wg                  sync.WaitGroup
}

// NewManager creates an endpoint manager for src. It returns nil when urls is empty.
func NewManager(src source.Type, urls []string, poolConfig PoolConfig, logger zerolog.Logger, opts ...Option) *Manager {
	if len(urls) == 0 {
		logger.Warn().Str("source", src.String()).Msg("no endpoints provided for pool")
		return nil
	}

	endpoints := make([]string, len(urls))
	copy(endpoints, urls)
	states := make(map[string]*EndpointState, len(urls))
	for _, url := range endpoints {
		states[url] = &EndpointState{}
	}

	m := &Manager{
		source:    src,
		endpoints: endpoints,
		states:    states,
		config:    poolConfig,
		clock:     clock.New(),
		logger:    logger.With().Str("component", "endpoint_pool").Str("source", src.String()).Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.config.MaxFailures <= 0 {
		m.config.MaxFailures = 1
	}

	m.HealthMonitor = NewHealthMonitor(m, m.config, m.clock, logger)
	m.HealthMonitor.SetHealthChecker(m.healthChecker)
	m.HealthMonitor.SetObserver(m.observer)
	return m
}

// NewRPCManager creates the RPC pool. Primary failures open the circuit at
// once and a primary success re-centers the pool on it.
func NewRPCManager(urls []string, poolConfig PoolConfig, logger zerolog.Logger, opts ...Option) *Manager {
	opts = append([]Option{WithPrimaryFastFailover(true)}, opts...)
	return NewManager(source.RPC, urls, poolConfig, logger, opts...)
}

// NewGraphQLManager creates the GraphQL pool, a plain threshold breaker.
func NewGraphQLManager(urls []string, poolConfig PoolConfig, logger zerolog.Logger, opts ...Option) *Manager {
	opts = append([]Option{WithPrimaryFastFailover(false)}, opts...)
	return NewManager(source.GraphQL, urls, poolConfig, logger, opts...)
}

// Start launches the recovery probe loop
func (m *Manager) Start(ctx context.Context) {
	m.logger.Info().
		Int("endpoint_count", len(m.endpoints)).
		Bool("primary_fast_failover", m.primaryFastFailover).
		Msg("starting endpoint pool")

	m.wg.Add(1)
	go m.HealthMonitor.Start(ctx, &m.wg)
}

// Stop stops the recovery probe loop and waits for it to exit
func (m *Manager) Stop() {
	m.logger.Info().Msg("stopping endpoint pool")
	m.HealthMonitor.Stop()
	m.wg.Wait()
}

// Source returns the source type served by this pool
func (m *Manager) Source() source.Type {
	return m.source
}

// IsPrimaryEndpoint reports whether endpoint is the first configured endpoint.
// A custom endpoint is never the primary.
func (m *Manager) IsPrimaryEndpoint(endpoint string) bool {
	return len(m.endpoints) > 0 && m.endpoints[0] == endpoint
}

// CurrentEndpoint returns the custom endpoint if set, otherwise the first
// endpoint whose circuit is closed. When every circuit is open all of them
// are reset and the primary is returned.
func (m *Manager) CurrentEndpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.custom != "" {
		return m.custom
	}
	if idx, ok := m.firstAvailableLocked(); ok {
		m.currentIndex = idx
		return m.endpoints[idx]
	}

	m.logger.Warn().Msg("all endpoint circuits open, resetting and retrying primary")
	m.resetAllLocked()
	return m.endpoints[0]
}

// Endpoints returns the usable endpoints in priority order, with the custom
// endpoint first when set.
func (m *Manager) Endpoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.endpoints)+1)
	if m.custom != "" && !m.states[m.custom].CircuitOpen {
		out = append(out, m.custom)
	}
	for _, ep := range m.endpoints {
		if ep == m.custom {
			continue
		}
		if !m.states[ep].CircuitOpen {
			out = append(out, ep)
		}
	}
	return out
}

// ReportSuccess closes the circuit of endpoint. With primary fast-failover a
// primary success resets every endpoint and the rotation returns to index 0.
func (m *Manager) ReportSuccess(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primaryFastFailover && m.IsPrimaryEndpoint(endpoint) {
		if m.anyFailuresLocked() {
			m.logger.Info().Str("endpoint", endpoint).Msg("primary endpoint recovered, resetting all circuits")
		}
		m.resetAllLocked()
		return
	}

	st := m.stateLocked(endpoint)
	if st.CircuitOpen {
		m.logger.Info().Str("endpoint", endpoint).Msg("endpoint circuit closed")
	}
	st.reset()
}

// ReportFailure records a failure on endpoint and returns the endpoint to
// try next. The primary is returned when no endpoint is available; the
// reset itself happens on the next CurrentEndpoint call.
func (m *Manager) ReportFailure(endpoint string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.stateLocked(endpoint)
	forceOpen := m.primaryFastFailover && m.IsPrimaryEndpoint(endpoint)
	if st.recordFailure(m.clock.Now(), m.config.MaxFailures, forceOpen) {
		m.logger.Warn().
			Str("endpoint", endpoint).
			Int("failure_count", st.FailureCount).
			Bool("primary", forceOpen).
			Msg("endpoint circuit opened")
	} else {
		m.logger.Debug().
			Str("endpoint", endpoint).
			Int("failure_count", st.FailureCount).
			Msg("endpoint failure recorded")
	}

	if m.custom != "" && !m.states[m.custom].CircuitOpen {
		return m.custom
	}
	if idx, ok := m.firstAvailableLocked(); ok {
		m.currentIndex = idx
		return m.endpoints[idx]
	}
	return m.endpoints[0]
}

// SetCustomEndpoint sets a user override with a fresh closed circuit. An
// empty string clears the override.
func (m *Manager) SetCustomEndpoint(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.custom = endpoint
	if endpoint == "" {
		m.logger.Info().Msg("custom endpoint cleared")
		return
	}
	m.states[endpoint] = &EndpointState{}
	m.logger.Info().Str("endpoint", endpoint).Msg("custom endpoint set")
}

// CustomEndpoint returns the user override, if any
func (m *Manager) CustomEndpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.custom
}

// State returns a copy of the circuit state of endpoint
func (m *Manager) State(endpoint string) (EndpointState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[endpoint]
	if !ok {
		return EndpointState{}, false
	}
	return *st, true
}

// ResetAll closes every circuit and points the rotation at the primary
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetAllLocked()
}

// Status returns a snapshot of every endpoint's circuit
func (m *Manager) Status() *PoolStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	urls := m.endpoints
	if m.custom != "" && m.indexOf(m.custom) < 0 {
		urls = append([]string{m.custom}, m.endpoints...)
	}

	status := &PoolStatus{
		Source:         m.source,
		TotalEndpoints: len(urls),
		CurrentIndex:   m.currentIndex,
		CustomEndpoint: m.custom,
		Endpoints:      make([]EndpointStatus, 0, len(urls)),
	}
	for _, url := range urls {
		st := m.states[url]
		if st.CircuitOpen {
			status.OpenCount++
		} else {
			status.AvailableCount++
		}
		status.Endpoints = append(status.Endpoints, EndpointStatus{
			URL:          url,
			State:        st.String(),
			FailureCount: st.FailureCount,
			CircuitOpen:  st.CircuitOpen,
			LastAttempt:  st.LastAttempt,
			Primary:      m.IsPrimaryEndpoint(url),
			Custom:       url == m.custom,
		})
	}

	switch {
	case m.custom != "":
		status.CurrentEndpoint = m.custom
	default:
		if idx, ok := m.firstAvailableLocked(); ok {
			status.CurrentEndpoint = m.endpoints[idx]
		} else {
			status.CurrentEndpoint = m.endpoints[0]
		}
	}
	return status
}

// probeCandidates returns the open endpoints whose reset time has elapsed
func (m *Manager) probeCandidates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var out []string
	for url, st := range m.states {
		if !m.tracked(url) {
			continue
		}
		if st.readyForProbe(now, m.config.CircuitResetTime) {
			out = append(out, url)
		}
	}
	return out
}

// touch refreshes the last attempt time of an endpoint that failed a probe
func (m *Manager) touch(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateLocked(endpoint).LastAttempt = m.clock.Now()
}

func (m *Manager) tracked(url string) bool {
	return url == m.custom || m.indexOf(url) >= 0
}

func (m *Manager) indexOf(url string) int {
	for i, ep := range m.endpoints {
		if ep == url {
			return i
		}
	}
	return -1
}

func (m *Manager) stateLocked(endpoint string) *EndpointState {
	st, ok := m.states[endpoint]
	if !ok {
		st = &EndpointState{}
		m.states[endpoint] = st
	}
	return st
}

func (m *Manager) firstAvailableLocked() (int, bool) {
	for i, ep := range m.endpoints {
		if !m.states[ep].CircuitOpen {
			return i, true
		}
	}
	return 0, false
}

func (m *Manager) anyFailuresLocked() bool {
	for _, st := range m.states {
		if st.FailureCount > 0 || st.CircuitOpen {
			return true
		}
	}
	return false
}

func (m *Manager) resetAllLocked() {
	for _, st := range m.states {
		st.reset()
	}
	m.currentIndex = 0
}
