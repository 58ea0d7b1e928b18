package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tellor-io/layer-explorer/explorerClient/config"
	"github.com/tellor-io/layer-explorer/explorerClient/cron"
	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
	"github.com/tellor-io/layer-explorer/explorerClient/rpcpool"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Settings is the fetch policy shared by every call
type Settings struct {
	Primary             source.Type
	Fallback            source.Type
	AutoFallback        bool
	RequestTimeout      time.Duration
	Retries             int
	MaxFailures         int
	Retry               exerrors.RetryConfig
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	MaxBackoff          time.Duration
}

// NewSettings extracts the fetch policy from a validated config
func NewSettings(cfg *config.Config) Settings {
	retry := exerrors.DefaultRetryConfig()
	retry.MaxDelay = cfg.RetryBackoffCap()
	return Settings{
		Primary:             cfg.Primary(),
		Fallback:            cfg.Fallback(),
		AutoFallback:        cfg.IsAutoFallback(),
		RequestTimeout:      cfg.RequestTimeout(),
		Retries:             cfg.GetRetries(),
		MaxFailures:         cfg.MaxFailures,
		Retry:               *retry,
		HealthCheckInterval: cfg.SourceHealthCheckInterval(),
		HealthCheckTimeout:  cfg.HealthCheckTimeout(),
		MaxBackoff:          cfg.MaxBackoff(),
	}
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithSleeper replaces the backoff wait, mainly for tests
func WithSleeper(s Sleeper) Option {
	return func(m *Manager) { m.sleep = s }
}

// WithRecorder sets the sink for fetch and probe outcomes
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithProber sets the health probe used to bring src back after its
// breaker tripped.
func WithProber(src source.Type, prober rpcpool.HealthChecker) Option {
	return func(m *Manager) { m.probers[src] = prober }
}

type sourceState struct {
	status SourceStatus
}

// Manager tries data sources in priority order with retries, per-attempt
// timeouts and a breaker per source on top of the endpoint pools.
type Manager struct {
	settings Settings
	pools    map[source.Type]*rpcpool.Manager
	probers  map[source.Type]rpcpool.HealthChecker
	recorder Recorder
	clock    clock.Clock
	sleep    Sleeper
	logger   zerolog.Logger

	mu     sync.Mutex
	states map[source.Type]*sourceState
	job    *cron.Job
}

// NewManager creates a data source manager over the given endpoint pools
func NewManager(settings Settings, pools []*rpcpool.Manager, logger zerolog.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		settings: settings,
		pools:    make(map[source.Type]*rpcpool.Manager, len(pools)),
		probers:  make(map[source.Type]rpcpool.HealthChecker),
		recorder: nopRecorder{},
		clock:    clock.New(),
		logger:   logger.With().Str("component", "datasource").Logger(),
		states:   make(map[source.Type]*sourceState),
	}
	for _, p := range pools {
		if p == nil {
			continue
		}
		m.pools[p.Source()] = p
	}
	for _, src := range []source.Type{settings.Primary, settings.Fallback} {
		if !src.Valid() {
			return nil, exerrors.NewConfigError(fmt.Sprintf("unknown data source %q", src))
		}
		if _, ok := m.pools[src]; !ok {
			return nil, exerrors.NewConfigError(fmt.Sprintf("no endpoint pool for %s", src))
		}
	}
	if m.settings.MaxFailures <= 0 {
		m.settings.MaxFailures = 1
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.sleep == nil {
		m.sleep = m.clockSleep
	}
	for src := range m.pools {
		m.states[src] = &sourceState{status: SourceStatus{IsHealthy: true, IsAvailable: true}}
	}

	m.job = cron.NewJob("source_health", settings.HealthCheckInterval, 0, m.checkSources, m.clock, logger)
	return m, nil
}

// Start launches the source health loop
func (m *Manager) Start(ctx context.Context) error {
	m.logger.Info().
		Str("primary", m.settings.Primary.String()).
		Str("fallback", m.settings.Fallback.String()).
		Bool("auto_fallback", m.settings.AutoFallback).
		Msg("starting data source manager")
	return m.job.Start(ctx)
}

// Stop stops the source health loop
func (m *Manager) Stop() {
	m.job.Stop()
}

// Primary returns the preferred source
func (m *Manager) Primary() source.Type { return m.settings.Primary }

// Fallback returns the secondary source
func (m *Manager) Fallback() source.Type { return m.settings.Fallback }

// AutoFallback reports whether failed fetches move on to the fallback source
func (m *Manager) AutoFallback() bool { return m.settings.AutoFallback }

// Pool returns the endpoint pool of src
func (m *Manager) Pool(src source.Type) (*rpcpool.Manager, bool) {
	p, ok := m.pools[src]
	return p, ok
}

// Status returns a copy of every source's breaker state
func (m *Manager) Status() map[source.Type]SourceStatus {
	m.mu.Lock()
	out := make(map[source.Type]SourceStatus, len(m.states))
	for src, st := range m.states {
		out[src] = st.status
	}
	m.mu.Unlock()

	for src, st := range out {
		st.CurrentEndpoint = m.pools[src].Status().CurrentEndpoint
		out[src] = st
	}
	return out
}

// IsAvailable reports whether src takes part in fetches
func (m *Manager) IsAvailable(src source.Type) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[src]
	return ok && st.status.IsAvailable
}

// ResetCircuitBreaker makes src available again with a clean failure count
func (m *Manager) ResetCircuitBreaker(src source.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[src]
	if !ok {
		return
	}
	if !st.status.IsAvailable {
		m.logger.Info().Str("source", src.String()).Msg("source circuit closed")
	}
	st.status = SourceStatus{
		IsHealthy:    true,
		IsAvailable:  true,
		LastCheck:    m.clock.Now(),
		ResponseTime: st.status.ResponseTime,
	}
}

// priority returns the sources to try for opts, in order
func (m *Manager) priority(opts Options) ([]source.Type, error) {
	if opts.ForceSource != "" {
		if _, ok := m.pools[opts.ForceSource]; !ok {
			return nil, exerrors.NewValidationError(fmt.Sprintf("unknown data source %q", opts.ForceSource))
		}
		return []source.Type{opts.ForceSource}, nil
	}
	fallback := m.settings.AutoFallback
	if opts.FallbackOnError != nil {
		fallback = *opts.FallbackOnError
	}
	if fallback {
		return []source.Type{m.settings.Primary, m.settings.Fallback}, nil
	}
	return []source.Type{m.settings.Primary}, nil
}

func (m *Manager) reportSuccess(src source.Type, responseTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.states[src]
	st.status.IsHealthy = true
	st.status.FailureCount = 0
	st.status.ResponseTime = responseTime
	st.status.LastCheck = m.clock.Now()
}

// reportFailure counts a failed attempt and trips the source breaker after
// MaxFailures consecutive failures.
func (m *Manager) reportFailure(src source.Type, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	st := m.states[src]
	st.status.IsHealthy = false
	st.status.FailureCount++
	st.status.LastCheck = now
	if st.status.IsAvailable && st.status.FailureCount >= m.settings.MaxFailures {
		st.status.IsAvailable = false
		st.status.ProbeFailures = 0
		st.status.NextProbe = now.Add(m.settings.HealthCheckInterval)
		m.logger.Warn().
			Str("source", src.String()).
			Int("failure_count", st.status.FailureCount).
			Err(err).
			Msg("source circuit opened")
	}
}

func (m *Manager) clockSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := m.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
