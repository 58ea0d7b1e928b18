package datasource

import (
	"context"

	exerrors "github.com/tellor-io/layer-explorer/explorerClient/errors"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// checkSources probes every source once per tick. Available sources only
// refresh their health; an unavailable source is probed when its backoff has
// elapsed and its breaker is reset on success. Consecutive probe failures
// space the next probe at min(interval*2^n, MaxBackoff).
func (m *Manager) checkSources(ctx context.Context) error {
	for src := range m.pools {
		m.checkSource(ctx, src)
	}
	return nil
}

func (m *Manager) checkSource(ctx context.Context, src source.Type) {
	m.mu.Lock()
	st := m.states[src]
	available := st.status.IsAvailable
	due := !m.clock.Now().Before(st.status.NextProbe)
	m.mu.Unlock()

	if !available && !due {
		return
	}

	prober, ok := m.probers[src]
	if !ok || prober == nil {
		if !available {
			m.logger.Info().Str("source", src.String()).Msg("no prober configured, reopening source after backoff")
			m.ResetCircuitBreaker(src)
		}
		return
	}

	pool := m.pools[src]
	endpoint := pool.CurrentEndpoint()
	probeCtx := ctx
	if m.settings.HealthCheckTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, m.settings.HealthCheckTimeout)
		defer cancel()
	}

	start := m.clock.Now()
	err := prober.CheckHealth(probeCtx, endpoint)
	latency := m.clock.Since(start)
	m.recorder.RecordHealthCheck(src, err == nil, latency, endpoint)

	if err == nil {
		pool.ReportSuccess(endpoint)
		if available {
			m.reportSuccess(src, latency)
		} else {
			m.ResetCircuitBreaker(src)
		}
		m.logger.Debug().Str("source", src.String()).Str("endpoint", endpoint).Dur("latency", latency).Msg("source health check passed")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	st.status.IsHealthy = false
	st.status.LastCheck = now
	if !st.status.IsAvailable {
		st.status.ProbeFailures++
		st.status.NextProbe = now.Add(exerrors.ExponentialBackoff(
			st.status.ProbeFailures+1, m.settings.HealthCheckInterval, m.settings.MaxBackoff))
	}
	m.logger.Warn().
		Str("source", src.String()).
		Str("endpoint", endpoint).
		Int("probe_failures", st.status.ProbeFailures).
		Time("next_probe", st.status.NextProbe).
		Err(err).
		Msg("source health check failed")
}

// CheckNow runs one health pass immediately
func (m *Manager) CheckNow(ctx context.Context) {
	_ = m.checkSources(ctx)
}
