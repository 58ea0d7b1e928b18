package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tellor-io/layer-explorer/explorerClient/config"
	"github.com/tellor-io/layer-explorer/explorerClient/cron"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Config bounds the event log and schedules its cleanup
type Config struct {
	MaxEvents       int
	EventRetention  time.Duration
	CleanupInterval time.Duration
}

// NewConfig extracts the monitoring settings from a validated config
func NewConfig(cfg *config.Config) Config {
	return Config{
		MaxEvents:       cfg.MaxEvents,
		EventRetention:  cfg.EventRetention(),
		CleanupInterval: cfg.CleanupInterval(),
	}
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

type sourceState struct {
	events    []Event
	metrics   PerformanceMetrics
	health    HealthStatus
	cacheHits int64
}

func newSourceState() *sourceState {
	return &sourceState{health: HealthStatus{IsHealthy: true, Uptime: 100}}
}

// Service records query, error, fallback and health-check events per source
// and keeps rolling metrics derived from them. It never fails.
type Service struct {
	cfg     Config
	clock   clock.Clock
	logger  zerolog.Logger
	mu      sync.RWMutex
	sources map[source.Type]*sourceState
	job     *cron.Job
}

// NewService creates a monitoring service with empty logs for every source
func NewService(cfg Config, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		clock:   clock.New(),
		logger:  logger.With().Str("component", "monitoring").Logger(),
		sources: make(map[source.Type]*sourceState),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, src := range source.All() {
		s.sources[src] = newSourceState()
	}
	s.job = cron.NewJob("monitoring_cleanup", cfg.CleanupInterval, 0, func(context.Context) error {
		s.Cleanup()
		return nil
	}, s.clock, logger)
	return s
}

// Start runs Cleanup every CleanupInterval until Stop
func (s *Service) Start(ctx context.Context) error {
	return s.job.Start(ctx)
}

// Stop stops the cleanup job
func (s *Service) Stop() {
	s.job.Stop()
}

// RecordQuery appends a query event and updates the source's counters,
// running average response time and error rate.
func (s *Service) RecordQuery(src source.Type, query string, duration time.Duration, success bool, endpoint string, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	st := s.stateLocked(src)
	ev := Event{
		Type:     EventQuery,
		Source:   src,
		Endpoint: endpoint,
		Query:    query,
		Duration: duration,
		Metadata: withSuccess(metadata, success),
	}
	s.appendLocked(st, now, ev)

	m := &st.metrics
	m.TotalQueries++
	if success {
		m.SuccessfulQueries++
	} else {
		m.FailedQueries++
	}
	ms := toMillis(duration)
	m.TotalResponseTime += ms
	n := float64(m.TotalQueries)
	m.AverageResponseTime = (m.AverageResponseTime*(n-1) + ms) / n
	m.ErrorRate = errorRate(m)
	m.CacheHitRate = cacheHitRate(st.cacheHits, m.TotalQueries)
	m.LastUpdated = now
}

// RecordError appends an error event and counts a failed query. It does not
// touch TotalQueries, so the error rate uses the existing query count.
func (s *Service) RecordError(src source.Type, err error, query, endpoint string, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	st := s.stateLocked(src)
	ev := Event{
		Type:     EventError,
		Source:   src,
		Endpoint: endpoint,
		Query:    query,
		Metadata: metadata,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.appendLocked(st, now, ev)

	st.metrics.FailedQueries++
	st.metrics.ErrorRate = errorRate(&st.metrics)
	st.metrics.LastUpdated = now
}

// RecordFallback appends a fallback event on the from source and bumps its
// fallback rate by one fallback over the current query count.
func (s *Service) RecordFallback(from, to source.Type, reason, query string, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	st := s.stateLocked(from)
	md := make(map[string]interface{}, len(metadata)+3)
	for k, v := range metadata {
		md[k] = v
	}
	md["from"] = from.String()
	md["to"] = to.String()
	md["reason"] = reason
	s.appendLocked(st, now, Event{
		Type:     EventFallback,
		Source:   from,
		Query:    query,
		Metadata: md,
	})

	m := &st.metrics
	total := float64(m.TotalQueries)
	if total == 0 {
		total = 1
	}
	m.FallbackRate = (m.FallbackRate*total + 1) / total
	m.LastUpdated = now
}

// RecordHealthCheck appends a health_check event and updates the health
// status and uptime of the source.
func (s *Service) RecordHealthCheck(src source.Type, isHealthy bool, responseTime time.Duration, endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	st := s.stateLocked(src)
	s.appendLocked(st, now, Event{
		Type:     EventHealthCheck,
		Source:   src,
		Endpoint: endpoint,
		Duration: responseTime,
		Metadata: map[string]interface{}{"healthy": isHealthy},
	})

	h := &st.health
	h.IsHealthy = isHealthy
	h.LastCheck = now
	h.ResponseTime = toMillis(responseTime)
	if isHealthy {
		h.SuccessCount++
	} else {
		h.ErrorCount++
	}
	h.Uptime = float64(h.SuccessCount) / float64(h.SuccessCount+h.ErrorCount) * 100
}

// RecordPerformance appends a performance event for a completed operation
func (s *Service) RecordPerformance(src source.Type, operation string, duration time.Duration, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(s.stateLocked(src), s.clock.Now(), Event{
		Type:     EventPerformance,
		Source:   src,
		Query:    operation,
		Duration: duration,
		Metadata: metadata,
	})
}

// RecordCacheHit counts a response served from cache
func (s *Service) RecordCacheHit(src source.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateLocked(src)
	st.cacheHits++
	st.metrics.CacheHitRate = cacheHitRate(st.cacheHits, st.metrics.TotalQueries)
	st.metrics.LastUpdated = s.clock.Now()
}

// Metrics returns a copy of the metrics of src
func (s *Service) Metrics(src source.Type) PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.sources[src]; ok {
		return st.metrics
	}
	return PerformanceMetrics{}
}

// AllMetrics returns a copy of the metrics of every source
func (s *Service) AllMetrics() map[source.Type]PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[source.Type]PerformanceMetrics, len(s.sources))
	for src, st := range s.sources {
		out[src] = st.metrics
	}
	return out
}

// Health returns the health status of src
func (s *Service) Health(src source.Type) HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.sources[src]; ok {
		return st.health
	}
	return newSourceState().health
}

// RecentEvents returns up to limit events of src, newest first. A limit of
// zero or less returns every retained event.
func (s *Service) RecentEvents(src source.Type, limit int) []Event {
	return s.filterEvents(src, limit, func(Event) bool { return true })
}

// EventsByType returns up to limit events of src with the given type, newest first
func (s *Service) EventsByType(src source.Type, eventType EventType, limit int) []Event {
	return s.filterEvents(src, limit, func(ev Event) bool { return ev.Type == eventType })
}

func (s *Service) filterEvents(src source.Type, limit int, keep func(Event) bool) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sources[src]
	if !ok {
		return []Event{}
	}
	out := make([]Event, 0)
	for i := len(st.events) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if keep(st.events[i]) {
			out = append(out, st.events[i])
		}
	}
	return out
}

// PerformanceSummary returns per-source metrics and health plus an overall roll-up
func (s *Service) PerformanceSummary() PerformanceSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaryLocked()
}

func (s *Service) summaryLocked() PerformanceSummary {
	summary := PerformanceSummary{
		Sources: make(map[source.Type]PerformanceMetrics, len(s.sources)),
		Health:  make(map[source.Type]HealthStatus, len(s.sources)),
	}

	var totalTime, uptime float64
	overall := &summary.Overall
	for src, st := range s.sources {
		summary.Sources[src] = st.metrics
		summary.Health[src] = st.health
		overall.TotalQueries += st.metrics.TotalQueries
		overall.SuccessfulQueries += st.metrics.SuccessfulQueries
		overall.FailedQueries += st.metrics.FailedQueries
		totalTime += st.metrics.TotalResponseTime
		uptime += st.health.Uptime
	}

	overall.SuccessRate = 100
	if overall.TotalQueries > 0 {
		total := float64(overall.TotalQueries)
		overall.AverageResponseTime = totalTime / total
		overall.ErrorRate = float64(overall.FailedQueries) / total * 100
		overall.SuccessRate = float64(overall.SuccessfulQueries) / total * 100
	}
	if len(s.sources) > 0 {
		overall.Uptime = uptime / float64(len(s.sources))
	}
	return summary
}

// Export returns a timestamped snapshot of every metric for renderers
func (s *Service) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := s.summaryLocked()
	counts := make(map[source.Type]int, len(s.sources))
	for src, st := range s.sources {
		counts[src] = len(st.events)
	}
	return Snapshot{
		Timestamp:   s.clock.Now(),
		Metrics:     summary.Sources,
		Health:      summary.Health,
		Summary:     summary,
		EventCounts: counts,
	}
}

// Cleanup drops events older than the retention window and returns how many
// were removed.
func (s *Service) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.cfg.EventRetention)
	removed := 0
	for _, st := range s.sources {
		idx := sort.Search(len(st.events), func(i int) bool {
			return !st.events[i].Timestamp.Before(cutoff)
		})
		if idx == 0 {
			continue
		}
		removed += idx
		st.events = append([]Event(nil), st.events[idx:]...)
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Time("cutoff", cutoff).Msg("expired monitoring events removed")
	}
	return removed
}

// Reset clears the events, metrics and health of src
func (s *Service) Reset(src source.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources[src] = newSourceState()
	s.logger.Info().Str("source", src.String()).Msg("monitoring state reset")
}

func (s *Service) stateLocked(src source.Type) *sourceState {
	st, ok := s.sources[src]
	if !ok {
		st = newSourceState()
		s.sources[src] = st
	}
	return st
}

// appendLocked stamps ev and appends it, evicting the oldest events past the cap
func (s *Service) appendLocked(st *sourceState, now time.Time, ev Event) {
	ev.ID = uuid.NewString()
	ev.Timestamp = now
	st.events = append(st.events, ev)

	if s.cfg.MaxEvents > 0 && len(st.events) > s.cfg.MaxEvents {
		st.events = append([]Event(nil), st.events[len(st.events)-s.cfg.MaxEvents:]...)
	}
}

func withSuccess(metadata map[string]interface{}, success bool) map[string]interface{} {
	md := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md["success"] = success
	return md
}

func errorRate(m *PerformanceMetrics) float64 {
	if m.TotalQueries == 0 {
		if m.FailedQueries > 0 {
			return 100
		}
		return 0
	}
	return float64(m.FailedQueries) / float64(m.TotalQueries) * 100
}

func cacheHitRate(hits, queries int64) float64 {
	if hits+queries == 0 {
		return 0
	}
	return float64(hits) / float64(hits+queries) * 100
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
