package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "layer_explorer"

// Collector exposes Service snapshots as Prometheus metrics. Values are read
// at scrape time, so the service stays the single source of truth.
type Collector struct {
	svc *Service

	totalQueries      *prometheus.Desc
	successfulQueries *prometheus.Desc
	failedQueries     *prometheus.Desc
	avgResponseTime   *prometheus.Desc
	errorRate         *prometheus.Desc
	fallbackRate      *prometheus.Desc
	cacheHitRate      *prometheus.Desc
	healthy           *prometheus.Desc
	uptime            *prometheus.Desc
	healthChecks      *prometheus.Desc
	events            *prometheus.Desc
}

// NewCollector creates a collector reading from svc
func NewCollector(svc *Service) *Collector {
	labels := []string{"source"}
	desc := func(name, help string, extra ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, append(labels, extra...), nil)
	}
	return &Collector{
		svc:               svc,
		totalQueries:      desc("queries_total", "Queries recorded per data source."),
		successfulQueries: desc("queries_successful_total", "Successful queries per data source."),
		failedQueries:     desc("queries_failed_total", "Failed queries per data source, including recorded errors."),
		avgResponseTime:   desc("response_time_avg_ms", "Running mean response time in milliseconds."),
		errorRate:         desc("error_rate_percent", "Failed queries over total queries, in percent."),
		fallbackRate:      desc("fallback_rate", "Fallbacks away from the source per query."),
		cacheHitRate:      desc("cache_hit_rate_percent", "Cache hits over cache hits plus queries, in percent."),
		healthy:           desc("healthy", "1 if the last health check of the source passed."),
		uptime:            desc("uptime_percent", "Passed health checks over all health checks, in percent."),
		healthChecks:      desc("health_checks_total", "Health checks per data source and result.", "result"),
		events:            desc("events_retained", "Monitoring events currently retained."),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalQueries
	ch <- c.successfulQueries
	ch <- c.failedQueries
	ch <- c.avgResponseTime
	ch <- c.errorRate
	ch <- c.fallbackRate
	ch <- c.cacheHitRate
	ch <- c.healthy
	ch <- c.uptime
	ch <- c.healthChecks
	ch <- c.events
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.svc.Export()
	for src, m := range snap.Metrics {
		label := src.String()
		ch <- prometheus.MustNewConstMetric(c.totalQueries, prometheus.CounterValue, float64(m.TotalQueries), label)
		ch <- prometheus.MustNewConstMetric(c.successfulQueries, prometheus.CounterValue, float64(m.SuccessfulQueries), label)
		ch <- prometheus.MustNewConstMetric(c.failedQueries, prometheus.CounterValue, float64(m.FailedQueries), label)
		ch <- prometheus.MustNewConstMetric(c.avgResponseTime, prometheus.GaugeValue, m.AverageResponseTime, label)
		ch <- prometheus.MustNewConstMetric(c.errorRate, prometheus.GaugeValue, m.ErrorRate, label)
		ch <- prometheus.MustNewConstMetric(c.fallbackRate, prometheus.GaugeValue, m.FallbackRate, label)
		ch <- prometheus.MustNewConstMetric(c.cacheHitRate, prometheus.GaugeValue, m.CacheHitRate, label)
	}
	for src, h := range snap.Health {
		label := src.String()
		healthy := 0.0
		if h.IsHealthy {
			healthy = 1
		}
		ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, healthy, label)
		ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, h.Uptime, label)
		ch <- prometheus.MustNewConstMetric(c.healthChecks, prometheus.CounterValue, float64(h.SuccessCount), label, "success")
		ch <- prometheus.MustNewConstMetric(c.healthChecks, prometheus.CounterValue, float64(h.ErrorCount), label, "failure")
	}
	for src, n := range snap.EventCounts {
		ch <- prometheus.MustNewConstMetric(c.events, prometheus.GaugeValue, float64(n), src.String())
	}
}
