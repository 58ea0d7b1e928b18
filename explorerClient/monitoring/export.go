package monitoring

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

var csvHeader = []string{
	"timestamp",
	"source",
	"total_queries",
	"successful_queries",
	"failed_queries",
	"average_response_time_ms",
	"error_rate",
	"fallback_rate",
	"cache_hit_rate",
	"is_healthy",
	"uptime",
}

// WriteCSV renders one row per source, sorted by source name
func WriteCSV(w io.Writer, snap Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	sources := make([]source.Type, 0, len(snap.Metrics))
	for src := range snap.Metrics {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	ts := snap.Timestamp.UTC().Format(time.RFC3339)
	for _, src := range sources {
		m := snap.Metrics[src]
		h := snap.Health[src]
		row := []string{
			ts,
			src.String(),
			strconv.FormatInt(m.TotalQueries, 10),
			strconv.FormatInt(m.SuccessfulQueries, 10),
			strconv.FormatInt(m.FailedQueries, 10),
			formatFloat(m.AverageResponseTime),
			formatFloat(m.ErrorRate),
			formatFloat(m.FallbackRate),
			formatFloat(m.CacheHitRate),
			strconv.FormatBool(h.IsHealthy),
			formatFloat(h.Uptime),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write csv row for %s", src)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
