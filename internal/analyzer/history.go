package analyzer

import "context"

const historySQL = `
SELECT
    count() AS execution_count,
    avg(query_duration_ms) AS avg_duration_ms,
    max(query_duration_ms) AS max_duration_ms,
    min(query_duration_ms) AS min_duration_ms,
    quantile(0.95)(query_duration_ms) AS p95_duration_ms
FROM system.query_log
WHERE toString(normalized_query_hash) = ?
  AND event_time > now() - INTERVAL ? DAY
  AND type = 'QueryFinish'
`

// HistoryStats aggregates past executions of one normalized query.
type HistoryStats struct {
	ExecutionCount int64
	AvgDurationMs  float64
	MaxDurationMs  float64
	MinDurationMs  float64
	P95DurationMs  float64
	Stability      string
}

// QueryHistory fetches execution statistics for a normalized query
// hash over the trailing window. ok is false when the telemetry view
// has no data or the probe fails.
func (a *Analyzer) QueryHistory(ctx context.Context, normalizedHash string, days int) (HistoryStats, bool) {
	if normalizedHash == "" {
		return HistoryStats{}, false
	}
	if days <= 0 {
		days = 7
	}

	outcome := a.exec.Execute(ctx, historySQL, normalizedHash, days)
	if outcome.Err != nil || len(outcome.Rows) == 0 || len(outcome.Rows[0]) < 5 {
		return HistoryStats{}, false
	}

	row := outcome.Rows[0]
	stats := HistoryStats{
		ExecutionCount: asInt64(row[0]),
		AvgDurationMs:  asFloat64(row[1]),
		MaxDurationMs:  asFloat64(row[2]),
		MinDurationMs:  asFloat64(row[3]),
		P95DurationMs:  asFloat64(row[4]),
	}
	if stats.ExecutionCount == 0 {
		return HistoryStats{}, false
	}

	stats.Stability = "stable"
	if stats.AvgDurationMs > 0 && stats.MaxDurationMs/stats.AvgDurationMs >= 2 {
		stats.Stability = "unstable"
	}
	return stats, true
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case uint64:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
