package collector

// telemetryColumns is the fixed column contract with system.query_log.
// Decoding validates count and names before mapping; any drift from this
// order is a mapping error, not a silent misalignment.
var telemetryColumns = []string{
	"query_id",
	"query",
	"query_start_time",
	"query_duration_ms",
	"read_rows",
	"read_bytes",
	"memory_usage",
	"user",
	"client_name",
	"databases",
	"tables",
	"columns",
	"normalized_query_hash",
}

// slowQuerySQL bounds the telemetry pull to completed top-level
// executions above the threshold inside the lookback window. Telemetry
// about the telemetry view itself is excluded to avoid recursion.
const slowQuerySQL = `
SELECT
    query_id,
    query,
    query_start_time,
    query_duration_ms,
    read_rows,
    read_bytes,
    memory_usage,
    user,
    client_name,
    databases,
    tables,
    columns,
    toString(normalized_query_hash) AS normalized_query_hash
FROM system.query_log
WHERE query_duration_ms > ?
  AND event_time > now() - INTERVAL ? SECOND
  AND type = 'QueryFinish'
  AND is_initial_query = 1
  AND query NOT LIKE '%system.query_log%'
ORDER BY query_duration_ms DESC
LIMIT ?
`

// windowStatsSQL counts all finished top-level executions in the same
// window, regardless of duration.
const windowStatsSQL = `
SELECT count() AS total
FROM system.query_log
WHERE event_time > now() - INTERVAL ? SECOND
  AND type = 'QueryFinish'
  AND is_initial_query = 1
  AND query NOT LIKE '%system.query_log%'
`
