// Package collector pulls slow-query telemetry from system.query_log,
// persists it without duplication, and opens triage cases for unseen
// slow queries. Retry lives entirely in the executor; a failed
// collection query is reported as an error count, never raised.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clicktriage/clicktriage/internal/executor"
	"github.com/clicktriage/clicktriage/internal/models"
)

// QueryExecutor is the slice of the executor contract the collector
// consumes.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, args ...any) executor.Outcome
}

// RecordStore persists query execution records. UpsertByQueryID reports
// whether the record was newly created.
type RecordStore interface {
	UpsertByQueryID(ctx context.Context, rec *models.QueryExecutionRecord) (created bool, saved *models.QueryExecutionRecord, err error)
}

// CaseStore opens triage cases. EnsureForRecord is idempotent per
// record and reports whether a case was newly created.
type CaseStore interface {
	EnsureForRecord(ctx context.Context, recordID int64) (created bool, err error)
}

// Config holds one collection run's parameters.
type Config struct {
	Instance        string
	Lookback        time.Duration
	SlowThresholdMs float64
	MaxRows         int
	DryRun          bool
}

// Stats summarizes one collection run.
type Stats struct {
	RunID     string
	TotalSeen int
	SlowFound int
	NewCases  int
	Errors    int
}

// Collector turns raw telemetry rows into persisted records and cases.
type Collector struct {
	cfg     Config
	exec    QueryExecutor
	records RecordStore
	cases   CaseStore
	log     *zap.Logger
	loc     *time.Location
}

// New creates a Collector. Timestamps lacking an explicit zone are
// normalized into loc; pass nil for UTC.
func New(cfg Config, exec QueryExecutor, records RecordStore, cases CaseStore, log *zap.Logger, loc *time.Location) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 1000
	}
	return &Collector{cfg: cfg, exec: exec, records: records, cases: cases, log: log, loc: loc}
}

// Collect runs one collection cycle. Per-row failures increment the
// error counter and the batch continues; nothing is raised.
func (c *Collector) Collect(ctx context.Context) Stats {
	stats := Stats{RunID: uuid.NewString()}
	lookbackSec := int64(c.cfg.Lookback.Seconds())

	c.log.Info("starting collection",
		zap.String("run_id", stats.RunID),
		zap.String("instance", c.cfg.Instance),
		zap.Duration("lookback", c.cfg.Lookback),
		zap.Float64("threshold_ms", c.cfg.SlowThresholdMs),
		zap.Bool("dry_run", c.cfg.DryRun))

	stats.TotalSeen = c.countWindow(ctx, lookbackSec, &stats)

	outcome := c.exec.Execute(ctx, slowQuerySQL, c.cfg.SlowThresholdMs, lookbackSec, c.cfg.MaxRows)
	if outcome.Err != nil {
		c.log.Error("slow query collection failed",
			zap.String("run_id", stats.RunID), zap.Error(outcome.Err))
		stats.Errors++
		return stats
	}

	if err := validateColumns(outcome.Columns); err != nil {
		c.log.Error("telemetry column contract violated",
			zap.String("run_id", stats.RunID), zap.Error(err))
		stats.Errors++
		return stats
	}

	for _, row := range outcome.Rows {
		rec, err := c.decodeRow(row)
		if err != nil {
			c.log.Warn("discarding telemetry row",
				zap.String("run_id", stats.RunID), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.SlowFound++

		if c.cfg.DryRun {
			continue
		}

		created, saved, err := c.records.UpsertByQueryID(ctx, rec)
		if err != nil {
			c.log.Warn("failed to persist record",
				zap.String("query_id", rec.QueryID), zap.Error(err))
			stats.Errors++
			continue
		}

		if created && saved.IsSlow {
			caseCreated, err := c.cases.EnsureForRecord(ctx, saved.ID)
			if err != nil {
				c.log.Warn("failed to open triage case",
					zap.Int64("record_id", saved.ID), zap.Error(err))
				stats.Errors++
				continue
			}
			if caseCreated {
				stats.NewCases++
			}
		}
	}

	c.log.Info("collection finished",
		zap.String("run_id", stats.RunID),
		zap.Int("total_seen", stats.TotalSeen),
		zap.Int("slow_found", stats.SlowFound),
		zap.Int("new_cases", stats.NewCases),
		zap.Int("errors", stats.Errors))

	return stats
}

func (c *Collector) countWindow(ctx context.Context, lookbackSec int64, stats *Stats) int {
	outcome := c.exec.Execute(ctx, windowStatsSQL, lookbackSec)
	if outcome.Err != nil {
		c.log.Warn("window stats query failed", zap.Error(outcome.Err))
		stats.Errors++
		return 0
	}
	if len(outcome.Rows) == 0 || len(outcome.Rows[0]) == 0 {
		return 0
	}
	return int(asInt64(outcome.Rows[0][0]))
}

func validateColumns(cols []string) error {
	if len(cols) != len(telemetryColumns) {
		return fmt.Errorf("expected %d telemetry columns, got %d", len(telemetryColumns), len(cols))
	}
	for i, want := range telemetryColumns {
		if cols[i] != want {
			return fmt.Errorf("telemetry column %d: expected %q, got %q", i, want, cols[i])
		}
	}
	return nil
}

// decodeRow maps one validated telemetry row into a record. The row is
// discarded when its start timestamp cannot be normalized.
func (c *Collector) decodeRow(row []any) (*models.QueryExecutionRecord, error) {
	if len(row) != len(telemetryColumns) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(telemetryColumns), len(row))
	}

	queryID := asString(row[0])
	queryText := asString(row[1])
	if queryID == "" || queryText == "" {
		return nil, fmt.Errorf("row has empty query_id or query text")
	}

	startTime, err := c.normalizeTimestamp(row[2])
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", queryID, err)
	}

	return &models.QueryExecutionRecord{
		QueryID:             queryID,
		Instance:            c.cfg.Instance,
		QueryText:           queryText,
		NormalizedQueryHash: asString(row[12]),
		User:                asString(row[7]),
		ClientName:          asString(row[8]),
		DurationMs:          asFloat64(row[3]),
		ReadRows:            asInt64(row[4]),
		ReadBytes:           asInt64(row[5]),
		MemoryUsage:         asInt64(row[6]),
		QueryStartTime:      startTime,
		IsSlow:              true,
		IsInitial:           true,
	}, nil
}

// normalizeTimestamp accepts driver-provided time.Time values and
// zone-less string timestamps, always returning an explicitly zoned
// time. Anything else is a mapping error.
func (c *Collector) normalizeTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("zero start timestamp")
		}
		return t.In(c.loc), nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999"} {
			if parsed, err := time.ParseInLocation(layout, t, c.loc); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable start timestamp %q", t)
	}
	return time.Time{}, fmt.Errorf("unsupported start timestamp type %T", v)
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
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

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
