// Package analyzer derives structural features and a complexity score
// for one SQL statement by probing ClickHouse EXPLAIN output and
// system.tables. Analysis never propagates a failure to its caller:
// every error path produces an AnalysisResult.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clicktriage/clicktriage/internal/executor"
	"github.com/clicktriage/clicktriage/internal/models"
)

// RuleSetVersion tags every result with the analysis rule generation.
const RuleSetVersion = "2.1"

// QueryExecutor is the slice of the executor contract the analyzer
// consumes.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, args ...any) executor.Outcome
}

// ProfileStore persists aggregated table knowledge. Both operations are
// idempotent upserts, safe under overlapping analysis runs.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, profile *models.TableProfile) (*models.TableProfile, error)
	UpsertIndexRecommendation(ctx context.Context, rec *models.IndexRecommendation) error
}

// Config holds analyzer settings.
type Config struct {
	DefaultDatabase string
	Scoring         string  // "plan" or "text"
	TableStatsRate  float64 // system.tables lookups per second, 0 = unlimited

	// Exclude filters referenced tables out of stats and profile
	// refresh. Receives the db-qualified name; nil excludes nothing.
	Exclude func(table string) bool
}

// Analyzer runs EXPLAIN-based analysis over a single executor
// connection. Concurrent analyses need separate Analyzer instances.
type Analyzer struct {
	cfg      Config
	exec     QueryExecutor
	profiles ProfileStore
	scorer   Scorer
	limiter  *rate.Limiter
	log      *zap.Logger
}

// New creates an Analyzer. profiles may be nil; table knowledge is then
// derived but not persisted.
func New(cfg Config, exec QueryExecutor, profiles ProfileStore, log *zap.Logger) *Analyzer {
	if cfg.DefaultDatabase == "" {
		cfg.DefaultDatabase = "default"
	}
	if log == nil {
		log = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.TableStatsRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.TableStatsRate), 1)
	}

	return &Analyzer{
		cfg:      cfg,
		exec:     exec,
		profiles: profiles,
		scorer:   NewScorer(cfg.Scoring),
		limiter:  limiter,
		log:      log,
	}
}

// Analyze inspects one SQL statement and returns a complete result.
// Any panic is converted into a single critical warning with all
// feature fields zeroed.
func (a *Analyzer) Analyze(ctx context.Context, sqlText string) (result *models.AnalysisResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("analysis panicked", zap.Any("panic", r))
			result = &models.AnalysisResult{
				TableStats: map[string]models.TableStats{},
				Warnings: []models.Warning{{
					Type:     "analysis_error",
					Message:  fmt.Sprintf("analysis failed: %v", r),
					Priority: models.PriorityCritical,
				}},
				AnalyzedAt:     time.Now(),
				RuleSetVersion: RuleSetVersion,
			}
		}
		result.AnalysisDurationMs = float64(time.Since(start)) / float64(time.Millisecond)
	}()

	sqlText = stripTerminator(sqlText)

	result = &models.AnalysisResult{
		TableStats:     map[string]models.TableStats{},
		AnalyzedAt:     time.Now(),
		RuleSetVersion: RuleSetVersion,
	}

	// Each EXPLAIN shape is an independent capability probe.
	structural := a.explainLines(ctx, explainIndexes, sqlText)
	planLines := a.explainLines(ctx, explainPlan, sqlText)
	pipeline := a.explainLines(ctx, explainPipeline, sqlText)

	result.ExplainPlan = append(append([]string{}, structural...), planLines...)
	result.ExplainPipeline = pipeline

	result.HasFullScan = detectFullScan(structural)
	result.HasSorting = hasMarker("Sort", structural, planLines)
	result.HasAggregation = hasMarker("Aggregating", structural, planLines)
	result.PipelineComplexity = len(pipeline)

	a.planFindings(result)
	a.tableFindings(ctx, sqlText, result)
	a.textFindings(sqlText, result)

	result.ComplexityScore = a.scorer.Score(sqlText, result)

	return result
}

// planFindings turns EXPLAIN-derived features into warnings and
// recommendations.
func (a *Analyzer) planFindings(result *models.AnalysisResult) {
	if result.HasFullScan {
		a.warn(result, "full_scan", "full table scan detected", models.PriorityHigh)
		a.recommend(result, "Add indexes on the columns used in WHERE conditions")
	}
	if result.HasSorting {
		a.warn(result, "sorting", "explicit sort operation detected", models.PriorityMedium)
		a.recommend(result, "Use a sorting key that matches the ORDER BY to avoid explicit sorting")
	}
	if result.PipelineComplexity > 10 {
		a.warn(result, "complex_pipeline",
			fmt.Sprintf("complex execution pipeline (%d steps)", result.PipelineComplexity),
			models.PriorityMedium)
	}
}

// tableFindings resolves referenced tables, refreshes their profiles,
// and derives size/engine recommendations.
func (a *Analyzer) tableFindings(ctx context.Context, sqlText string, result *models.AnalysisResult) {
	tables := ExtractTables(sqlText)

	for _, ref := range tables {
		if a.cfg.Exclude != nil && a.cfg.Exclude(a.qualify(ref)) {
			continue
		}
		stats, ok := a.tableStats(ctx, ref)
		if !ok {
			continue
		}
		result.TableStats[ref] = stats

		if stats.TotalBytes > gib {
			a.warn(result, "large_table",
				fmt.Sprintf("large table %s: %.1f GB", ref, float64(stats.TotalBytes)/float64(gib)),
				models.PriorityInfo)
		}

		if strings.Contains(stats.Engine, "MergeTree") {
			if stats.PartitionKey == "" {
				a.recommend(result, fmt.Sprintf("Consider partitioning table %s", ref))
			}
			if stats.SortingKey == "" {
				a.recommend(result, fmt.Sprintf("Consider adding a sorting key to table %s", ref))
			}
		}

		a.refreshProfile(ctx, sqlText, ref, stats, result)
	}
}

// refreshProfile upserts the table profile and, on a full scan, emits
// skip-index recommendations for WHERE columns.
func (a *Analyzer) refreshProfile(ctx context.Context, sqlText, ref string, stats models.TableStats, result *models.AnalysisResult) {
	if a.profiles == nil {
		return
	}

	profile, err := a.profiles.UpsertProfile(ctx, &models.TableProfile{
		TableName:    stats.Name,
		Database:     stats.Database,
		TotalRows:    stats.TotalRows,
		TotalBytes:   stats.TotalBytes,
		Engine:       stats.Engine,
		PartitionKey: stats.PartitionKey,
		SortingKey:   stats.SortingKey,
	})
	if err != nil {
		a.log.Warn("failed to refresh table profile", zap.String("table", ref), zap.Error(err))
		return
	}

	if !result.HasFullScan {
		return
	}

	for _, column := range ExtractWhereColumns(sqlText) {
		rec := &models.IndexRecommendation{
			ProfileID:           profile.ID,
			ColumnName:          column,
			Kind:                models.KindSkipIndex,
			Reason:              "full table scan with this column in WHERE conditions",
			ExpectedImprovement: 70.0,
			Source:              models.SourceExplain,
		}
		if err := a.profiles.UpsertIndexRecommendation(ctx, rec); err != nil {
			a.log.Warn("failed to save index recommendation",
				zap.String("table", ref), zap.String("column", column), zap.Error(err))
		}
	}
}

// textFindings runs the static SQL-text checks that need no EXPLAIN
// support.
func (a *Analyzer) textFindings(sqlText string, result *models.AnalysisResult) {
	upper := strings.ToUpper(sqlText)

	if strings.Contains(upper, "SELECT *") {
		a.warn(result, "select_all", "wildcard column selection (SELECT *)", models.PriorityMedium)
		a.recommend(result, "Select specific columns instead of SELECT *")
	}

	if strings.Contains(upper, "LIMIT") && !strings.Contains(upper, "ORDER BY") {
		a.warn(result, "limit_no_order",
			"LIMIT without ORDER BY yields a non-deterministic result set",
			models.PriorityLow)
	}
}

// qualify prefixes bare table references with the default database.
func (a *Analyzer) qualify(ref string) string {
	database, table := splitTableRef(ref, a.cfg.DefaultDatabase)
	return database + "." + table
}

func (a *Analyzer) warn(result *models.AnalysisResult, typ, message string, priority models.WarningPriority) {
	result.Warnings = append(result.Warnings, models.Warning{
		Type:     typ,
		Message:  message,
		Priority: priority,
	})
}

func (a *Analyzer) recommend(result *models.AnalysisResult, text string) {
	for _, existing := range result.Recommendations {
		if existing == text {
			return
		}
	}
	result.Recommendations = append(result.Recommendations, text)
}
