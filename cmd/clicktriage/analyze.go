package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clicktriage/clicktriage/internal/advisor"
	"github.com/clicktriage/clicktriage/internal/analyzer"
	"github.com/clicktriage/clicktriage/internal/baseline"
	"github.com/clicktriage/clicktriage/internal/models"
	"github.com/clicktriage/clicktriage/internal/reporter"
	"github.com/clicktriage/clicktriage/internal/store"
	"github.com/clicktriage/clicktriage/pkg/config"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	var configPath string
	var maxAgeStr string
	var queryID string
	var sqlText string
	var limit int
	var force bool
	var historyDays int
	var outputDir string
	var format string
	var baselinePath string
	var updateBaseline bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze stored slow queries with EXPLAIN",
		Long: `Analyze probes ClickHouse EXPLAIN output for stored slow queries,
derives a complexity score with warnings and recommendations, and
persists the result. Pass --sql to analyze an ad-hoc statement without
touching the store.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyFileConfig(cmd, cfg, configPath); err != nil {
				return err
			}

			if maxAgeStr != "" {
				d, err := config.ParseDuration(maxAgeStr)
				if err != nil {
					return fmt.Errorf("invalid --max-age duration: %w", err)
				}
				cfg.AnalysisMaxAge = d
			}
			if cfg.Scoring != "plan" && cfg.Scoring != "text" {
				return fmt.Errorf("invalid --scoring value %q (plan, text)", cfg.Scoring)
			}
			if format != "json" && format != "text" {
				return fmt.Errorf("invalid --format value %q (json, text)", format)
			}

			return requireDSN(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := analyzeOptions{
				queryID:        queryID,
				sqlText:        sqlText,
				limit:          limit,
				force:          force,
				historyDays:    historyDays,
				outputDir:      outputDir,
				format:         format,
				baselinePath:   baselinePath,
				updateBaseline: updateBaseline,
			}
			return runAnalyze(cfg, opts)
		},
	}

	cmd.Flags().StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", "", "ClickHouse DSN (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: .clicktriage.yaml)")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the local sqlite store")
	cmd.Flags().StringVar(&queryID, "query-id", "", "Analyze one stored query by its query_id")
	cmd.Flags().StringVar(&sqlText, "sql", "", "Analyze an ad-hoc SQL statement (no persistence)")
	cmd.Flags().IntVar(&limit, "limit", 10, "How many of the slowest stored queries to analyze")
	cmd.Flags().BoolVar(&force, "force", false, "Re-analyze even when a fresh result exists")
	cmd.Flags().StringVar(&maxAgeStr, "max-age", "", "Reuse stored results younger than this (e.g., 1h)")
	cmd.Flags().StringVar(&cfg.Scoring, "scoring", cfg.Scoring, "Scoring strategy (plan, text)")
	cmd.Flags().StringVar(&cfg.DefaultDatabase, "default-database", cfg.DefaultDatabase, "Database for unqualified table names")
	cmd.Flags().IntVar(&historyDays, "history-days", 7, "Trailing window for execution history")
	cmd.Flags().StringVar(&outputDir, "output", "", "Write a report into this directory")
	cmd.Flags().StringVar(&format, "format", "json", "Report format (json, text)")
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "Suppress findings listed in this baseline file")
	cmd.Flags().BoolVar(&updateBaseline, "update-baseline", false, "Record current findings in the baseline file")

	return cmd
}

type analyzeOptions struct {
	queryID        string
	sqlText        string
	limit          int
	force          bool
	historyDays    int
	outputDir      string
	format         string
	baselinePath   string
	updateBaseline bool
}

// runAnalyze executes the analysis workflow
func runAnalyze(cfg *config.Config, opts analyzeOptions) error {
	ctx := context.Background()

	exec := newExecutor(cfg)
	defer exec.Close()

	fmt.Println("Connecting to ClickHouse...")
	if err := exec.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", maskDSN(cfg.ClickHouseDSN), err)
	}

	var st *store.Store
	if opts.sqlText == "" {
		var err error
		st, err = openStore(cfg)
		if err != nil {
			return err
		}
	}

	var profiles analyzer.ProfileStore
	if st != nil {
		profiles = st.Profiles
	}
	an := analyzer.New(analyzer.Config{
		DefaultDatabase: cfg.DefaultDatabase,
		Scoring:         cfg.Scoring,
		TableStatsRate:  cfg.TableStatsRate,
		Exclude:         cfg.IsTableExcluded,
	}, exec, profiles, log)

	report := &reporter.Report{
		Tool: "clicktriage",
		Metadata: reporter.Metadata{
			GeneratedAt:     time.Now(),
			Instance:        cfg.Instance,
			Version:         version,
			ScoringStrategy: cfg.Scoring,
		},
	}

	if opts.sqlText != "" {
		result := an.Analyze(ctx, opts.sqlText)
		advice := advisor.Advise(opts.sqlText)
		printAnalysis("(ad-hoc)", opts.sqlText, result)
		printAdvice(opts.sqlText, advice)
		report.Entries = append(report.Entries, reportEntry("(ad-hoc)", opts.sqlText, 0, result, advice))
	} else {
		records, err := selectRecords(ctx, st, opts.queryID, opts.limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No stored slow queries to analyze. Run collect first.")
			return nil
		}

		for _, rec := range records {
			result, cached, err := analyzeRecord(ctx, st, an, rec, cfg.AnalysisMaxAge, opts.force)
			if err != nil {
				return err
			}

			label := rec.QueryID
			if cached {
				label += " (cached)"
			}
			printAnalysis(label, rec.QueryText, result)

			advice := advisor.Advise(rec.QueryText)
			printAdvice(rec.QueryText, advice)

			if stats, ok := an.QueryHistory(ctx, rec.NormalizedQueryHash, opts.historyDays); ok {
				fmt.Printf("  History: %d runs, avg %.0fms, p95 %.0fms, max %.0fms (%s)\n",
					stats.ExecutionCount, stats.AvgDurationMs, stats.P95DurationMs,
					stats.MaxDurationMs, stats.Stability)
			}

			report.Entries = append(report.Entries,
				reportEntry(rec.QueryID, rec.QueryText, rec.DurationMs, result, advice))
		}
	}

	report.Metadata.QueriesAnalyzed = len(report.Entries)

	findings, err := applyBaseline(report, opts.baselinePath, opts.updateBaseline)
	if err != nil {
		return err
	}

	if opts.outputDir != "" {
		rep, err := reporter.New(opts.outputDir, opts.format)
		if err != nil {
			return err
		}
		if err := rep.Generate(report); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		fmt.Printf("✓ Report written to: %s\n", opts.outputDir)
	}

	fmt.Printf("\n✓ Analyzed %d queries\n", report.Metadata.QueriesAnalyzed)
	if findings > 0 {
		return &FindingsError{Count: findings}
	}
	return nil
}

// applyBaseline suppresses known findings and optionally records the
// current ones. It returns the remaining finding count.
func applyBaseline(report *reporter.Report, path string, update bool) (int, error) {
	if path == "" && update {
		path = baseline.DefaultPath
	}
	if path == "" {
		report.Metadata.FindingCount = reporter.CountFindings(report)
		return report.Metadata.FindingCount, nil
	}

	known, err := baseline.Load(path)
	if err != nil {
		return 0, err
	}

	if update {
		baseline.AddAll(known, baseline.CollectFingerprints(report))
		if err := baseline.Save(path, known); err != nil {
			return 0, err
		}
	}

	suppressed, remaining := baseline.SuppressKnown(report, known)
	if suppressed > 0 {
		fmt.Printf("  Suppressed %d baseline findings\n", suppressed)
	}
	return remaining, nil
}

func reportEntry(queryID, sqlText string, durationMs float64, result *models.AnalysisResult, advice advisor.Report) reporter.Entry {
	return reporter.Entry{
		QueryID:         queryID,
		SQL:             sqlText,
		DurationMs:      durationMs,
		ComplexityScore: result.ComplexityScore,
		HasFullScan:     result.HasFullScan,
		Warnings:        result.Warnings,
		Recommendations: append(append([]string{}, result.Recommendations...), advice.Recommendations...),
		Patterns:        advice.DetectedPatterns,
	}
}

func selectRecords(ctx context.Context, st *store.Store, queryID string, limit int) ([]*models.QueryExecutionRecord, error) {
	if queryID != "" {
		rec, err := st.Records.FindByQueryID(ctx, queryID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("query %q not found in the local store", queryID)
		}
		return []*models.QueryExecutionRecord{rec}, nil
	}
	return st.Records.FindSlowest(ctx, limit)
}

// analyzeRecord reuses a stored result when it is fresh enough,
// otherwise runs a new analysis and persists it.
func analyzeRecord(ctx context.Context, st *store.Store, an *analyzer.Analyzer, rec *models.QueryExecutionRecord, maxAge time.Duration, force bool) (*models.AnalysisResult, bool, error) {
	if !force {
		existing, err := st.Analyses.FindForRecord(ctx, rec.ID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil && maxAge > 0 && time.Since(existing.AnalyzedAt) < maxAge {
			return existing, true, nil
		}
	}

	result := an.Analyze(ctx, rec.QueryText)
	result.RecordID = rec.ID

	current, _, err := st.Analyses.ReplaceForRecord(ctx, result, 0, true)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func printAnalysis(label, sqlText string, result *models.AnalysisResult) {
	fmt.Printf("\n━━ %s\n", label)
	fmt.Printf("  %s\n", truncateSQL(sqlText, 120))
	fmt.Printf("  Complexity score: %d/100\n", result.ComplexityScore)

	if result.HasFullScan || result.HasSorting || result.HasAggregation {
		fmt.Printf("  Plan: full_scan=%v sorting=%v aggregation=%v pipeline_steps=%d\n",
			result.HasFullScan, result.HasSorting, result.HasAggregation, result.PipelineComplexity)
	}

	for _, w := range result.Warnings {
		fmt.Printf("  [%s] %s: %s\n", w.Priority, w.Type, w.Message)
	}
	for _, rec := range result.Recommendations {
		fmt.Printf("  → %s\n", rec)
	}
}

func printAdvice(sqlText string, report advisor.Report) {
	if report.Summary.TotalPatterns == 0 {
		return
	}

	fmt.Printf("  Patterns: %d (critical %d, high %d, medium %d)\n",
		report.Summary.TotalPatterns, report.Summary.CriticalCount,
		report.Summary.HighCount, report.Summary.MediumCount)
	for _, p := range report.DetectedPatterns {
		fmt.Printf("  [%s] %s\n", p.Priority, p.Label)
	}

	if optimized := advisor.OptimizedTemplate(sqlText, report.DetectedPatterns); optimized != sqlText {
		fmt.Printf("  Suggested rewrite: %s\n", truncateSQL(optimized, 120))
	}
}

func truncateSQL(sqlText string, max int) string {
	if len(sqlText) <= max {
		return sqlText
	}
	return sqlText[:max] + "..."
}
