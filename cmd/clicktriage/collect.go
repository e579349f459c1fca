package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clicktriage/clicktriage/internal/collector"
	"github.com/clicktriage/clicktriage/pkg/config"
)

// NewCollectCmd creates the collect command
func NewCollectCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	var configPath string
	var lookbackStr string
	var queryTimeoutStr string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect slow queries from system.query_log",
		Long: `Collect pulls slow queries from the ClickHouse query log, stores
them locally without duplication, and opens a triage case for every
slow query seen for the first time.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyFileConfig(cmd, cfg, configPath); err != nil {
				return err
			}

			var err error
			if lookbackStr != "" {
				cfg.Lookback, err = config.ParseDuration(lookbackStr)
				if err != nil {
					return fmt.Errorf("invalid --lookback duration: %w", err)
				}
			}
			if queryTimeoutStr != "" {
				cfg.QueryTimeout, err = config.ParseDuration(queryTimeoutStr)
				if err != nil {
					return fmt.Errorf("invalid --query-timeout duration: %w", err)
				}
			}

			return requireDSN(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", "", "ClickHouse DSN (required)")
	cmd.Flags().StringVar(&cfg.Instance, "instance", "", "Instance label recorded with every query")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: .clicktriage.yaml)")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the local sqlite store")
	cmd.Flags().StringVar(&lookbackStr, "lookback", "", "Lookback window (e.g., 1h, 24h, 7d)")
	cmd.Flags().StringVar(&queryTimeoutStr, "query-timeout", "", "Query timeout (e.g., 5m, 10m)")
	cmd.Flags().Float64Var(&cfg.SlowThresholdMs, "threshold", cfg.SlowThresholdMs, "Slow query threshold in milliseconds")
	cmd.Flags().IntVar(&cfg.MaxRows, "max-rows", cfg.MaxRows, "Max slow queries per run")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Dry run mode (don't persist anything)")

	return cmd
}

// runCollect executes one collection cycle
func runCollect(cfg *config.Config) error {
	ctx := context.Background()
	if cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
	}

	exec := newExecutor(cfg)
	defer exec.Close()

	fmt.Println("Connecting to ClickHouse...")
	if err := exec.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", maskDSN(cfg.ClickHouseDSN), err)
	}
	info := exec.ServerInfo(ctx)
	fmt.Printf("✓ Connected to ClickHouse %s\n", info.Version)

	var records collector.RecordStore
	var cases collector.CaseStore
	if !cfg.DryRun {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		records, cases = st.Records, st.Cases
	}

	col := collector.New(collector.Config{
		Instance:        cfg.Instance,
		Lookback:        cfg.Lookback,
		SlowThresholdMs: cfg.SlowThresholdMs,
		MaxRows:         cfg.MaxRows,
		DryRun:          cfg.DryRun,
	}, exec, records, cases, log, nil)

	stats := col.Collect(ctx)

	fmt.Printf("✓ Queries in window: %d\n", stats.TotalSeen)
	fmt.Printf("✓ Slow queries found: %d\n", stats.SlowFound)
	fmt.Printf("✓ New triage cases: %d\n", stats.NewCases)
	if stats.Errors > 0 {
		fmt.Printf("⚠ Errors during run: %d\n", stats.Errors)
	}

	if stats.NewCases > 0 {
		return &FindingsError{Count: stats.NewCases}
	}
	return nil
}
