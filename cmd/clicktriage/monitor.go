package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clicktriage/clicktriage/internal/collector"
	"github.com/clicktriage/clicktriage/internal/scheduler"
	"github.com/clicktriage/clicktriage/pkg/config"
)

// NewMonitorCmd creates the monitor command
func NewMonitorCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	var configPath string
	var lookbackStr string
	var intervalStr string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Collect slow queries continuously at a fixed interval",
		Long: `Monitor runs the collection cycle repeatedly until interrupted.
Runs never overlap: a cycle that outlasts the interval delays the next
one instead of stacking.`,
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
			if intervalStr != "" {
				cfg.Interval, err = config.ParseDuration(intervalStr)
				if err != nil {
					return fmt.Errorf("invalid --interval duration: %w", err)
				}
			}
			if cfg.Interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", cfg.Interval)
			}

			return requireDSN(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", "", "ClickHouse DSN (required)")
	cmd.Flags().StringVar(&cfg.Instance, "instance", "", "Instance label recorded with every query")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: .clicktriage.yaml)")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the local sqlite store")
	cmd.Flags().StringVar(&lookbackStr, "lookback", "", "Lookback window per cycle (e.g., 10m, 1h)")
	cmd.Flags().StringVar(&intervalStr, "interval", "", "Collection interval (e.g., 30s, 5m)")
	cmd.Flags().Float64Var(&cfg.SlowThresholdMs, "threshold", cfg.SlowThresholdMs, "Slow query threshold in milliseconds")
	cmd.Flags().IntVar(&cfg.MaxRows, "max-rows", cfg.MaxRows, "Max slow queries per cycle")

	return cmd
}

// runMonitor starts the collection schedule and blocks until a signal
func runMonitor(cfg *config.Config) error {
	ctx := context.Background()

	exec := newExecutor(cfg)
	defer exec.Close()

	fmt.Println("Connecting to ClickHouse...")
	if err := exec.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", maskDSN(cfg.ClickHouseDSN), err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	col := collector.New(collector.Config{
		Instance:        cfg.Instance,
		Lookback:        cfg.Lookback,
		SlowThresholdMs: cfg.SlowThresholdMs,
		MaxRows:         cfg.MaxRows,
	}, exec, st.Records, st.Cases, log, nil)

	mon, err := scheduler.New(scheduler.Config{Interval: cfg.Interval}, col, log)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	fmt.Printf("Monitoring every %s. Press Ctrl+C to stop.\n", cfg.Interval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("\nStopping...")
	return mon.Shutdown()
}
