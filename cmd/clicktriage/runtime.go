package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clicktriage/clicktriage/internal/executor"
	"github.com/clicktriage/clicktriage/internal/store"
	"github.com/clicktriage/clicktriage/pkg/config"
)

// applyFileConfig overlays a .clicktriage.yaml onto cfg. Values from
// flags the user set explicitly always win over file values, so an
// invalid file field is only an error when no flag overrides it.
func applyFileConfig(cmd *cobra.Command, cfg *config.Config, configPath string) error {
	var fc *config.FileConfig
	var err error
	if configPath != "" {
		fc, err = config.LoadFile(configPath)
	} else {
		fc, _, err = config.AutoLoadFile()
	}
	if err != nil {
		return err
	}
	if fc == nil {
		return nil
	}

	flags := cmd.Flags()

	if !flags.Changed("clickhouse-dsn") {
		if endpoint := fc.ClickHouseEndpoint(); endpoint != "" {
			cfg.ClickHouseDSN = endpoint
		}
	}
	if !flags.Changed("instance") && fc.Instance != "" {
		cfg.Instance = fc.Instance
	}
	if !flags.Changed("db") && fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if !flags.Changed("threshold") && fc.SlowThresholdMs != nil {
		cfg.SlowThresholdMs = *fc.SlowThresholdMs
	}
	if !flags.Changed("max-rows") && fc.MaxRows != nil {
		cfg.MaxRows = *fc.MaxRows
	}
	if !flags.Changed("scoring") && fc.Scoring != "" {
		cfg.Scoring = fc.Scoring
	}
	if !flags.Changed("default-database") && fc.DefaultDatabase != "" {
		cfg.DefaultDatabase = fc.DefaultDatabase
	}
	if len(fc.ExcludeTables) > 0 {
		cfg.ExcludeTables = fc.ExcludeTables
	}
	if len(fc.ExcludeDatabases) > 0 {
		cfg.ExcludeDatabases = fc.ExcludeDatabases
	}

	if !flags.Changed("lookback") && fc.Lookback != "" {
		d, err := config.ParseDuration(fc.Lookback)
		if err != nil {
			return fmt.Errorf("invalid lookback in config file: %w", err)
		}
		cfg.Lookback = d
	}
	if !flags.Changed("interval") && fc.Interval != "" {
		d, err := config.ParseDuration(fc.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval in config file: %w", err)
		}
		cfg.Interval = d
	}
	if !flags.Changed("query-timeout") {
		if timeout := fc.QueryTimeoutValue(); timeout != "" {
			d, err := config.ParseDuration(timeout)
			if err != nil {
				return fmt.Errorf("invalid timeout in config file: %w", err)
			}
			cfg.QueryTimeout = d
		}
	}

	cfg.Normalize()
	return nil
}

// requireDSN validates that a ClickHouse endpoint was provided by flag
// or config file.
func requireDSN(cfg *config.Config) error {
	if cfg.ClickHouseDSN == "" {
		return fmt.Errorf("--clickhouse-dsn is required")
	}
	return nil
}

func newExecutor(cfg *config.Config) *executor.Executor {
	return executor.New(executor.Config{
		DSN:        cfg.ClickHouseDSN,
		Instance:   cfg.Instance,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, log)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return store.New(db), nil
}

// maskDSN masks sensitive information in DSN
func maskDSN(dsn string) string {
	// Simple masking - just show protocol and host
	if len(dsn) > 20 {
		return dsn[:20] + "...***"
	}
	return "***"
}
