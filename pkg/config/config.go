package config

import "time"

// Config holds all runtime configuration
type Config struct {
	// ClickHouse settings
	ClickHouseDSN string
	Instance      string
	QueryTimeout  time.Duration
	MaxRetries    int
	RetryDelay    time.Duration

	// Local store settings
	DBPath string

	// Collection settings
	Lookback        time.Duration
	SlowThresholdMs float64
	MaxRows         int
	Interval        time.Duration

	// Analysis settings
	Scoring          string
	DefaultDatabase  string
	TableStatsRate   float64
	AnalysisMaxAge   time.Duration
	ExcludeTables    []string
	ExcludeDatabases []string

	// Operational flags
	Verbose bool
	DryRun  bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		QueryTimeout:     5 * time.Minute,
		MaxRetries:       3,
		RetryDelay:       time.Second,
		DBPath:           "clicktriage.db",
		Lookback:         24 * time.Hour,
		SlowThresholdMs:  1000,
		MaxRows:          1000,
		Interval:         5 * time.Minute,
		Scoring:          "plan",
		DefaultDatabase:  "default",
		TableStatsRate:   5,
		AnalysisMaxAge:   time.Hour,
		ExcludeTables:    []string{},
		ExcludeDatabases: []string{},
		Verbose:          false,
		DryRun:           false,
	}
}
