package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".clicktriage.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".clicktriage.yml"
)

// FileConfig represents values loaded from a .clicktriage.yaml file.
type FileConfig struct {
	ClickHouseURL    string   `yaml:"clickhouse_url"`
	ClickHouseDSN    string   `yaml:"clickhouse_dsn"`
	Instance         string   `yaml:"instance"`
	DBPath           string   `yaml:"db_path"`
	Lookback         string   `yaml:"lookback"`
	SlowThresholdMs  *float64 `yaml:"slow_threshold_ms"`
	MaxRows          *int     `yaml:"max_rows"`
	Interval         string   `yaml:"interval"`
	Scoring          string   `yaml:"scoring"`
	DefaultDatabase  string   `yaml:"default_database"`
	ExcludeTables    []string `yaml:"exclude_tables"`
	ExcludeDatabases []string `yaml:"exclude_databases"`
	Timeout          string   `yaml:"timeout"`
	QueryTimeout     string   `yaml:"query_timeout"`
}

// ClickHouseEndpoint returns the first configured ClickHouse endpoint.
func (fc *FileConfig) ClickHouseEndpoint() string {
	if fc == nil {
		return ""
	}
	if dsn := strings.TrimSpace(fc.ClickHouseDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(fc.ClickHouseURL)
}

// QueryTimeoutValue returns timeout from timeout/query_timeout fields.
func (fc *FileConfig) QueryTimeoutValue() string {
	if fc == nil {
		return ""
	}
	if timeout := strings.TrimSpace(fc.Timeout); timeout != "" {
		return timeout
	}
	return strings.TrimSpace(fc.QueryTimeout)
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.ExcludeTables = normalizeList(fc.ExcludeTables)
	fc.ExcludeDatabases = normalizeList(fc.ExcludeDatabases)
	fc.ClickHouseURL = strings.TrimSpace(fc.ClickHouseURL)
	fc.ClickHouseDSN = strings.TrimSpace(fc.ClickHouseDSN)
	fc.Instance = strings.TrimSpace(fc.Instance)
	fc.DBPath = strings.TrimSpace(fc.DBPath)
	fc.Lookback = strings.TrimSpace(fc.Lookback)
	fc.Interval = strings.TrimSpace(fc.Interval)
	fc.Scoring = strings.TrimSpace(fc.Scoring)
	fc.DefaultDatabase = strings.TrimSpace(fc.DefaultDatabase)
	fc.Timeout = strings.TrimSpace(fc.Timeout)
	fc.QueryTimeout = strings.TrimSpace(fc.QueryTimeout)
}

// ApplyTo overlays file values onto cfg. Empty file fields leave the
// corresponding cfg values untouched.
func (fc *FileConfig) ApplyTo(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}

	if endpoint := fc.ClickHouseEndpoint(); endpoint != "" {
		cfg.ClickHouseDSN = endpoint
	}
	if fc.Instance != "" {
		cfg.Instance = fc.Instance
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.SlowThresholdMs != nil {
		cfg.SlowThresholdMs = *fc.SlowThresholdMs
	}
	if fc.MaxRows != nil {
		cfg.MaxRows = *fc.MaxRows
	}
	if fc.Scoring != "" {
		cfg.Scoring = fc.Scoring
	}
	if fc.DefaultDatabase != "" {
		cfg.DefaultDatabase = fc.DefaultDatabase
	}
	if len(fc.ExcludeTables) > 0 {
		cfg.ExcludeTables = fc.ExcludeTables
	}
	if len(fc.ExcludeDatabases) > 0 {
		cfg.ExcludeDatabases = fc.ExcludeDatabases
	}

	if fc.Lookback != "" {
		d, err := ParseDuration(fc.Lookback)
		if err != nil {
			return fmt.Errorf("invalid lookback: %w", err)
		}
		cfg.Lookback = d
	}
	if fc.Interval != "" {
		d, err := ParseDuration(fc.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval: %w", err)
		}
		cfg.Interval = d
	}
	if timeout := fc.QueryTimeoutValue(); timeout != "" {
		d, err := ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		cfg.QueryTimeout = d
	}

	cfg.Normalize()
	return nil
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
