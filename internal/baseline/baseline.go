// Package baseline suppresses findings an operator has reviewed and
// accepted. A baseline file holds fingerprints of known findings;
// analysis runs filter those out so only new problems surface.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clicktriage/clicktriage/internal/advisor"
	"github.com/clicktriage/clicktriage/internal/models"
	"github.com/clicktriage/clicktriage/internal/reporter"
)

const (
	// DefaultPath is used when --update-baseline is enabled without an explicit --baseline path.
	DefaultPath = ".clicktriage-baseline.json"
	fileVersion = 1
)

// Set stores baseline fingerprints.
type Set map[string]struct{}

// File is the persisted baseline JSON payload.
type File struct {
	Version      int      `json:"version"`
	Fingerprints []string `json:"fingerprints"`
}

// Load reads a baseline file. Missing files return an empty set.
func Load(path string) (Set, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("baseline path is empty")
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse baseline file: %w", err)
	}
	if file.Version != 0 && file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported baseline version: %d", file.Version)
	}

	set := Set{}
	for _, fingerprint := range file.Fingerprints {
		if fingerprint == "" {
			continue
		}
		set[fingerprint] = struct{}{}
	}

	return set, nil
}

// Save writes a baseline file with sorted, unique fingerprints.
func Save(path string, set Set) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return errors.New("baseline path is empty")
	}

	dir := filepath.Dir(trimmed)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create baseline directory: %w", err)
		}
	}

	payload := File{
		Version:      fileVersion,
		Fingerprints: Sorted(set),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline file: %w", err)
	}

	if err := os.WriteFile(trimmed, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}

	return nil
}

// AddAll inserts fingerprints into the target set.
func AddAll(target Set, fingerprints []string) {
	for _, fingerprint := range fingerprints {
		if fingerprint == "" {
			continue
		}
		target[fingerprint] = struct{}{}
	}
}

// Sorted returns sorted fingerprints from a set.
func Sorted(set Set) []string {
	fingerprints := make([]string, 0, len(set))
	for fingerprint := range set {
		fingerprints = append(fingerprints, fingerprint)
	}
	sort.Strings(fingerprints)
	return fingerprints
}

// CollectFingerprints extracts fingerprints for all current findings in the report.
func CollectFingerprints(report *reporter.Report) []string {
	set := Set{}
	if report == nil {
		return []string{}
	}

	for _, entry := range report.Entries {
		for _, warning := range entry.Warnings {
			set[FingerprintWarning(entry.QueryID, warning)] = struct{}{}
		}
		for _, pattern := range entry.Patterns {
			set[FingerprintPattern(entry.QueryID, pattern)] = struct{}{}
		}
	}

	return Sorted(set)
}

// SuppressKnown removes findings already present in the baseline set.
// It returns how many were suppressed and the remaining finding count.
func SuppressKnown(report *reporter.Report, known Set) (suppressed int, remaining int) {
	if report == nil || len(known) == 0 {
		remaining = reporter.CountFindings(report)
		if report != nil {
			report.Metadata.FindingCount = remaining
		}
		return 0, remaining
	}

	for i := range report.Entries {
		entry := &report.Entries[i]
		entry.Warnings, suppressed = filterWarnings(entry.QueryID, entry.Warnings, known, suppressed)
		entry.Patterns, suppressed = filterPatterns(entry.QueryID, entry.Patterns, known, suppressed)
	}

	remaining = reporter.CountFindings(report)
	report.Metadata.FindingCount = remaining
	return suppressed, remaining
}

// FingerprintWarning returns a stable fingerprint for an analyzer warning.
func FingerprintWarning(queryID string, warning models.Warning) string {
	return hash("warning", queryID, warning.Type, string(warning.Priority))
}

// FingerprintPattern returns a stable fingerprint for an advisor pattern.
func FingerprintPattern(queryID string, pattern advisor.DetectedPattern) string {
	return hash("pattern", queryID, pattern.Key, string(pattern.Priority))
}

func filterWarnings(
	queryID string,
	warnings []models.Warning,
	known Set,
	suppressed int,
) ([]models.Warning, int) {
	filtered := make([]models.Warning, 0, len(warnings))
	for _, warning := range warnings {
		fingerprint := FingerprintWarning(queryID, warning)
		if _, exists := known[fingerprint]; exists {
			suppressed++
			continue
		}
		filtered = append(filtered, warning)
	}
	return filtered, suppressed
}

func filterPatterns(
	queryID string,
	patterns []advisor.DetectedPattern,
	known Set,
	suppressed int,
) ([]advisor.DetectedPattern, int) {
	filtered := make([]advisor.DetectedPattern, 0, len(patterns))
	for _, pattern := range patterns {
		fingerprint := FingerprintPattern(queryID, pattern)
		if _, exists := known[fingerprint]; exists {
			suppressed++
			continue
		}
		filtered = append(filtered, pattern)
	}
	return filtered, suppressed
}

func hash(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
