// Package reporter renders the results of an analysis run to files an
// operator or a CI pipeline can consume.
package reporter

import (
	"fmt"
	"time"

	"github.com/clicktriage/clicktriage/internal/advisor"
	"github.com/clicktriage/clicktriage/internal/models"
)

// Metadata describes one analysis run.
type Metadata struct {
	GeneratedAt     time.Time `json:"generated_at"`
	Instance        string    `json:"instance"`
	Version         string    `json:"version"`
	ScoringStrategy string    `json:"scoring_strategy"`
	QueriesAnalyzed int       `json:"queries_analyzed"`
	FindingCount    int       `json:"finding_count"`
}

// Entry is the report row for one analyzed query.
type Entry struct {
	QueryID         string                    `json:"query_id"`
	SQL             string                    `json:"sql"`
	DurationMs      float64                   `json:"duration_ms"`
	ComplexityScore int                       `json:"complexity_score"`
	HasFullScan     bool                      `json:"has_full_scan"`
	Warnings        []models.Warning          `json:"warnings"`
	Recommendations []string                  `json:"recommendations"`
	Patterns        []advisor.DetectedPattern `json:"patterns"`
}

// Report is the full output of one analysis run.
type Report struct {
	Tool     string   `json:"tool"`
	Metadata Metadata `json:"metadata"`
	Entries  []Entry  `json:"entries"`
}

// Reporter interface for generating reports
type Reporter interface {
	Generate(report *Report) error
}

// reporter implements the Reporter interface
type reporter struct {
	outputDir string
	format    string
}

// New creates a new reporter instance writing into outputDir. Format is
// json or text.
func New(outputDir, format string) (Reporter, error) {
	switch format {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid report format %q (json, text)", format)
	}
	return &reporter{outputDir: outputDir, format: format}, nil
}

// Generate generates the report
func (r *reporter) Generate(report *Report) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	if r.format == "text" {
		return WriteText(report, r.outputDir)
	}
	return WriteJSON(report, r.outputDir)
}
