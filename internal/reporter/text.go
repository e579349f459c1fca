package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clicktriage/clicktriage/internal/advisor"
	"github.com/clicktriage/clicktriage/internal/models"
)

const (
	textANSIReset = "\x1b[0m"
	textANSIBold  = "\x1b[1m"
)

// WriteText writes a human-readable text report to report.txt and stdout.
func WriteText(report *Report, outputDir string) error {
	return writeText(report, outputDir, os.Stdout)
}

func writeText(report *Report, outputDir string, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if out == nil {
		return fmt.Errorf("writer is nil")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := renderTextReport(report, supportsANSI(out))
	outputPath := filepath.Join(outputDir, "report.txt")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report.txt: %w", err)
	}

	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("failed to write text report to output: %w", err)
	}

	return nil
}

func renderTextReport(report *Report, useANSI bool) string {
	var b strings.Builder

	generatedAt := "unknown"
	if !report.Metadata.GeneratedAt.IsZero() {
		generatedAt = report.Metadata.GeneratedAt.UTC().Format(time.RFC3339)
	}

	instance := strings.TrimSpace(report.Metadata.Instance)
	if instance == "" {
		instance = "unknown"
	}

	writeTextSectionHeader(&b, "ClickTriage Analysis Report", useANSI)
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt)
	fmt.Fprintf(&b, "Instance: %s\n", instance)
	fmt.Fprintf(&b, "Scoring strategy: %s\n", report.Metadata.ScoringStrategy)
	fmt.Fprintf(&b, "Queries analyzed: %d\n", report.Metadata.QueriesAnalyzed)
	fmt.Fprintf(&b, "Findings: %d\n", report.Metadata.FindingCount)
	b.WriteString("\n")

	low, medium, high := scoreDistribution(report.Entries)
	writeTextSectionHeader(&b, "Summary", useANSI)
	b.WriteString("Score distribution:\n")
	fmt.Fprintf(&b, "    0-39: %d\n", low)
	fmt.Fprintf(&b, "   40-69: %d\n", medium)
	fmt.Fprintf(&b, "  70-100: %d\n", high)
	b.WriteString("\n")

	writeTextSectionHeader(&b, "Queries", useANSI)
	if len(report.Entries) == 0 {
		b.WriteString("No queries analyzed.\n")
		return b.String()
	}

	b.WriteString("QUERY ID                               DURATION  SCORE  FULL_SCAN  WARNINGS\n")
	b.WriteString("-----------------------------------------------------------------------------\n")
	for _, entry := range report.Entries {
		fmt.Fprintf(&b, "%-38s %7.0fms %6d %10v %9d\n",
			truncateTextValue(entry.QueryID, 38),
			entry.DurationMs,
			entry.ComplexityScore,
			entry.HasFullScan,
			len(entry.Warnings))
	}
	b.WriteString("\n")

	for _, entry := range report.Entries {
		if len(entry.Warnings) == 0 && len(entry.Recommendations) == 0 && len(entry.Patterns) == 0 {
			continue
		}
		writeTextSectionHeader(&b, entry.QueryID, useANSI)
		fmt.Fprintf(&b, "%s\n", truncateTextValue(entry.SQL, 160))
		for _, w := range entry.Warnings {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", w.Priority, w.Type, w.Message)
		}
		for _, p := range entry.Patterns {
			fmt.Fprintf(&b, "  [%s] pattern: %s\n", p.Priority, p.Label)
		}
		for _, rec := range entry.Recommendations {
			fmt.Fprintf(&b, "  -> %s\n", rec)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func scoreDistribution(entries []Entry) (low, medium, high int) {
	for _, entry := range entries {
		switch {
		case entry.ComplexityScore >= 70:
			high++
		case entry.ComplexityScore >= 40:
			medium++
		default:
			low++
		}
	}
	return low, medium, high
}

// CountFindings returns the number of report items treated as findings.
func CountFindings(report *Report) int {
	if report == nil {
		return 0
	}

	count := 0
	for _, entry := range report.Entries {
		for _, w := range entry.Warnings {
			if w.Priority == models.PriorityHigh || w.Priority == models.PriorityCritical {
				count++
			}
		}
		for _, p := range entry.Patterns {
			if p.Priority == advisor.PriorityHigh || p.Priority == advisor.PriorityCritical {
				count++
			}
		}
	}
	return count
}

func writeTextSectionHeader(b *strings.Builder, title string, useANSI bool) {
	if useANSI {
		fmt.Fprintf(b, "%s%s%s\n", textANSIBold, title, textANSIReset)
	} else {
		fmt.Fprintf(b, "%s\n", title)
	}
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteString("\n")
}

func truncateTextValue(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

func supportsANSI(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
