// Package advisor maps textual SQL shapes to prioritized optimization
// recommendations through a static rule table. It is pure and
// deterministic: identical input always yields identical output, and it
// performs no I/O.
package advisor

import (
	"regexp"
	"strings"
)

// DetectedPattern is one rule that matched the SQL text.
type DetectedPattern struct {
	Key             string   `json:"pattern"`
	Label           string   `json:"name"`
	Priority        Priority `json:"priority"`
	Recommendations []string `json:"recommendations"`
}

// Summary tallies detected rules per priority.
type Summary struct {
	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	TotalPatterns int `json:"total_patterns"`
}

// Report is the advisory output for one SQL statement.
type Report struct {
	DetectedPatterns []DetectedPattern `json:"detected_patterns"`
	Recommendations  []string          `json:"recommendations"`
	Summary          Summary           `json:"summary"`
}

// Advise evaluates the rule table against the SQL text. Each rule is
// detected at most once; the recommendation list is the union of all
// detected rules' recommendations, deduplicated in first-seen order.
func Advise(sqlText string) Report {
	upper := strings.ToUpper(sqlText)

	var detected []DetectedPattern
	for _, rule := range rules {
		for _, expr := range rule.Expressions {
			if expr.MatchString(upper) {
				detected = append(detected, DetectedPattern{
					Key:             rule.Key,
					Label:           rule.Label,
					Priority:        rule.Priority,
					Recommendations: rule.Recommendations,
				})
				break
			}
		}
	}

	var recommendations []string
	seen := make(map[string]bool)
	for _, pattern := range detected {
		for _, rec := range pattern.Recommendations {
			if seen[rec] {
				continue
			}
			seen[rec] = true
			recommendations = append(recommendations, rec)
		}
	}

	summary := Summary{TotalPatterns: len(detected)}
	for _, pattern := range detected {
		switch pattern.Priority {
		case PriorityCritical:
			summary.CriticalCount++
		case PriorityHigh:
			summary.HighCount++
		case PriorityMedium:
			summary.MediumCount++
		}
	}

	return Report{
		DetectedPatterns: detected,
		Recommendations:  recommendations,
		Summary:          summary,
	}
}

var (
	notEqualRewrite = regexp.MustCompile(`(?i)WHERE\s+(\w+)\s*!=\s*(\S+)`)
	selectAllHint   = regexp.MustCompile(`(?i)SELECT\s*\*`)
)

// OptimizedTemplate sketches a rewritten query for the detected
// patterns. It is a starting point for the operator, not executable
// advice.
func OptimizedTemplate(sqlText string, detected []DetectedPattern) string {
	if len(detected) == 0 {
		return sqlText
	}

	optimized := sqlText
	for _, pattern := range detected {
		switch pattern.Key {
		case "full_scan":
			optimized = notEqualRewrite.ReplaceAllString(optimized, "WHERE $1 = $2")
		case "large_result":
			optimized = selectAllHint.ReplaceAllString(optimized, "SELECT /* specify columns here */")
		}
	}
	return optimized
}

// ChecklistItem is one best-practices group shown by the triage CLI.
type ChecklistItem struct {
	Category string
	Items    []string
}

// BestPracticesChecklist returns the static review checklist for
// operators working a triage case.
func BestPracticesChecklist() []ChecklistItem {
	return []ChecklistItem{
		{
			Category: "Query structure",
			Items: []string{
				"Select only the needed columns",
				"Avoid SELECT * in production queries",
				"Bound large results with LIMIT",
				"Group complex conditions into CTEs",
			},
		},
		{
			Category: "Performance",
			Items: []string{
				"Index the columns used in WHERE and JOIN conditions",
				"Partition large tables",
				"Avoid type conversions inside WHERE",
				"Use approximate aggregates on large data",
			},
		},
		{
			Category: "Filtering",
			Items: []string{
				"Prefer = over != or NOT IN",
				"Avoid OR chains; consider UNION ALL",
				"Put the most selective conditions first",
			},
		},
		{
			Category: "JOINs",
			Items: []string{
				"Always write explicit JOIN conditions",
				"Never ship CROSS JOIN to production",
				"Join the smaller table first",
			},
		},
	}
}
