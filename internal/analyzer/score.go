package analyzer

import (
	"regexp"
	"strings"

	"github.com/clicktriage/clicktriage/internal/models"
)

// Scorer computes a 0..100 complexity score for one analyzed query.
// Two strategies exist: "plan" derives the score from EXPLAIN features,
// "text" from raw SQL shape counts. Both are preserved because they
// represent different generations of the scoring formula.
type Scorer interface {
	Name() string
	Score(sqlText string, result *models.AnalysisResult) int
}

// NewScorer selects a scoring strategy by name, defaulting to plan.
func NewScorer(strategy string) Scorer {
	switch strategy {
	case "text":
		return &TextScorer{}
	default:
		return &PlanScorer{}
	}
}

// PlanScorer weights the structural features derived from EXPLAIN.
type PlanScorer struct{}

func (s *PlanScorer) Name() string { return "plan" }

func (s *PlanScorer) Score(_ string, result *models.AnalysisResult) int {
	score := 0
	if result.HasFullScan {
		score += 30
	}
	if result.HasSorting {
		score += 15
	}
	if result.HasAggregation {
		score += 20
	}

	switch {
	case result.PipelineComplexity > 100:
		score += 35
	case result.PipelineComplexity > 50:
		score += 20
	case result.PipelineComplexity > 20:
		score += 10
	}

	return clampScore(score)
}

var (
	joinPattern      = regexp.MustCompile(`(?i)\bJOIN\b`)
	subqueryPattern  = regexp.MustCompile(`(?i)\(\s*SELECT`)
	wherePattern     = regexp.MustCompile(`(?i)\bWHERE\b`)
	aggregatePattern = regexp.MustCompile(`(?i)\b(GROUP BY|COUNT|SUM|AVG|MAX|MIN)\b`)
	orderByPattern   = regexp.MustCompile(`(?i)\bORDER BY\b`)
)

// TextScorer weights raw JOIN/subquery/WHERE counts in the SQL text.
// It needs no EXPLAIN support at all.
type TextScorer struct{}

func (s *TextScorer) Name() string { return "text" }

func (s *TextScorer) Score(sqlText string, _ *models.AnalysisResult) int {
	score := 0
	score += len(joinPattern.FindAllString(sqlText, -1)) * 5
	score += len(subqueryPattern.FindAllString(sqlText, -1)) * 10
	score += len(wherePattern.FindAllString(sqlText, -1)) * 3

	if aggregatePattern.MatchString(sqlText) {
		score += 8
	}
	if orderByPattern.MatchString(sqlText) {
		score += 5
	}

	return clampScore(score)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// stripTerminator removes a trailing statement terminator so EXPLAIN
// prefixes compose cleanly.
func stripTerminator(sqlText string) string {
	return strings.TrimRight(strings.TrimSpace(sqlText), "; \t\n")
}
