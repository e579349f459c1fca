package advisor

import "regexp"

// Priority ranks a detected pattern.
type Priority string

const (
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rule maps one SQL anti-pattern to its recommendations. Expressions
// are tried in order against the upper-cased SQL text; the first match
// detects the rule and short-circuits the rest.
type Rule struct {
	Key             string
	Label           string
	Expressions     []*regexp.Regexp
	Recommendations []string
	Priority        Priority
}

// rules is the static pattern library, evaluated uniformly in order.
var rules = []Rule{
	{
		Key:   "full_scan",
		Label: "Full table scan",
		Expressions: []*regexp.Regexp{
			regexp.MustCompile(`WHERE.*!=`),
			regexp.MustCompile(`WHERE.*NOT IN`),
			regexp.MustCompile(`WHERE.*LIKE.*%`),
			regexp.MustCompile(`WHERE.*IS NULL`),
			regexp.MustCompile(`WHERE.*OR.*=`),
		},
		Recommendations: []string{
			"Add indexes on the columns used in WHERE conditions",
			"Use partitioning for large tables",
			"Consider materialized views for frequently queried data",
			"Prefer = conditions over != or NOT IN",
			"Use full-text search structures for text lookups",
		},
		Priority: PriorityHigh,
	},
	{
		Key:   "missing_index",
		Label: "Missing index",
		Expressions: []*regexp.Regexp{
			regexp.MustCompile(`WHERE.*\w+.*=`),
			regexp.MustCompile(`WHERE.*\w+.*>`),
			regexp.MustCompile(`WHERE.*\w+.*<`),
			regexp.MustCompile(`JOIN.*ON.*=`),
		},
		Recommendations: []string{
			"Create indexes on columns used in WHERE conditions",
			"Create indexes on JOIN key columns",
			"Use composite indexes for multiple conditions",
			"Order index columns by cardinality, highest first",
		},
		Priority: PriorityHigh,
	},
	{
		Key:   "cross_join",
		Label: "Cartesian product join",
		Expressions: []*regexp.Regexp{
			regexp.MustCompile(`CROSS JOIN`),
			regexp.MustCompile(`JOIN.*ON.*1=1`),
		},
		Recommendations: []string{
			"Replace CROSS JOIN with INNER JOIN and explicit conditions",
			"Add JOIN conditions to bound the cartesian product",
			"Verify every JOIN carries an explicit ON clause",
		},
		Priority: PriorityCritical,
	},
	{
		Key:   "subquery",
		Label: "Unoptimized subquery",
		Expressions: []*regexp.Regexp{
			regexp.MustCompile(`WHERE.*IN\s*\(SELECT`),
			regexp.MustCompile(`WHERE.*EXISTS\s*\(SELECT`),
			regexp.MustCompile(`SELECT.*\(\s*SELECT`),
		},
		Recommendations: []string{
			"Replace subqueries with JOINs where possible",
			"Use CTEs (WITH) for complex subqueries",
			"Consider temporary tables for large IN subqueries",
		},
		Priority: PriorityMedium,
	},
	{
		Key:   "large_result",
		Label: "Oversized result set",
		Expressions: []*regexp.Regexp{
			regexp.MustCompile(`SELECT\s*\*`),
			regexp.MustCompile(`LIMIT\s+100000`),
			regexp.MustCompile(`LIMIT\s+10000`),
		},
		Recommendations: []string{
			"Select only the columns you need instead of SELECT *",
			"Add aggregations to shrink the transferred data",
			"Paginate with reasonable LIMIT values",
		},
		Priority: PriorityMedium,
	},
	{
		Key:   "memory_usage",
		Label: "High memory pressure",
		Expressions: []*regexp.Regexp{
			regexp.MustCompile(`DISTINCT`),
			regexp.MustCompile(`GROUP BY.*\w+,\s*\w+,\s*\w+`),
			regexp.MustCompile(`ORDER BY.*\w+,\s*\w+,\s*\w+`),
		},
		Recommendations: []string{
			"Consider approximate aggregates (uniqCombined) instead of DISTINCT",
			"Trim GROUP BY down to the necessary columns",
			"Raise max_memory_usage only after the query shape is fixed",
		},
		Priority: PriorityMedium,
	},
	{
		Key:   "datetime_optimization",
		Label: "Date handling",
		Expressions: []*regexp.Regexp{
			regexp.MustCompile(`WHERE.*DATE.*>.*NOW\(\)`),
			regexp.MustCompile(`WHERE.*TODATE\(`),
			regexp.MustCompile(`WHERE.*TOSTRING\(DATE\)`),
		},
		Recommendations: []string{
			"Partition time-series tables by date",
			"Filter on native Date/DateTime types",
			"Avoid type conversions inside WHERE conditions",
			"Precompute per-period aggregates for repeated range scans",
		},
		Priority: PriorityMedium,
	},
}
