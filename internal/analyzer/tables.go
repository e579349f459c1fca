package analyzer

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/clicktriage/clicktriage/internal/models"
)

const gib = int64(1) << 30

var (
	identifier = `[a-z_][a-z0-9_]*\.[a-z_][a-z0-9_]*|[a-z_][a-z0-9_]*`

	fromPattern   = regexp.MustCompile(`from\s+(` + identifier + `)`)
	joinRefs      = regexp.MustCompile(`join\s+(` + identifier + `)`)
	insertPattern = regexp.MustCompile(`insert\s+into\s+(` + identifier + `)`)

	whereClause  = regexp.MustCompile(`(?is)\bwhere\s+(.*?)(?:\bgroup\b|\border\b|\blimit\b|\bsettings\b|$)`)
	whereColumns = regexp.MustCompile(`([a-z_][a-z0-9_]*(?:\.[a-z_][a-z0-9_]*)?)\s*(?:[=<>!]|\bin\b|\blike\b)`)
)

// ExtractTables pulls referenced table names out of SQL text with
// lightweight lexical scanning over FROM, JOIN, and INSERT INTO
// clauses. It is deliberately not a parser: false negatives on exotic
// syntax are acceptable. Results are deduplicated and sorted.
func ExtractTables(sqlText string) []string {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))

	seen := make(map[string]bool)
	for _, pattern := range []*regexp.Regexp{fromPattern, joinRefs, insertPattern} {
		for _, match := range pattern.FindAllStringSubmatch(normalized, -1) {
			if len(match) > 1 && !isSQLKeyword(match[1]) {
				seen[match[1]] = true
			}
		}
	}

	tables := make([]string, 0, len(seen))
	for table := range seen {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

// filter clauses are FROM-adjacent keywords, not tables
func isSQLKeyword(word string) bool {
	switch word {
	case "select", "where", "numbers", "values", "final":
		return true
	}
	return false
}

// ExtractWhereColumns returns the column names compared in the WHERE
// clause, best-effort, for index recommendations.
func ExtractWhereColumns(sqlText string) []string {
	normalized := strings.ToLower(sqlText)
	clause := whereClause.FindStringSubmatch(normalized)
	if clause == nil {
		return nil
	}

	seen := make(map[string]bool)
	var columns []string
	for _, match := range whereColumns.FindAllStringSubmatch(clause[1], -1) {
		name := match[1]
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if name == "" || isSQLKeyword(name) || seen[name] {
			continue
		}
		seen[name] = true
		columns = append(columns, name)
	}
	return columns
}

const tableStatsSQL = `
SELECT
    name,
    total_rows,
    total_bytes,
    engine,
    partition_key,
    sorting_key
FROM system.tables
WHERE database = ? AND name = ?
`

// splitTableRef resolves "db.table" or bare "table" against the
// default database.
func splitTableRef(ref, defaultDB string) (database, table string) {
	if i := strings.Index(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return defaultDB, ref
}

// tableStats fetches one table's system.tables snapshot. A missing or
// failed lookup returns ok=false and degrades the analysis, nothing
// more.
func (a *Analyzer) tableStats(ctx context.Context, ref string) (models.TableStats, bool) {
	database, table := splitTableRef(ref, a.cfg.DefaultDatabase)

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return models.TableStats{}, false
		}
	}

	outcome := a.exec.Execute(ctx, tableStatsSQL, database, table)
	if outcome.Err != nil || len(outcome.Rows) == 0 {
		return models.TableStats{}, false
	}

	row := outcome.Rows[0]
	if len(row) < 6 {
		return models.TableStats{}, false
	}

	return models.TableStats{
		Name:         asString(row[0]),
		Database:     database,
		TotalRows:    asInt64(row[1]),
		TotalBytes:   asInt64(row[2]),
		Engine:       asString(row[3]),
		PartitionKey: asString(row[4]),
		SortingKey:   asString(row[5]),
	}, true
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
