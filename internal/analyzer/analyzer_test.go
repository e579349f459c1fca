package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/clicktriage/clicktriage/internal/executor"
	"github.com/clicktriage/clicktriage/internal/models"
)

type fakeExecutor struct {
	structural []string
	plan       []string
	pipeline   []string
	tableRows  map[string][]any // table name -> system.tables row
	explainErr error
	panicOn    string
}

func (f *fakeExecutor) Execute(_ context.Context, query string, args ...any) executor.Outcome {
	if f.panicOn != "" && strings.Contains(query, f.panicOn) {
		panic("executor blew up")
	}

	switch {
	case strings.HasPrefix(query, "EXPLAIN indexes"):
		return f.lineOutcome(f.structural)
	case strings.HasPrefix(query, "EXPLAIN PLAN"):
		return f.lineOutcome(f.plan)
	case strings.HasPrefix(query, "EXPLAIN PIPELINE"):
		return f.lineOutcome(f.pipeline)
	case strings.Contains(query, "system.tables"):
		name, _ := args[1].(string)
		if row, ok := f.tableRows[name]; ok {
			return executor.Outcome{Rows: [][]any{row}}
		}
		return executor.Outcome{}
	}
	return executor.Outcome{}
}

func (f *fakeExecutor) lineOutcome(lines []string) executor.Outcome {
	if f.explainErr != nil {
		return executor.Outcome{Err: f.explainErr}
	}
	rows := make([][]any, len(lines))
	for i, line := range lines {
		rows[i] = []any{line}
	}
	return executor.Outcome{Rows: rows, Columns: []string{"explain"}}
}

type fakeProfiles struct {
	profiles map[string]*models.TableProfile
	recs     map[string]*models.IndexRecommendation
	nextID   int64
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: make(map[string]*models.TableProfile),
		recs:     make(map[string]*models.IndexRecommendation),
	}
}

func (f *fakeProfiles) UpsertProfile(_ context.Context, p *models.TableProfile) (*models.TableProfile, error) {
	key := p.Database + "." + p.TableName
	if existing, ok := f.profiles[key]; ok {
		existing.TotalRows = p.TotalRows
		existing.TotalBytes = p.TotalBytes
		return existing, nil
	}
	f.nextID++
	p.ID = f.nextID
	f.profiles[key] = p
	return p, nil
}

func (f *fakeProfiles) UpsertIndexRecommendation(_ context.Context, rec *models.IndexRecommendation) error {
	key := fmt.Sprintf("%d/%s/%s", rec.ProfileID, rec.ColumnName, rec.Kind)
	if existing, ok := f.recs[key]; ok {
		existing.Occurrences++
		return nil
	}
	rec.Occurrences = 1
	f.recs[key] = rec
	return nil
}

func newAnalyzer(exec QueryExecutor, profiles ProfileStore) *Analyzer {
	return New(Config{DefaultDatabase: "default"}, exec, profiles, nil)
}

func TestDetectFullScanPartsRatio(t *testing.T) {
	cases := []struct {
		name  string
		lines []string
		want  bool
	}{
		{"all parts large table", []string{"ReadFromMergeTree (default.events)", "Parts: 12/12"}, true},
		{"all parts small table", []string{"Parts: 5/5"}, false},
		{"filtered read", []string{"Parts: 3/12"}, false},
		{"boundary eleven parts", []string{"Parts: 11/11"}, true},
		{"no parts line", []string{"Expression (Projection)"}, false},
		{"empty", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectFullScan(tc.lines); got != tc.want {
				t.Fatalf("detectFullScan(%v) = %v, want %v", tc.lines, got, tc.want)
			}
		})
	}
}

func TestAnalyzeDerivesPlanFeatures(t *testing.T) {
	exec := &fakeExecutor{
		structural: []string{"ReadFromMergeTree (default.events)", "Parts: 12/12"},
		plan:       []string{"Expression", "Sorting (Sort)", "Aggregating"},
		pipeline:   make([]string, 30),
	}
	a := newAnalyzer(exec, nil)

	result := a.Analyze(context.Background(), "SELECT user_id, count() FROM events GROUP BY user_id ORDER BY user_id;")

	if !result.HasFullScan || !result.HasSorting || !result.HasAggregation {
		t.Fatalf("expected all plan features, got %+v", result)
	}
	if result.PipelineComplexity != 30 {
		t.Fatalf("expected pipeline complexity 30, got %d", result.PipelineComplexity)
	}
	// 30 full scan + 15 sorting + 20 aggregation + 10 pipeline > 20
	if result.ComplexityScore != 75 {
		t.Fatalf("expected plan score 75, got %d", result.ComplexityScore)
	}
	if result.RuleSetVersion != RuleSetVersion {
		t.Fatalf("expected rule set tag, got %q", result.RuleSetVersion)
	}
}

func TestAnalyzeScoreStaysInRange(t *testing.T) {
	exec := &fakeExecutor{
		structural: []string{"Parts: 200/200"},
		plan:       []string{"Sorting (Sort)", "Aggregating"},
		pipeline:   make([]string, 150),
	}
	a := newAnalyzer(exec, nil)

	result := a.Analyze(context.Background(), "SELECT * FROM big GROUP BY a ORDER BY b")
	if result.ComplexityScore < 0 || result.ComplexityScore > 100 {
		t.Fatalf("score out of range: %d", result.ComplexityScore)
	}
	if result.ComplexityScore != 100 {
		t.Fatalf("expected clamp to 100, got %d", result.ComplexityScore)
	}
}

func TestAnalyzeStaticTextChecks(t *testing.T) {
	a := newAnalyzer(&fakeExecutor{}, nil)

	result := a.Analyze(context.Background(), "SELECT * FROM t LIMIT 10")

	var selectAll, limitNoOrder *models.Warning
	for i := range result.Warnings {
		switch result.Warnings[i].Type {
		case "select_all":
			selectAll = &result.Warnings[i]
		case "limit_no_order":
			limitNoOrder = &result.Warnings[i]
		}
	}

	if selectAll == nil || selectAll.Priority != models.PriorityMedium {
		t.Fatalf("expected medium select_all warning, got %+v", result.Warnings)
	}
	if limitNoOrder == nil || limitNoOrder.Priority != models.PriorityLow {
		t.Fatalf("expected low limit_no_order warning, got %+v", result.Warnings)
	}
}

func TestAnalyzeDegradesWhenExplainUnsupported(t *testing.T) {
	exec := &fakeExecutor{explainErr: errors.New("EXPLAIN is not supported")}
	a := newAnalyzer(exec, nil)

	result := a.Analyze(context.Background(), "SELECT id FROM t WHERE id = 1")

	if result.HasFullScan || result.HasSorting || result.HasAggregation {
		t.Fatalf("expected zeroed features without structural data, got %+v", result)
	}
	if result.PipelineComplexity != 0 {
		t.Fatalf("expected zero pipeline complexity, got %d", result.PipelineComplexity)
	}
	for _, w := range result.Warnings {
		if w.Priority == models.PriorityCritical {
			t.Fatalf("degraded capability must not be critical: %+v", w)
		}
	}
}

func TestAnalyzeRecoversFromPanic(t *testing.T) {
	exec := &fakeExecutor{panicOn: "EXPLAIN"}
	a := newAnalyzer(exec, nil)

	result := a.Analyze(context.Background(), "SELECT 1")

	if result == nil {
		t.Fatal("expected a result, not a propagated panic")
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Priority != models.PriorityCritical {
		t.Fatalf("expected a single critical warning, got %+v", result.Warnings)
	}
	if result.ComplexityScore != 0 || result.HasFullScan {
		t.Fatalf("expected zeroed fields after failure, got %+v", result)
	}
	if result.AnalysisDurationMs < 0 {
		t.Fatalf("expected duration recorded, got %f", result.AnalysisDurationMs)
	}
}

func TestAnalyzeTableFindings(t *testing.T) {
	exec := &fakeExecutor{
		structural: []string{"Parts: 12/12"},
		tableRows: map[string][]any{
			"events": {"events", int64(5_000_000), int64(2) << 30, "MergeTree", "", "", ""},
		},
	}
	profiles := newFakeProfiles()
	a := newAnalyzer(exec, profiles)

	result := a.Analyze(context.Background(), "SELECT id FROM events WHERE user_id = 42 AND status != 'done'")

	stats, ok := result.TableStats["events"]
	if !ok {
		t.Fatalf("expected table stats for events, got %v", result.TableStats)
	}
	if stats.Engine != "MergeTree" {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	var largeTable bool
	for _, w := range result.Warnings {
		if w.Type == "large_table" && w.Priority == models.PriorityInfo {
			largeTable = true
		}
	}
	if !largeTable {
		t.Fatalf("expected large_table warning for 2 GB table: %+v", result.Warnings)
	}

	wantRecs := []string{"Consider partitioning table events", "Consider adding a sorting key to table events"}
	for _, want := range wantRecs {
		found := false
		for _, rec := range result.Recommendations {
			if rec == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing recommendation %q in %v", want, result.Recommendations)
		}
	}

	if len(profiles.profiles) != 1 {
		t.Fatalf("expected one table profile, got %d", len(profiles.profiles))
	}
	// full scan + WHERE columns user_id, status
	if len(profiles.recs) != 2 {
		t.Fatalf("expected 2 index recommendations, got %d", len(profiles.recs))
	}
}

func TestAnalyzeSkipsExcludedTables(t *testing.T) {
	exec := &fakeExecutor{
		tableRows: map[string][]any{
			"events": {"events", int64(100), int64(100), "MergeTree", "", "", ""},
		},
	}
	profiles := newFakeProfiles()
	a := New(Config{
		DefaultDatabase: "default",
		Exclude:         func(table string) bool { return table == "default.events" },
	}, exec, profiles, nil)

	result := a.Analyze(context.Background(), "SELECT id FROM events WHERE user_id = 1")

	if _, ok := result.TableStats["events"]; ok {
		t.Fatalf("expected excluded table to carry no stats, got %v", result.TableStats)
	}
	if len(profiles.profiles) != 0 {
		t.Fatalf("expected no profile refresh for excluded table, got %d", len(profiles.profiles))
	}
}

func TestExtractTables(t *testing.T) {
	cases := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM events", []string{"events"}},
		{"SELECT * FROM db1.events JOIN db2.users ON 1", []string{"db1.events", "db2.users"}},
		{"INSERT INTO audit_log VALUES (1)", []string{"audit_log"}},
		{"SELECT 1", nil},
	}

	for _, tc := range cases {
		got := ExtractTables(tc.sql)
		if len(got) != len(tc.want) {
			t.Fatalf("ExtractTables(%q) = %v, want %v", tc.sql, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("ExtractTables(%q) = %v, want %v", tc.sql, got, tc.want)
			}
		}
	}
}

func TestExtractWhereColumns(t *testing.T) {
	got := ExtractWhereColumns("SELECT id FROM t WHERE user_id = 1 AND t.status != 'x' ORDER BY id")
	want := []string{"user_id", "status"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTextScorer(t *testing.T) {
	s := NewScorer("text")
	if s.Name() != "text" {
		t.Fatalf("expected text scorer, got %s", s.Name())
	}

	// 2 joins (10) + 1 subquery (10) + 1 where (3) + aggregation (8) + order (5)
	sql := `SELECT count() FROM a JOIN b ON a.id = b.id JOIN c ON b.id = c.id
	        WHERE a.id IN (SELECT id FROM d) GROUP BY a.id ORDER BY a.id`
	if got := s.Score(sql, nil); got != 36 {
		t.Fatalf("expected text score 36, got %d", got)
	}

	if got := s.Score("SELECT 1", nil); got != 0 {
		t.Fatalf("expected zero score for trivial query, got %d", got)
	}
}

func TestScorerDefaultsToPlan(t *testing.T) {
	if NewScorer("").Name() != "plan" {
		t.Fatal("expected plan scorer by default")
	}
	if NewScorer("nonsense").Name() != "plan" {
		t.Fatal("expected plan scorer for unknown strategy")
	}
}
