package baseline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clicktriage/clicktriage/internal/advisor"
	"github.com/clicktriage/clicktriage/internal/models"
	"github.com/clicktriage/clicktriage/internal/reporter"
)

func testReport() *reporter.Report {
	return &reporter.Report{
		Tool: "clicktriage",
		Entries: []reporter.Entry{
			{
				QueryID: "q1",
				Warnings: []models.Warning{
					{Type: "full_scan", Priority: models.PriorityHigh, Message: "query reads the whole table"},
					{Type: "deep_pipeline", Priority: models.PriorityMedium, Message: "pipeline has many steps"},
				},
				Patterns: []advisor.DetectedPattern{
					{Key: "select_star", Label: "SELECT *", Priority: advisor.PriorityHigh},
				},
			},
			{
				QueryID: "q2",
				Warnings: []models.Warning{
					{Type: "full_scan", Priority: models.PriorityHigh, Message: "query reads the whole table"},
				},
			},
		},
	}
}

func TestLoadMissingFileReturnsEmptySet(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %d entries", len(set))
	}
}

func TestLoadRejectsEmptyPathAndBadPayload(t *testing.T) {
	if _, err := Load("  "); err == nil || !strings.Contains(err.Error(), "baseline path is empty") {
		t.Fatalf("expected empty path error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to seed broken file: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse baseline file") {
		t.Fatalf("expected parse error, got %v", err)
	}

	path = filepath.Join(t.TempDir(), "future.json")
	if err := os.WriteFile(path, []byte(`{"version":99,"fingerprints":[]}`), 0644); err != nil {
		t.Fatalf("failed to seed future file: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported baseline version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "baseline.json")

	set := Set{}
	AddAll(set, []string{"bbb", "aaa", "bbb", ""})

	if err := Save(path, set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := Sorted(loaded)
	if len(got) != 2 || got[0] != "aaa" || got[1] != "bbb" {
		t.Fatalf("unexpected fingerprints after round trip: %v", got)
	}
}

func TestFingerprintsAreStableAndDistinct(t *testing.T) {
	warning := models.Warning{Type: "full_scan", Priority: models.PriorityHigh}

	first := FingerprintWarning("q1", warning)
	second := FingerprintWarning("q1", warning)
	if first != second {
		t.Fatalf("expected stable fingerprint, got %q and %q", first, second)
	}

	if FingerprintWarning("q2", warning) == first {
		t.Fatalf("expected query id to change fingerprint")
	}

	pattern := advisor.DetectedPattern{Key: "full_scan", Priority: advisor.PriorityHigh}
	if FingerprintPattern("q1", pattern) == first {
		t.Fatalf("expected warning and pattern fingerprints to differ")
	}
}

func TestCollectFingerprints(t *testing.T) {
	fingerprints := CollectFingerprints(testReport())
	// 3 warnings + 1 pattern, all distinct.
	if len(fingerprints) != 4 {
		t.Fatalf("expected 4 fingerprints, got %d", len(fingerprints))
	}

	if got := CollectFingerprints(nil); len(got) != 0 {
		t.Fatalf("expected no fingerprints for nil report, got %v", got)
	}
}

func TestSuppressKnownFiltersFindings(t *testing.T) {
	report := testReport()

	known := Set{}
	AddAll(known, []string{
		FingerprintWarning("q1", report.Entries[0].Warnings[0]),
		FingerprintPattern("q1", report.Entries[0].Patterns[0]),
	})

	suppressed, remaining := SuppressKnown(report, known)
	if suppressed != 2 {
		t.Fatalf("expected 2 suppressed findings, got %d", suppressed)
	}
	// q2's high warning is the only high/critical finding left.
	if remaining != 1 {
		t.Fatalf("expected 1 remaining finding, got %d", remaining)
	}
	if report.Metadata.FindingCount != 1 {
		t.Fatalf("expected finding count 1, got %d", report.Metadata.FindingCount)
	}

	if len(report.Entries[0].Warnings) != 1 || report.Entries[0].Warnings[0].Type != "deep_pipeline" {
		t.Fatalf("unexpected q1 warnings after suppression: %+v", report.Entries[0].Warnings)
	}
	if len(report.Entries[0].Patterns) != 0 {
		t.Fatalf("expected q1 patterns to be suppressed, got %+v", report.Entries[0].Patterns)
	}
	if len(report.Entries[1].Warnings) != 1 {
		t.Fatalf("expected q2 warning to survive, got %+v", report.Entries[1].Warnings)
	}
}

func TestSuppressKnownEmptySetCountsFindings(t *testing.T) {
	report := testReport()

	suppressed, remaining := SuppressKnown(report, Set{})
	if suppressed != 0 {
		t.Fatalf("expected no suppressions, got %d", suppressed)
	}
	if remaining != 3 {
		t.Fatalf("expected 3 findings, got %d", remaining)
	}
	if report.Metadata.FindingCount != 3 {
		t.Fatalf("expected finding count 3, got %d", report.Metadata.FindingCount)
	}
}
