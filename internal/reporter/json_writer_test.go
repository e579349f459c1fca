package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteJSONOutputStructure(t *testing.T) {
	outDir := t.TempDir()
	report := sampleReport()

	if err := WriteJSON(report, outDir); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	payload, err := os.ReadFile(filepath.Join(outDir, "report.json"))
	if err != nil {
		t.Fatalf("failed to read report.json: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("failed to unmarshal report.json: %v", err)
	}

	for _, key := range []string{"tool", "metadata", "entries"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("expected key %q in report.json", key)
		}
	}

	var tool string
	if err := json.Unmarshal(decoded["tool"], &tool); err != nil {
		t.Fatalf("failed to unmarshal tool: %v", err)
	}
	if tool != "clicktriage" {
		t.Fatalf("expected tool to be %q, got %q", "clicktriage", tool)
	}

	var metadata map[string]json.RawMessage
	if err := json.Unmarshal(decoded["metadata"], &metadata); err != nil {
		t.Fatalf("failed to unmarshal metadata: %v", err)
	}
	for _, key := range []string{"generated_at", "instance", "scoring_strategy", "queries_analyzed", "finding_count"} {
		if _, ok := metadata[key]; !ok {
			t.Fatalf("expected metadata key %q", key)
		}
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(decoded["entries"], &entries); err != nil {
		t.Fatalf("failed to unmarshal entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, key := range []string{"query_id", "sql", "duration_ms", "complexity_score", "has_full_scan"} {
		if _, ok := entries[0][key]; !ok {
			t.Fatalf("expected entry key %q", key)
		}
	}
}

func TestReporterGenerateFormats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		outDir := t.TempDir()
		rep, err := New(outDir, "json")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := rep.Generate(sampleReport()); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(outDir, "report.json")); err != nil {
			t.Fatalf("expected report.json output: %v", err)
		}
		if _, err := os.Stat(filepath.Join(outDir, "report.txt")); !os.IsNotExist(err) {
			t.Fatalf("expected report.txt to be absent for json format, got err=%v", err)
		}
	})

	t.Run("invalid_format", func(t *testing.T) {
		_, err := New(t.TempDir(), "yaml")
		if err == nil || !strings.Contains(err.Error(), "invalid report format") {
			t.Fatalf("expected invalid format error, got %v", err)
		}
	})

	t.Run("nil_report", func(t *testing.T) {
		rep, err := New(t.TempDir(), "json")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := rep.Generate(nil); err == nil || !strings.Contains(err.Error(), "report is nil") {
			t.Fatalf("expected nil report error, got %v", err)
		}
	})
}
