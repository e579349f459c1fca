package analyzer

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// The three EXPLAIN shapes are independent capability probes. Absence
// of support for one must not fail the other two, so each degrades to
// an empty line list.
const (
	explainIndexes  = "EXPLAIN indexes = 1 "
	explainPlan     = "EXPLAIN PLAN "
	explainPipeline = "EXPLAIN PIPELINE "
)

// partsPattern matches index-usage lines such as "Parts: 12/12"
// (parts read / parts total).
var partsPattern = regexp.MustCompile(`Parts:\s*(\d+)/(\d+)`)

// fullScanPartsFloor is the minimum total part count before an
// all-parts read counts as a full scan. Tiny tables read every part on
// any query, which signals nothing.
const fullScanPartsFloor = 10

// explainLines runs one EXPLAIN shape and returns its text lines.
// Failure silently yields nil: the shape is unsupported, not broken.
func (a *Analyzer) explainLines(ctx context.Context, shape, sqlText string) []string {
	outcome := a.exec.Execute(ctx, shape+sqlText)
	if outcome.Err != nil {
		a.log.Debug("explain shape unavailable",
			zap.String("shape", strings.TrimSpace(shape)), zap.Error(outcome.Err))
		return nil
	}

	lines := make([]string, 0, len(outcome.Rows))
	for _, row := range outcome.Rows {
		if len(row) == 0 {
			continue
		}
		switch v := row[0].(type) {
		case string:
			lines = append(lines, v)
		case []byte:
			lines = append(lines, string(v))
		}
	}
	return lines
}

// detectFullScan reports whether the structural output shows the engine
// reading (almost) every physical part of a sufficiently large table.
func detectFullScan(structural []string) bool {
	for _, line := range structural {
		m := partsPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		read, err1 := strconv.Atoi(m[1])
		total, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		if total > fullScanPartsFloor && read >= total {
			return true
		}
	}
	return false
}

// hasMarker scans structural and logical-plan lines for a plan-step
// substring marker.
func hasMarker(marker string, lineSets ...[]string) bool {
	for _, lines := range lineSets {
		for _, line := range lines {
			if strings.Contains(line, marker) {
				return true
			}
		}
	}
	return false
}
