package triage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clicktriage/clicktriage/internal/models"
)

func newCase() *models.TriageCase {
	return &models.TriageCase{RecordID: 1, Status: models.StatusNew}
}

func TestHappyPathThroughAllStates(t *testing.T) {
	c := newCase()
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	require.NoError(t, StartAnalysis(c, "oncall", "looks like a full scan", now))
	assert.Equal(t, models.StatusInAnalysis, c.Status)
	assert.Equal(t, "oncall", c.AssignedTo)
	require.NotNil(t, c.AnalysisStartedAt)
	assert.Equal(t, now, *c.AnalysisStartedAt)

	require.NoError(t, ProposeOptimization(c, "SELECT id FROM t WHERE d = today()", 60))
	assert.Equal(t, models.StatusWaitingFeedback, c.Status)
	require.NotNil(t, c.ExpectedImprovement)
	assert.Equal(t, 60.0, *c.ExpectedImprovement)

	done := now.Add(2 * time.Hour)
	require.NoError(t, RecordOutcome(c, 4000, 1000, done))
	assert.Equal(t, models.StatusOptimized, c.Status)
	require.NotNil(t, c.ActualImprovement)
	assert.InDelta(t, 75.0, *c.ActualImprovement, 0.001)
	require.NotNil(t, c.OptimizedAt)
	assert.Equal(t, done, *c.OptimizedAt)
}

func TestTimestampsAreSetAtMostOnce(t *testing.T) {
	c := newCase()
	first := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	require.NoError(t, StartAnalysis(c, "a", "", first))
	started := *c.AnalysisStartedAt

	// fabricate a path that re-enters in_analysis
	c.Status = models.StatusNew
	require.NoError(t, StartAnalysis(c, "b", "", first.Add(time.Hour)))

	assert.Equal(t, started, *c.AnalysisStartedAt,
		"analysis_started_at must not be overwritten on re-entry")

	require.NoError(t, ProposeOptimization(c, "SELECT 1", 10))
	require.NoError(t, RecordOutcome(c, 100, 50, first.Add(2*time.Hour)))
	optimized := *c.OptimizedAt

	c.Status = models.StatusWaitingFeedback
	require.NoError(t, RecordOutcome(c, 100, 80, first.Add(9*time.Hour)))
	assert.Equal(t, optimized, *c.OptimizedAt,
		"optimized_at must not be overwritten on re-entry")
}

func TestSideExitsFromNonTerminalStates(t *testing.T) {
	for _, from := range []models.CaseStatus{models.StatusNew, models.StatusInAnalysis, models.StatusWaitingFeedback} {
		c := newCase()
		c.Status = from
		require.NoError(t, Ignore(c), "ignore from %s", from)
		assert.Equal(t, models.StatusIgnored, c.Status)

		c = newCase()
		c.Status = from
		require.NoError(t, CannotOptimize(c), "cannot_optimize from %s", from)
		assert.Equal(t, models.StatusCannotOptimize, c.Status)
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	cases := []struct {
		from models.CaseStatus
		op   func(c *models.TriageCase) error
	}{
		{models.StatusNew, func(c *models.TriageCase) error {
			return ProposeOptimization(c, "SELECT 1", 10)
		}},
		{models.StatusNew, func(c *models.TriageCase) error {
			return RecordOutcome(c, 100, 50, time.Now())
		}},
		{models.StatusInAnalysis, func(c *models.TriageCase) error {
			return RecordOutcome(c, 100, 50, time.Now())
		}},
		{models.StatusOptimized, func(c *models.TriageCase) error {
			return Ignore(c)
		}},
		{models.StatusIgnored, func(c *models.TriageCase) error {
			return StartAnalysis(c, "x", "", time.Now())
		}},
		{models.StatusCannotOptimize, func(c *models.TriageCase) error {
			return CannotOptimize(c)
		}},
	}

	for _, tc := range cases {
		c := newCase()
		c.Status = tc.from
		err := tc.op(c)
		require.Error(t, err, "from %s", tc.from)

		var invalid *ErrInvalidTransition
		assert.True(t, errors.As(err, &invalid), "expected ErrInvalidTransition from %s, got %v", tc.from, err)
		assert.Equal(t, tc.from, c.Status, "status must not change on rejected transition")
	}
}

func TestProposeOptimizationRequiresQuery(t *testing.T) {
	c := newCase()
	require.NoError(t, StartAnalysis(c, "a", "", time.Now()))

	err := ProposeOptimization(c, "", 10)
	require.Error(t, err)
	assert.Equal(t, models.StatusInAnalysis, c.Status)
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, models.StatusOptimized.Terminal())
	assert.True(t, models.StatusIgnored.Terminal())
	assert.True(t, models.StatusCannotOptimize.Terminal())
	assert.False(t, models.StatusNew.Terminal())
	assert.False(t, models.StatusInAnalysis.Terminal())
	assert.False(t, models.StatusWaitingFeedback.Terminal())
}
