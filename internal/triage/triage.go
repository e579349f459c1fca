// Package triage governs the workflow status of a flagged slow query.
// Every status change goes through Transition-validated operations;
// workflow timestamps are set at most once and never overwritten.
package triage

import (
	"fmt"
	"time"

	"github.com/clicktriage/clicktriage/internal/models"
)

// ErrInvalidTransition reports a disallowed status change.
type ErrInvalidTransition struct {
	From models.CaseStatus
	To   models.CaseStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid triage transition: %s -> %s", e.From, e.To)
}

// transitions is the allowed edge set of the state machine.
// new -> in_analysis -> waiting_feedback -> optimized, with side exits
// from the two non-terminal working states to ignored/cannot_optimize.
var transitions = map[models.CaseStatus][]models.CaseStatus{
	models.StatusNew: {
		models.StatusInAnalysis,
		models.StatusIgnored,
		models.StatusCannotOptimize,
	},
	models.StatusInAnalysis: {
		models.StatusWaitingFeedback,
		models.StatusIgnored,
		models.StatusCannotOptimize,
	},
	models.StatusWaitingFeedback: {
		models.StatusOptimized,
		models.StatusIgnored,
		models.StatusCannotOptimize,
	},
}

// CanTransition reports whether the edge from -> to is allowed.
func CanTransition(from, to models.CaseStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transition moves the case or fails with ErrInvalidTransition.
func transition(c *models.TriageCase, to models.CaseStatus) error {
	if !CanTransition(c.Status, to) {
		return &ErrInvalidTransition{From: c.Status, To: to}
	}
	c.Status = to
	return nil
}

// StartAnalysis moves new -> in_analysis, recording the assignee and
// optional notes. AnalysisStartedAt is set only on first entry.
func StartAnalysis(c *models.TriageCase, assignee, notes string, now time.Time) error {
	if err := transition(c, models.StatusInAnalysis); err != nil {
		return err
	}
	if assignee != "" {
		c.AssignedTo = assignee
	}
	if notes != "" {
		c.AnalysisNotes = notes
	}
	if c.AnalysisStartedAt == nil {
		t := now
		c.AnalysisStartedAt = &t
	}
	return nil
}

// ProposeOptimization moves in_analysis -> waiting_feedback with a
// proposed rewritten query and the expected improvement percentage.
func ProposeOptimization(c *models.TriageCase, optimizedQuery string, expectedImprovement float64) error {
	if optimizedQuery == "" {
		return fmt.Errorf("an optimized query proposal is required")
	}
	if err := transition(c, models.StatusWaitingFeedback); err != nil {
		return err
	}
	c.OptimizedQuery = optimizedQuery
	c.ExpectedImprovement = &expectedImprovement
	return nil
}

// RecordOutcome moves waiting_feedback -> optimized with the measured
// before/after durations. OptimizedAt is set only once; the actual
// improvement is derived from the measurements.
func RecordOutcome(c *models.TriageCase, beforeMs, afterMs float64, now time.Time) error {
	if beforeMs <= 0 {
		return fmt.Errorf("before duration must be positive, got %f", beforeMs)
	}
	if err := transition(c, models.StatusOptimized); err != nil {
		return err
	}

	c.BeforeDurationMs = &beforeMs
	c.AfterDurationMs = &afterMs

	improvement := (beforeMs - afterMs) / beforeMs * 100
	c.ActualImprovement = &improvement

	if c.OptimizedAt == nil {
		t := now
		c.OptimizedAt = &t
	}
	return nil
}

// Ignore closes the case from any non-terminal state with no further
// data required.
func Ignore(c *models.TriageCase) error {
	return transition(c, models.StatusIgnored)
}

// CannotOptimize closes the case from any non-terminal state when no
// viable optimization exists.
func CannotOptimize(c *models.TriageCase) error {
	return transition(c, models.StatusCannotOptimize)
}
