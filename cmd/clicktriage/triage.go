package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/clicktriage/clicktriage/internal/advisor"
	"github.com/clicktriage/clicktriage/internal/models"
	"github.com/clicktriage/clicktriage/internal/store"
	"github.com/clicktriage/clicktriage/internal/triage"
	"github.com/clicktriage/clicktriage/pkg/config"
)

// NewTriageCmd creates the triage command group
func NewTriageCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Work slow query cases through the triage workflow",
		Long: `Triage manages the lifecycle of slow query cases: list open work,
start analysis, propose an optimization, and record the measured
outcome. Cases move new -> in_analysis -> waiting_feedback ->
optimized, with ignored and cannot_optimize as exits.`,
	}

	cmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the local sqlite store")

	cmd.AddCommand(newTriageListCmd(cfg))
	cmd.AddCommand(newTriageStartCmd(cfg))
	cmd.AddCommand(newTriageProposeCmd(cfg))
	cmd.AddCommand(newTriageDoneCmd(cfg))
	cmd.AddCommand(newTriageIgnoreCmd(cfg))
	cmd.AddCommand(newTriageDropCmd(cfg))
	cmd.AddCommand(newTriageChecklistCmd())

	return cmd
}

func newTriageListCmd(cfg *config.Config) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List triage cases by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			st, err := openStore(cfg)
			if err != nil {
				return err
			}

			counts, err := st.Cases.CountByStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Cases: new %d, in_analysis %d, waiting_feedback %d, optimized %d, ignored %d, cannot_optimize %d\n",
				counts[models.StatusNew], counts[models.StatusInAnalysis],
				counts[models.StatusWaitingFeedback], counts[models.StatusOptimized],
				counts[models.StatusIgnored], counts[models.StatusCannotOptimize])

			cases, err := st.Cases.ListByStatus(ctx, models.CaseStatus(status), limit)
			if err != nil {
				return err
			}
			if len(cases) == 0 {
				fmt.Printf("No cases in status %q.\n", status)
				return nil
			}

			for _, c := range cases {
				rec, err := st.Records.FindByID(ctx, c.RecordID)
				if err != nil {
					return err
				}
				line := fmt.Sprintf("#%d  record %d", c.ID, c.RecordID)
				if rec != nil {
					line += fmt.Sprintf("  %.0fms  %s", rec.DurationMs, truncateSQL(rec.QueryText, 80))
				}
				if c.AssignedTo != "" {
					line += "  (" + c.AssignedTo + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", string(models.StatusNew), "Case status to list")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max cases to show")
	return cmd
}

func newTriageStartCmd(cfg *config.Config) *cobra.Command {
	var assignee string
	var notes string

	cmd := &cobra.Command{
		Use:   "start <case-id>",
		Short: "Move a case into analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cfg, args[0], func(c *models.TriageCase) error {
				return triage.StartAnalysis(c, assignee, notes, time.Now())
			})
		},
	}

	cmd.Flags().StringVar(&assignee, "assignee", "", "Who takes the case")
	cmd.Flags().StringVar(&notes, "notes", "", "Initial analysis notes")
	return cmd
}

func newTriageProposeCmd(cfg *config.Config) *cobra.Command {
	var optimizedQuery string
	var expected float64

	cmd := &cobra.Command{
		Use:   "propose <case-id>",
		Short: "Propose an optimized query for a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cfg, args[0], func(c *models.TriageCase) error {
				return triage.ProposeOptimization(c, optimizedQuery, expected)
			})
		},
	}

	cmd.Flags().StringVar(&optimizedQuery, "query", "", "Proposed rewritten query (required)")
	cmd.Flags().Float64Var(&expected, "expected", 0, "Expected improvement in percent")
	return cmd
}

func newTriageDoneCmd(cfg *config.Config) *cobra.Command {
	var beforeMs float64
	var afterMs float64

	cmd := &cobra.Command{
		Use:   "done <case-id>",
		Short: "Close a case with the measured before/after durations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withCase(cfg, args[0], func(c *models.TriageCase) error {
				return triage.RecordOutcome(c, beforeMs, afterMs, time.Now())
			})
			if err != nil {
				return err
			}
			improvement := (beforeMs - afterMs) / beforeMs * 100
			fmt.Printf("✓ Recorded outcome: %.1f%% improvement\n", improvement)
			return nil
		},
	}

	cmd.Flags().Float64Var(&beforeMs, "before", 0, "Duration before optimization in milliseconds (required)")
	cmd.Flags().Float64Var(&afterMs, "after", 0, "Duration after optimization in milliseconds")
	return cmd
}

func newTriageIgnoreCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <case-id>",
		Short: "Close a case as not worth pursuing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cfg, args[0], triage.Ignore)
		},
	}
}

func newTriageDropCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <case-id>",
		Short: "Close a case because no viable optimization exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCase(cfg, args[0], triage.CannotOptimize)
		},
	}
}

func newTriageChecklistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checklist",
		Short: "Print the optimization best-practices checklist",
		Run: func(cmd *cobra.Command, args []string) {
			for _, group := range advisor.BestPracticesChecklist() {
				cmd.Printf("%s:\n", group.Category)
				for _, item := range group.Items {
					cmd.Printf("  - %s\n", item)
				}
			}
		},
	}
}

// withCase loads a case, applies op, and persists the mutated case.
func withCase(cfg *config.Config, rawID string, op func(*models.TriageCase) error) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid case id %q", rawID)
	}

	ctx := context.Background()
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	return applyCaseOp(ctx, st, id, op)
}

func applyCaseOp(ctx context.Context, st *store.Store, id int64, op func(*models.TriageCase) error) error {
	c, err := st.Cases.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("case %d not found", id)
	}

	if err := op(c); err != nil {
		return err
	}
	if err := st.Cases.Save(ctx, c); err != nil {
		return err
	}

	fmt.Printf("✓ Case %d is now %s\n", c.ID, c.Status)
	return nil
}
