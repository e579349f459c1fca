package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clicktriage/clicktriage/internal/app"
	"github.com/clicktriage/clicktriage/internal/logging"
)

var (
	version    = "1.0.0"
	verbose    bool
	isFirstRun bool
	log        *zap.Logger
)

// Exit codes for structured error reporting.
const (
	ExitSuccess    = 0
	ExitInternal   = 1
	ExitInvalidArg = 2
	ExitNotFound   = 3
	ExitNetwork    = 5
	ExitFindings   = 6
)

// FindingsError indicates the command completed but problems were detected.
type FindingsError struct {
	Count int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d findings detected", e.Count)
}

func main() {
	log = logging.Init(false)
	isFirstRun = app.IsFirstRun(log)

	root := &cobra.Command{
		Use:   "clicktriage",
		Short: "ClickHouse slow query triage",
		Long: `ClickTriage collects slow queries from ClickHouse query logs,
analyzes their execution plans, and tracks each one through a triage
workflow from detection to a measured optimization outcome.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logging.Init(verbose)
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose logging")
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.AddCommand(NewCollectCmd())
	root.AddCommand(NewMonitorCmd())
	root.AddCommand(NewAnalyzeCmd())
	root.AddCommand(NewTriageCmd())
	root.AddCommand(NewVersionCmd())

	if err := root.Execute(); err != nil {
		exitCode := classifyError(err)
		var fe *FindingsError
		if errors.As(err, &fe) {
			log.Info("findings detected", zap.Int("count", fe.Count))
		} else {
			log.Error("command failed", zap.Error(err))
		}
		os.Exit(exitCode)
	}
}

func classifyError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var fe *FindingsError
	if errors.As(err, &fe) {
		return ExitFindings
	}

	if os.IsNotExist(err) {
		return ExitNotFound
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "not a directory") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such file") ||
		strings.Contains(msg, "not found") {
		return ExitNotFound
	}

	if strings.Contains(msg, "dial") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "network is unreachable") {
		return ExitNetwork
	}

	if strings.Contains(msg, "required") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "must be") ||
		strings.Contains(msg, "expected") {
		return ExitInvalidArg
	}

	return ExitInternal
}
