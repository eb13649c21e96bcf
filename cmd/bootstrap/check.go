package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leafsii/reserve-bootstrap/internal/pipeline"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report what a run would have to do",
	Long: `Read chain state without submitting anything and report, per step,
whether the role, token or reserve already exists or is missing.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := pipeline.NewOrchestrator(e.chain(nil), e.accounts, e.fns, e.plan, e.options(nil), e.logger)
	if err != nil {
		return err
	}
	report, err := orch.Check(ctx)
	if jsonOut {
		if perr := printJSON(report.Snapshot()); perr != nil {
			return perr
		}
	} else {
		printSummary(report)
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	return nil
}
