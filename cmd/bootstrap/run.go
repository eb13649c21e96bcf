package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/leafsii/reserve-bootstrap/cmd/bootstrap/pkg"
	"github.com/leafsii/reserve-bootstrap/internal/metrics"
	"github.com/leafsii/reserve-bootstrap/internal/pipeline"
	"github.com/leafsii/reserve-bootstrap/internal/record"
	"github.com/leafsii/reserve-bootstrap/internal/status"
	"github.com/leafsii/reserve-bootstrap/pkg/kv"
	_ "github.com/leafsii/reserve-bootstrap/pkg/kv/memory"
	_ "github.com/leafsii/reserve-bootstrap/pkg/kv/redis"
	"github.com/pattonkan/sui-go/suiclient"
	"github.com/pattonkan/sui-go/suiclient/conn"
	"github.com/spf13/cobra"
)

const defaultLeaseTTL = 30 * time.Minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bootstrap",
	Long: `Run every bootstrap stage for the plan.

Global stages (roles, tokens, reserve initialization) abort the run on
failure. Per-reserve stages (rate strategies, price feeds, risk) record
failures and carry on with the other reserves. The deployment record is
written in both cases; the exit status is non-zero if anything failed.`,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	logger := e.logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, metricsHandler, err := metrics.Setup("reserve-bootstrap")
	if err != nil {
		return fmt.Errorf("failed to setup metrics: %w", err)
	}

	fund, _ := cmd.Flags().GetBool("fund")
	if fund || e.cfg.Sui.FundOnLocal {
		if err := e.fundOperators(); err != nil {
			return err
		}
	}

	orch, err := pipeline.NewOrchestrator(e.chain(m), e.accounts, e.fns, e.plan, e.options(m), logger.With("component", "orchestrator"))
	if err != nil {
		return err
	}

	store, err := kv.Open(kv.Config{
		Backend:  kv.Backend(e.cfg.Output.KVBackend),
		RedisURL: e.cfg.Output.RedisURL,
		Strict:   e.cfg.Output.KVStrict,
		Logf:     logger.Infow,
	})
	if err != nil {
		return fmt.Errorf("failed to open kv store: %w", err)
	}
	defer store.Close()

	publisher := record.NewPublisher(store, logger.With("component", "record"))
	ttl, _ := cmd.Flags().GetDuration("lease-ttl")
	release, err := publisher.Acquire(ctx, e.cfg.Sui.Network, uuid.NewString(), ttl)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			logger.Warnw("failed to release bootstrap lease", "error", err)
		}
	}()

	if addr := e.cfg.Output.StatusAddr; addr != "" {
		srv := status.New(orch, metricsHandler, logger.With("component", "status"))
		statusCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := srv.Serve(statusCtx, addr); err != nil {
				logger.Errorw("status server stopped", "error", err)
			}
		}()
	}

	logger.Infow("Starting bootstrap",
		"network", e.cfg.Sui.Network,
		"rpc", e.cfg.Sui.RPCURL,
		"symbols", e.plan.Symbols(),
		"concurrency", e.cfg.Pipeline.Concurrency,
	)

	report, runErr := orch.Run(ctx)
	rec := record.Build(e.cfg.Sui.Network, orch.Registry(), report.Snapshot())

	if prev, err := pkg.ReadRecord(e.cfg.Output.RecordPath); err == nil {
		if prev.Network != "" && prev.Network != rec.Network {
			logger.Warnw("replacing deployment record of another network",
				"path", e.cfg.Output.RecordPath,
				"previous_network", prev.Network,
				"previous_run_id", prev.RunID,
			)
		} else {
			logger.Debugw("replacing deployment record", "previous_run_id", prev.RunID)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.Warnw("existing deployment record unreadable", "path", e.cfg.Output.RecordPath, "error", err)
	}
	if err := pkg.WriteRecord(e.cfg.Output.RecordPath, rec); err != nil {
		logger.Errorw("failed to write deployment record", "path", e.cfg.Output.RecordPath, "error", err)
	} else {
		logger.Infow("deployment record written", "path", e.cfg.Output.RecordPath)
	}
	if err := publisher.Publish(context.Background(), rec); err != nil {
		logger.Warnw("failed to publish deployment record", "error", err)
	}

	if jsonOut {
		if err := printJSON(report.Snapshot()); err != nil {
			return err
		}
	} else {
		printSummary(report)
	}

	if errors.Is(runErr, pipeline.ErrIncomplete) {
		return fmt.Errorf("bootstrap incomplete: %d failed steps", len(report.Failed()))
	}
	return runErr
}

// fundOperators asks the localnet faucet for gas for every operator.
func (e *env) fundOperators() error {
	if !e.cfg.IsLocalnet() {
		return errors.New("--fund is only available on localnet")
	}
	seen := make(map[string]bool)
	for _, a := range e.all() {
		key := a.Address.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := suiclient.RequestFundFromFaucet(a.Address, conn.LocalnetFaucetUrl); err != nil {
			return fmt.Errorf("failed to fund %s: %w", a, err)
		}
		e.logger.Infow("operator funded", "profile", a.Profile, "address", key)
	}
	return nil
}
