package main

import (
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/config"
	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/log"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/leafsii/reserve-bootstrap/internal/pipeline"
	"github.com/leafsii/reserve-bootstrap/internal/plan"
	"go.uber.org/zap"
)

// env is what every subcommand needs: configuration, a logger, the
// operator accounts and the resolved plan.
type env struct {
	cfg      *config.Config
	logger   *zap.SugaredLogger
	accounts pipeline.Accounts
	fns      market.Functions
	plan     market.Plan
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if planPath != "" {
		cfg.Output.PlanPath = planPath
	}
	if recordPath != "" {
		cfg.Output.RecordPath = recordPath
	}
	if statusAddr != "" {
		cfg.Output.StatusAddr = statusAddr
	}

	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	accounts, err := loadAccounts(cfg)
	if err != nil {
		return nil, err
	}
	pkgs, err := cfg.Packages()
	if err != nil {
		return nil, err
	}
	fns, err := market.NewFunctions(pkgs)
	if err != nil {
		return nil, err
	}

	file, err := plan.Load(cfg.Output.PlanPath)
	if err != nil {
		return nil, err
	}
	treasury := cfg.Treasury()
	if treasury == nil {
		treasury = accounts.Underlying.Address
	}
	p, err := file.Resolve(treasury)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, accounts: accounts, fns: fns, plan: p}, nil
}

func loadAccounts(cfg *config.Config) (pipeline.Accounts, error) {
	byProfile := make(map[market.Profile]gateway.Account, len(market.Profiles))
	for _, p := range market.Profiles {
		signer, err := cfg.Signer(p)
		if err != nil {
			return pipeline.Accounts{}, err
		}
		byProfile[p] = gateway.NewAccount(string(p), signer)
	}
	return pipeline.Accounts{
		ACL:        byProfile[market.ProfileACL],
		Pool:       byProfile[market.ProfilePool],
		Rate:       byProfile[market.ProfileRate],
		Oracle:     byProfile[market.ProfileOracle],
		Underlying: byProfile[market.ProfileUnderlying],
	}, nil
}

func (e *env) all() []gateway.Account {
	return []gateway.Account{e.accounts.ACL, e.accounts.Pool, e.accounts.Rate, e.accounts.Oracle, e.accounts.Underlying}
}

func (e *env) chain(recorder gateway.Recorder) gateway.Gateway {
	var gw gateway.Gateway = gateway.NewSui(e.cfg.Sui.RPCURL, gateway.SuiOptions{
		GasBudget:         e.cfg.Sui.GasBudget,
		RequestsPerSecond: e.cfg.Sui.RPS,
	}, e.logger.With("component", "gateway"))
	gw = gateway.NewRetrying(gw, gateway.RetryOptions{
		MaxRetries: e.cfg.Sui.TxMaxRetries,
		Base:       e.cfg.Sui.TxRetryBase,
	}, e.logger.With("component", "retry"))
	if recorder != nil {
		gw = gateway.NewInstrumented(gw, recorder)
	}
	return gw
}

func (e *env) options(steps pipeline.StepRecorder) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Concurrency = e.cfg.Pipeline.Concurrency
	opts.ValidateRisk = e.cfg.Pipeline.ValidateRisk
	opts.OracleBatch = e.cfg.Pipeline.OracleBatch
	opts.VerifyRates = e.cfg.Pipeline.VerifyRates
	opts.ExtendedRisk = e.cfg.Pipeline.ExtendedRisk
	opts.Steps = steps
	return opts
}
