package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrIncomplete is returned by Run when the run reached its end but some
// per-reserve steps failed.
var ErrIncomplete = errors.New("pipeline: run finished with failed steps")

// Accounts are the signing identities of the operator profiles.
type Accounts struct {
	ACL        gateway.Account
	Pool       gateway.Account
	Rate       gateway.Account
	Oracle     gateway.Account
	Underlying gateway.Account
}

// StepRecorder counts step outcomes. *metrics.Metrics implements it.
type StepRecorder interface {
	RecordStep(ctx context.Context, stage, outcome string)
}

type Options struct {
	// Concurrency bounds how many reserves are configured at once after
	// initialization. Values below 2 run them one after the other.
	Concurrency  int
	ValidateRisk bool
	OracleBatch  bool
	VerifyRates  bool
	ExtendedRisk bool

	Steps StepRecorder
	Graph *Graph
}

func DefaultOptions() Options {
	return Options{
		Concurrency:  1,
		ValidateRisk: true,
		OracleBatch:  true,
	}
}

// Orchestrator walks the stage graph for every asset of a plan.
type Orchestrator struct {
	plan     market.Plan
	accounts Accounts
	opts     Options
	graph    *Graph
	registry *market.Registry
	logger   *zap.SugaredLogger

	acl      *AccessControl
	tokens   *TokenFactory
	reserves *ReserveInitializer
	rates    *RateStrategyConfigurator
	oracle   *OracleFeedConfigurator
	risk     *RiskConfigurator

	mu      sync.RWMutex
	current *Report
}

func NewOrchestrator(gw gateway.Gateway, accounts Accounts, fns market.Functions, plan market.Plan, opts Options, logger *zap.SugaredLogger) (*Orchestrator, error) {
	if len(plan.Assets) == 0 {
		return nil, errors.New("pipeline: plan has no assets")
	}
	registry, err := market.NewRegistryFromPlan(plan)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Concurrency > 1 {
		gw = gateway.NewSequencer(gw)
	}
	graph := opts.Graph
	if graph == nil {
		graph = DefaultGraph()
	}
	return &Orchestrator{
		plan:     plan,
		accounts: accounts,
		opts:     opts,
		graph:    graph,
		registry: registry,
		logger:   logger,
		acl:      NewAccessControl(gw, accounts.ACL, fns, logger.With("stage", StageAccessControl)),
		tokens:   NewTokenFactory(gw, accounts.Underlying, fns, registry, logger.With("stage", StageTokens)),
		reserves: NewReserveInitializer(gw, accounts.Pool, fns, registry, logger.With("stage", StageReserves)),
		rates:    NewRateStrategyConfigurator(gw, accounts.Rate, fns, registry, opts.VerifyRates, logger.With("stage", StageRates)),
		oracle:   NewOracleFeedConfigurator(gw, accounts.Oracle, fns, registry, opts.OracleBatch, logger.With("stage", StageOracle)),
		risk:     NewRiskConfigurator(gw, accounts.Pool, fns, registry, opts.ValidateRisk, opts.ExtendedRisk, logger.With("stage", StageRisk)),
	}, nil
}

func (o *Orchestrator) Registry() *market.Registry { return o.registry }

// Progress returns a snapshot of the current or last run.
func (o *Orchestrator) Progress() (Snapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.current == nil {
		return Snapshot{}, false
	}
	return o.current.Snapshot(), true
}

// perReserve reports whether a stage runs once per reserve and tolerates
// failures of other reserves.
func perReserve(s Stage) bool {
	return s == StageRates || s == StageOracle || s == StageRisk
}

// Run executes the bootstrap. A failure in a global stage aborts the run
// and marks every later stage skipped. The exception is a rejected reserve
// batch: reserves outside the batch are still configured and those inside
// it are skipped. Per-reserve failures are recorded and the run continues
// with the other reserves; Run then returns ErrIncomplete.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := newReport(uuid.NewString())
	o.mu.Lock()
	o.current = report
	o.mu.Unlock()
	defer report.finish()

	logger := o.logger.With("run_id", report.RunID())
	logger.Infow("bootstrap started", "symbols", o.plan.Symbols())

	var (
		ready   = o.plan.Symbols()
		blocked []string
		partial error
	)
	for _, level := range o.graph.Levels() {
		var fanout []Stage
		for _, stage := range level {
			if perReserve(stage) {
				fanout = append(fanout, stage)
				continue
			}
			next, err := o.runGlobal(ctx, report, stage)
			if err != nil && batchOnly(stage, err, next) {
				blocked = without(ready, next)
				partial = err
				logger.Warnw("reserve batch failed, configuring reserves outside it",
					"ready", next,
					"blocked", blocked,
					"error", err,
				)
			} else if err != nil {
				o.skipAfter(report, stage)
				logger.Errorw("bootstrap aborted", "stage", stage, "error", err)
				return report, err
			}
			ready = next
		}
		if len(fanout) > 0 {
			o.skipBlocked(ctx, report, fanout, blocked)
			if err := o.runFanout(ctx, report, fanout, ready); err != nil {
				logger.Errorw("bootstrap aborted", "error", err)
				return report, err
			}
		}
	}

	if failed := report.Failed(); len(failed) > 0 {
		logger.Warnw("bootstrap finished with failures", "failed_steps", len(failed))
		return report, errors.Join(fmt.Errorf("%w: %d failed steps", ErrIncomplete, len(failed)), partial)
	}
	logger.Infow("bootstrap finished",
		"underlyings", len(o.registry.Underlyings()),
		"derived", len(o.registry.DerivedTokens()),
		"rate_strategies", len(o.registry.RateStrategies()),
		"risk_configs", len(o.registry.RiskConfigs()),
		"feeds", len(o.registry.Feeds()),
	)
	return report, nil
}

// runGlobal runs one of the stages every reserve depends on. It returns
// the symbols that may proceed.
func (o *Orchestrator) runGlobal(ctx context.Context, report *Report, stage Stage) ([]string, error) {
	symbols := o.plan.Symbols()
	var (
		results []StepResult
		err     error
	)
	switch stage {
	case StageAccessControl:
		results, err = o.acl.EnsureAll(ctx, RequiredGrants(o.accounts))
	case StageTokens:
		results, err = o.createTokens(ctx)
	case StageReserves:
		results, err = o.reserves.InitReserves(ctx, symbols)
	default:
		return nil, fmt.Errorf("pipeline: no runner for stage %s", stage)
	}
	o.record(ctx, report, results...)
	if err != nil {
		report.setStage(stage, OutcomeFailed)
		return settled(results), err
	}
	report.setStage(stage, stageOutcome(results))
	return symbols, nil
}

// batchOnly reports whether err is a rejected reserve batch that leaves
// some reserves ready for configuration.
func batchOnly(stage Stage, err error, ready []string) bool {
	var serr *StepError
	return stage == StageReserves && len(ready) > 0 &&
		errors.As(err, &serr) && serr.Kind == KindAtomicBatch
}

// settled returns the symbols whose steps all applied or already existed.
func settled(results []StepResult) []string {
	failed := make(map[string]bool)
	var out []string
	for _, r := range results {
		if r.Outcome != OutcomeApplied && r.Outcome != OutcomeAlreadyExists {
			failed[r.Symbol] = true
		}
	}
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Symbol == "" || failed[r.Symbol] || seen[r.Symbol] {
			continue
		}
		seen[r.Symbol] = true
		out = append(out, r.Symbol)
	}
	return out
}

func without(all, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, s := range drop {
		skip[s] = true
	}
	var out []string
	for _, s := range all {
		if !skip[s] {
			out = append(out, s)
		}
	}
	return out
}

// skipBlocked records the per-reserve stages of blocked symbols as skipped.
func (o *Orchestrator) skipBlocked(ctx context.Context, report *Report, stages []Stage, blocked []string) {
	for _, sym := range blocked {
		for _, stage := range stages {
			o.record(ctx, report, result(stage, sym, "reserve_not_initialized", OutcomeSkipped, "", nil))
		}
	}
}

func (o *Orchestrator) createTokens(ctx context.Context) ([]StepResult, error) {
	var results []StepResult
	for _, a := range o.plan.Assets {
		r := o.tokens.CreateUnderlyingAsset(ctx, a.Underlying)
		results = append(results, r)
		if r.Outcome == OutcomeFailed {
			return results, r.Err()
		}
	}
	return results, nil
}

// runFanout configures each ready reserve. The stages of one reserve run
// in order; distinct reserves may run concurrently.
func (o *Orchestrator) runFanout(ctx context.Context, report *Report, stages []Stage, symbols []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for _, sym := range symbols {
		g.Go(func() error {
			for _, stage := range stages {
				if err := gctx.Err(); err != nil {
					return err
				}
				o.record(gctx, report, o.configure(gctx, stage, sym)...)
			}
			return nil
		})
	}
	err := g.Wait()
	for _, stage := range stages {
		report.setStage(stage, stageOutcome(report.Filter(func(s StepResult) bool { return s.Stage == stage })))
	}
	return err
}

func (o *Orchestrator) configure(ctx context.Context, stage Stage, symbol string) []StepResult {
	cfg, _ := o.plan.Asset(symbol)
	switch stage {
	case StageRates:
		return []StepResult{o.rates.Configure(ctx, symbol, cfg.Strategy)}
	case StageOracle:
		bindings, err := o.oracle.BindingsFor(symbol, cfg.FeedID)
		if err != nil {
			step := "bind_feeds"
			return []StepResult{result(StageOracle, symbol, step, OutcomeFailed, "", stepError(StageOracle, symbol, step, err))}
		}
		return o.oracle.Bind(ctx, symbol, bindings)
	case StageRisk:
		return o.risk.Configure(ctx, symbol, cfg.Risk)
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, report *Report, results ...StepResult) {
	report.add(results...)
	if o.opts.Steps == nil {
		return
	}
	for _, r := range results {
		o.opts.Steps.RecordStep(ctx, string(r.Stage), string(r.Outcome))
	}
}

func (o *Orchestrator) skipAfter(report *Report, failed Stage) {
	for _, s := range o.graph.Downstream(failed) {
		report.setStage(s, OutcomeSkipped)
	}
}

// stageOutcome folds step outcomes: any failure fails the stage, and a
// stage where nothing was applied already existed.
func stageOutcome(results []StepResult) Outcome {
	outcome := OutcomeAlreadyExists
	for _, r := range results {
		switch r.Outcome {
		case OutcomeFailed:
			return OutcomeFailed
		case OutcomeApplied:
			outcome = OutcomeApplied
		}
	}
	return outcome
}

// Check reports what a run would have to do, without submitting anything.
func (o *Orchestrator) Check(ctx context.Context) (*Report, error) {
	report := newReport(uuid.NewString())
	defer report.finish()

	results, err := o.acl.Check(ctx, RequiredGrants(o.accounts))
	report.add(results...)
	if err != nil {
		return report, err
	}

	for _, a := range o.plan.Assets {
		step := "create_token"
		res, err := o.tokens.Lookup(ctx, a.Underlying.Symbol)
		switch {
		case err == nil:
			if err := o.registry.ResolveUnderlying(a.Underlying.Symbol, res.Metadata, res.Account); err != nil {
				return report, err
			}
			report.add(result(StageTokens, a.Underlying.Symbol, step, OutcomeAlreadyExists, "", nil))
		case errors.Is(err, gateway.ErrNotFound):
			report.add(result(StageTokens, a.Underlying.Symbol, step, OutcomeMissing, "", nil))
		default:
			return report, stepError(StageTokens, a.Underlying.Symbol, step, err)
		}
	}

	results, err = o.reserves.Check(ctx, o.plan.Symbols())
	report.add(results...)
	return report, err
}
