package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/pattonkan/sui-go/sui"
	"go.uber.org/zap"
)

// ReserveInitializer lists reserves in one atomic batch and resolves the
// derived tokens the protocol creates for them.
type ReserveInitializer struct {
	gw       gateway.Gateway
	pool     gateway.Account
	fns      market.Functions
	registry *market.Registry
	logger   *zap.SugaredLogger
}

func NewReserveInitializer(gw gateway.Gateway, pool gateway.Account, fns market.Functions, registry *market.Registry, logger *zap.SugaredLogger) *ReserveInitializer {
	return &ReserveInitializer{gw: gw, pool: pool, fns: fns, registry: registry, logger: logger}
}

// LookupDerived reads the addresses of a derived token. Derived tokens
// are namespaced by the pool account that created them.
func (r *ReserveInitializer) LookupDerived(ctx context.Context, kind market.DerivedKind, symbol string) (Resolution, error) {
	return lookupToken(ctx, r.gw, r.fns.DerivedMetadata(kind), r.fns.DerivedAccount(kind),
		gateway.Address(r.pool.Address), gateway.String(symbol))
}

// resolveDerived resolves both derived tokens of an underlying. It
// returns ErrNotFound when the reserve has not been initialized. The
// registry is only written once every token has been found.
func (r *ReserveInitializer) resolveDerived(ctx context.Context, underlying string) error {
	tokens := r.registry.DerivedFor(underlying)
	found := make([]Resolution, len(tokens))
	for i, t := range tokens {
		res, err := r.LookupDerived(ctx, t.Kind, t.Symbol)
		if err != nil {
			return err
		}
		found[i] = res
	}
	for i, t := range tokens {
		if err := r.registry.ResolveDerived(t.Symbol, found[i].Metadata, found[i].Account); err != nil {
			return err
		}
	}
	return nil
}

// InitReserves initializes the reserves of symbols. Reserves that already
// exist are resolved and reported as such. The rest are submitted in a
// single init_reserves call: either all of them are created or none.
func (r *ReserveInitializer) InitReserves(ctx context.Context, symbols []string) ([]StepResult, error) {
	const step = "init_reserves"
	var (
		results []StepResult
		pending []market.UnderlyingAsset
	)
	for _, sym := range symbols {
		asset, ok := r.registry.Underlying(sym)
		if !ok {
			err := stepError(StageReserves, sym, step, fmt.Errorf("%w: %s", market.ErrUnknownSymbol, sym))
			return append(results, result(StageReserves, sym, step, OutcomeFailed, "", err)), err
		}
		if !asset.Resolved() {
			err := stepError(StageReserves, sym, step, fmt.Errorf("%w: underlying %s", ErrUnresolved, sym))
			return append(results, result(StageReserves, sym, step, OutcomeFailed, "", err)), err
		}
		err := r.resolveDerived(ctx, sym)
		switch {
		case err == nil:
			r.logger.Infow("reserve already initialized", "symbol", sym)
			results = append(results, result(StageReserves, sym, step, OutcomeAlreadyExists, "", nil))
		case errors.Is(err, gateway.ErrNotFound):
			pending = append(pending, asset)
		default:
			serr := stepError(StageReserves, sym, step, err)
			return append(results, result(StageReserves, sym, step, OutcomeFailed, "", serr)), serr
		}
	}
	if len(pending) == 0 {
		return results, nil
	}

	var (
		assets     []*sui.Address
		treasuries []*sui.Address
		yieldNames []string
		yieldSyms  []string
		debtNames  []string
		debtSyms   []string
	)
	for _, a := range pending {
		assets = append(assets, a.AccountAddress)
		treasuries = append(treasuries, a.Treasury)
		for _, t := range r.registry.DerivedFor(a.Symbol) {
			if t.Kind == market.KindYield {
				yieldNames = append(yieldNames, t.Name)
				yieldSyms = append(yieldSyms, t.Symbol)
			} else {
				debtNames = append(debtNames, t.Name)
				debtSyms = append(debtSyms, t.Symbol)
			}
		}
	}

	digest, err := submit(ctx, r.gw, r.pool, r.fns.InitReserves(),
		gateway.AddressVector(assets),
		gateway.AddressVector(treasuries),
		gateway.StringVector(yieldNames),
		gateway.StringVector(yieldSyms),
		gateway.StringVector(debtNames),
		gateway.StringVector(debtSyms),
	)
	if err != nil {
		batchErr := &StepError{Stage: StageReserves, Step: step, Kind: KindAtomicBatch, Err: err}
		if k := kindOf(err); k == KindCanceled || k == KindTransient {
			batchErr.Kind = k
		}
		for _, a := range pending {
			results = append(results, result(StageReserves, a.Symbol, step, OutcomeFailed, digest, batchErr))
		}
		r.logger.Errorw("reserve batch failed",
			"symbols", symbolsOf(pending),
			"digest", digest,
			"error", err,
		)
		return results, batchErr
	}
	r.logger.Infow("reserves initialized", "symbols", symbolsOf(pending), "digest", digest)

	for _, a := range pending {
		if err := r.resolveDerived(ctx, a.Symbol); err != nil {
			serr := stepError(StageReserves, a.Symbol, "resolve_derived", fmt.Errorf("after init_reserves: %w", err))
			return append(results, result(StageReserves, a.Symbol, step, OutcomeFailed, digest, serr)), serr
		}
		results = append(results, result(StageReserves, a.Symbol, step, OutcomeApplied, digest, nil))
	}
	return results, nil
}

// Check reports which reserves exist without submitting anything.
func (r *ReserveInitializer) Check(ctx context.Context, symbols []string) ([]StepResult, error) {
	var results []StepResult
	for _, sym := range symbols {
		for _, t := range r.registry.DerivedFor(sym) {
			_, err := r.LookupDerived(ctx, t.Kind, t.Symbol)
			switch {
			case err == nil:
				results = append(results, result(StageReserves, sym, t.Symbol, OutcomeAlreadyExists, "", nil))
			case errors.Is(err, gateway.ErrNotFound):
				results = append(results, result(StageReserves, sym, t.Symbol, OutcomeMissing, "", nil))
			default:
				return results, stepError(StageReserves, sym, t.Symbol, err)
			}
		}
	}
	return results, nil
}

func symbolsOf(assets []market.UnderlyingAsset) []string {
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		out = append(out, a.Symbol)
	}
	return out
}
