package pipeline

import (
	"context"
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/pattonkan/sui-go/sui"
	"go.uber.org/zap"
)

// RateStrategyConfigurator binds a rate curve to each reserve.
type RateStrategyConfigurator struct {
	gw       gateway.Gateway
	account  gateway.Account
	fns      market.Functions
	registry *market.Registry
	logger   *zap.SugaredLogger
	verify   bool
}

func NewRateStrategyConfigurator(gw gateway.Gateway, account gateway.Account, fns market.Functions, registry *market.Registry, verify bool, logger *zap.SugaredLogger) *RateStrategyConfigurator {
	return &RateStrategyConfigurator{gw: gw, account: account, fns: fns, registry: registry, verify: verify, logger: logger}
}

// Configure submits the variable-rate curve of params for the reserve of
// symbol. When verification is on, the stored curve is read back and
// compared with what was sent.
func (c *RateStrategyConfigurator) Configure(ctx context.Context, symbol string, params market.RateStrategyParams) StepResult {
	const step = "set_reserve_interest_rate_strategy"
	fail := func(digest string, err error) StepResult {
		return result(StageRates, symbol, step, OutcomeFailed, digest, stepError(StageRates, symbol, step, err))
	}

	asset, ok := c.registry.Underlying(symbol)
	if !ok || !asset.Resolved() {
		return fail("", fmt.Errorf("%w: underlying %s", ErrUnresolved, symbol))
	}
	if err := params.Validate(); err != nil {
		return fail("", fmt.Errorf("%w: %v", ErrInvalidParams, err))
	}

	digest, err := submit(ctx, c.gw, c.account, c.fns.SetRateStrategy(),
		gateway.Address(asset.AccountAddress),
		gateway.U256(params.OptimalUsageRatio.String()),
		gateway.U256(params.BaseVariableBorrowRate.String()),
		gateway.U256(params.VariableRateSlope1.String()),
		gateway.U256(params.VariableRateSlope2.String()),
	)
	if err != nil {
		return fail(digest, err)
	}

	if c.verify {
		stored, err := c.ReadStrategy(ctx, asset.AccountAddress)
		if err != nil {
			return fail(digest, fmt.Errorf("read back: %w", err))
		}
		if !stored.SameVariableCurve(params) {
			return fail(digest, fmt.Errorf("%w: optimal %s base %s slope1 %s slope2 %s",
				ErrVerification,
				stored.OptimalUsageRatio, stored.BaseVariableBorrowRate,
				stored.VariableRateSlope1, stored.VariableRateSlope2))
		}
	}

	c.registry.RecordRateStrategy(market.RateBinding{Symbol: symbol, Asset: asset.AccountAddress, Params: params})
	c.logger.Infow("rate strategy set",
		"symbol", symbol,
		"strategy", params.Name,
		"optimal_usage", params.OptimalUsageRatio.Percent(),
		"digest", digest,
	)
	return result(StageRates, symbol, step, OutcomeApplied, digest, nil)
}

// ReadStrategy returns the variable-rate curve stored for asset.
func (c *RateStrategyConfigurator) ReadStrategy(ctx context.Context, asset *sui.Address) (market.RateStrategyParams, error) {
	views := []string{
		market.ViewOptimalUsageRatio,
		market.ViewBaseVariableBorrowRate,
		market.ViewVariableRateSlope1,
		market.ViewVariableRateSlope2,
	}
	rays := make([]market.Ray, len(views))
	for i, v := range views {
		dec, err := viewUint(ctx, c.gw, c.fns.RateView(v), gateway.Address(asset))
		if err != nil {
			return market.RateStrategyParams{}, err
		}
		r, err := market.ParseRay(dec)
		if err != nil {
			return market.RateStrategyParams{}, err
		}
		rays[i] = r
	}
	return market.RateStrategyParams{
		OptimalUsageRatio:      rays[0],
		BaseVariableBorrowRate: rays[1],
		VariableRateSlope1:     rays[2],
		VariableRateSlope2:     rays[3],
	}, nil
}
