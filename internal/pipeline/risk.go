package pipeline

import (
	"context"
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"go.uber.org/zap"
)

// RiskConfigurator applies collateral and lending parameters to a reserve.
type RiskConfigurator struct {
	gw       gateway.Gateway
	account  gateway.Account
	fns      market.Functions
	registry *market.Registry
	logger   *zap.SugaredLogger

	validate bool
	extended bool
}

func NewRiskConfigurator(gw gateway.Gateway, account gateway.Account, fns market.Functions, registry *market.Registry, validate, extended bool, logger *zap.SugaredLogger) *RiskConfigurator {
	return &RiskConfigurator{
		gw:       gw,
		account:  account,
		fns:      fns,
		registry: registry,
		logger:   logger,
		validate: validate,
		extended: extended,
	}
}

type riskCall struct {
	function string
	args     []gateway.Arg
}

// calls lists the configurator entry points in the order they must be
// submitted. Collateral comes first: later setters check it.
func (c *RiskConfigurator) calls(p market.RiskParams) []riskCall {
	calls := []riskCall{
		{"configure_reserve_as_collateral", []gateway.Arg{
			gateway.U64(p.BaseLTV), gateway.U64(p.LiquidationThreshold), gateway.U64(p.LiquidationBonus),
		}},
		{"set_reserve_borrowing", []gateway.Arg{gateway.Bool(p.BorrowingEnabled)}},
		{"set_reserve_flash_loaning", []gateway.Arg{gateway.Bool(p.FlashLoanEnabled)}},
		{"set_reserve_factor", []gateway.Arg{gateway.U64(p.ReserveFactor)}},
		{"set_borrow_cap", []gateway.Arg{gateway.U64(p.BorrowCap)}},
		{"set_supply_cap", []gateway.Arg{gateway.U64(p.SupplyCap)}},
	}
	if c.extended {
		calls = append(calls,
			riskCall{"set_liquidation_protocol_fee", []gateway.Arg{gateway.U64(p.LiquidationProtocolFee)}},
			riskCall{"set_debt_ceiling", []gateway.Arg{gateway.U64(p.DebtCeiling)}},
			riskCall{"set_borrowable_in_isolation", []gateway.Arg{gateway.Bool(p.IsolationModeBorrowable)}},
		)
	}
	return calls
}

// Configure submits the risk calls for symbol in order. The first failure
// stops the sequence and the remaining calls are reported as skipped.
func (c *RiskConfigurator) Configure(ctx context.Context, symbol string, params market.RiskParams) []StepResult {
	calls := c.calls(params)
	skipRest := func(results []StepResult, from int) []StepResult {
		for _, call := range calls[from:] {
			results = append(results, result(StageRisk, symbol, call.function, OutcomeSkipped, "", nil))
		}
		return results
	}

	asset, ok := c.registry.Underlying(symbol)
	if !ok || !asset.Resolved() {
		err := stepError(StageRisk, symbol, calls[0].function, fmt.Errorf("%w: underlying %s", ErrUnresolved, symbol))
		return skipRest([]StepResult{result(StageRisk, symbol, calls[0].function, OutcomeFailed, "", err)}, 1)
	}
	if c.validate {
		if err := params.Validate(); err != nil {
			serr := stepError(StageRisk, symbol, "validate", fmt.Errorf("%w: %v", ErrInvalidParams, err))
			return skipRest([]StepResult{result(StageRisk, symbol, "validate", OutcomeFailed, "", serr)}, 0)
		}
	}

	results := make([]StepResult, 0, len(calls))
	for i, call := range calls {
		args := append([]gateway.Arg{gateway.Address(asset.AccountAddress)}, call.args...)
		digest, err := submit(ctx, c.gw, c.account, c.fns.PoolConfigurator(call.function), args...)
		if err != nil {
			serr := stepError(StageRisk, symbol, call.function, err)
			results = append(results, result(StageRisk, symbol, call.function, OutcomeFailed, digest, serr))
			c.logger.Warnw("risk configuration stopped",
				"symbol", symbol,
				"function", call.function,
				"error", err,
			)
			return skipRest(results, i+1)
		}
		results = append(results, result(StageRisk, symbol, call.function, OutcomeApplied, digest, nil))
	}

	c.registry.RecordRiskConfig(market.RiskBinding{Symbol: symbol, Asset: asset.AccountAddress, Params: params})
	c.logger.Infow("risk parameters set",
		"symbol", symbol,
		"ltv", params.BaseLTV,
		"liquidation_threshold", params.LiquidationThreshold,
		"borrowing", params.BorrowingEnabled,
	)
	return results
}
