package market

import (
	"errors"
	"fmt"
)

// RateStrategyParams parameterizes the piecewise-linear borrow rate
// curve of a reserve. Values are shared between reserves and never
// mutated after construction.
type RateStrategyParams struct {
	Name                          string
	OptimalUsageRatio             Ray `yaml:"optimal_usage_ratio"`
	BaseVariableBorrowRate        Ray `yaml:"base_variable_borrow_rate"`
	VariableRateSlope1            Ray `yaml:"variable_rate_slope1"`
	VariableRateSlope2            Ray `yaml:"variable_rate_slope2"`
	StableRateSlope1              Ray `yaml:"stable_rate_slope1"`
	StableRateSlope2              Ray `yaml:"stable_rate_slope2"`
	BaseStableRateOffset          Ray `yaml:"base_stable_rate_offset"`
	StableRateExcessOffset        Ray `yaml:"stable_rate_excess_offset"`
	OptimalStableToTotalDebtRatio Ray `yaml:"optimal_stable_to_total_debt_ratio"`
}

// MaxVariableBorrowRate is the rate at 100% utilization.
func (p RateStrategyParams) MaxVariableBorrowRate() Ray {
	sum := p.BaseVariableBorrowRate.Int()
	sum.Add(sum, p.VariableRateSlope1.Int())
	sum.Add(sum, p.VariableRateSlope2.Int())
	return NewRay(sum)
}

// Validate checks the curve is well formed. The protocol applies its
// own checks on submission.
func (p RateStrategyParams) Validate() error {
	if p.OptimalUsageRatio.IsZero() {
		return errors.New("market: optimal usage ratio must be positive")
	}
	if p.OptimalUsageRatio.Cmp(RayOne()) > 0 {
		return fmt.Errorf("market: optimal usage ratio %s exceeds 100%%", p.OptimalUsageRatio.Percent())
	}
	return nil
}

// SameVariableCurve reports whether the variable-rate part of two
// strategies matches. The stable fields are not submitted, so they
// are ignored.
func (p RateStrategyParams) SameVariableCurve(o RateStrategyParams) bool {
	return p.OptimalUsageRatio.Equal(o.OptimalUsageRatio) &&
		p.BaseVariableBorrowRate.Equal(o.BaseVariableBorrowRate) &&
		p.VariableRateSlope1.Equal(o.VariableRateSlope1) &&
		p.VariableRateSlope2.Equal(o.VariableRateSlope2)
}
