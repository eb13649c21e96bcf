package market

import (
	"errors"
	"fmt"
)

// BasisPoints is 100% expressed in basis points.
const BasisPoints = 10_000

var ErrInvalidRisk = errors.New("market: invalid risk parameters")

// RiskParams are the collateral and lending knobs of a reserve.
// Ratios are basis points, caps are whole tokens where 0 means unlimited.
type RiskParams struct {
	BaseLTV                 uint64 `yaml:"base_ltv"`
	LiquidationThreshold    uint64 `yaml:"liquidation_threshold"`
	LiquidationBonus        uint64 `yaml:"liquidation_bonus"`
	LiquidationProtocolFee  uint64 `yaml:"liquidation_protocol_fee"`
	ReserveFactor           uint64 `yaml:"reserve_factor"`
	SupplyCap               uint64 `yaml:"supply_cap"`
	BorrowCap               uint64 `yaml:"borrow_cap"`
	DebtCeiling             uint64 `yaml:"debt_ceiling"`
	BorrowingEnabled        bool   `yaml:"borrowing_enabled"`
	FlashLoanEnabled        bool   `yaml:"flash_loan_enabled"`
	IsolationModeBorrowable bool   `yaml:"borrowable_in_isolation"`
}

// Validate mirrors the checks the pool configurator applies to
// configure_reserve_as_collateral and the setters that follow it.
func (p RiskParams) Validate() error {
	var errs []error
	if p.BaseLTV > p.LiquidationThreshold {
		errs = append(errs, fmt.Errorf("ltv %d above liquidation threshold %d", p.BaseLTV, p.LiquidationThreshold))
	}
	if p.LiquidationThreshold > BasisPoints {
		errs = append(errs, fmt.Errorf("liquidation threshold %d above %d", p.LiquidationThreshold, BasisPoints))
	}
	if p.LiquidationThreshold != 0 {
		if p.LiquidationBonus <= BasisPoints {
			errs = append(errs, fmt.Errorf("liquidation bonus %d must exceed %d", p.LiquidationBonus, BasisPoints))
		} else if p.LiquidationThreshold*p.LiquidationBonus/BasisPoints > BasisPoints {
			errs = append(errs, fmt.Errorf("threshold %d with bonus %d leaves collateral undercovered", p.LiquidationThreshold, p.LiquidationBonus))
		}
	} else if p.LiquidationBonus != 0 {
		errs = append(errs, errors.New("liquidation bonus set on a reserve that is not collateral"))
	}
	if p.ReserveFactor > BasisPoints {
		errs = append(errs, fmt.Errorf("reserve factor %d above %d", p.ReserveFactor, BasisPoints))
	}
	if p.LiquidationProtocolFee > BasisPoints {
		errs = append(errs, fmt.Errorf("liquidation protocol fee %d above %d", p.LiquidationProtocolFee, BasisPoints))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRisk, errors.Join(errs...))
}
