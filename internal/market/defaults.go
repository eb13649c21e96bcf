package market

import (
	"sort"
	"strings"

	"github.com/pattonkan/sui-go/sui"
)

const (
	DefaultDecimals  uint8 = 8
	DefaultMaxSupply       = "100000000000000000"
)

// RateStrategyStableTwo is the curve applied to every default reserve:
// 80% optimal usage, 0% base, 4% and 75% slopes.
var RateStrategyStableTwo = RateStrategyParams{
	Name:                          "stable-two",
	OptimalUsageRatio:             MustParseRay("800000000000000000000000000"),
	BaseVariableBorrowRate:        MustParseRay("0"),
	VariableRateSlope1:            MustParseRay("40000000000000000000000000"),
	VariableRateSlope2:            MustParseRay("750000000000000000000000000"),
	StableRateSlope1:              MustParseRay("20000000000000000000000000"),
	StableRateSlope2:              MustParseRay("750000000000000000000000000"),
	BaseStableRateOffset:          MustParseRay("20000000000000000000000000"),
	StableRateExcessOffset:        MustParseRay("50000000000000000000000000"),
	OptimalStableToTotalDebtRatio: MustParseRay("200000000000000000000000000"),
}

var RateStrategyVolatileOne = RateStrategyParams{
	Name:                          "volatile-one",
	OptimalUsageRatio:             MustParseRay("450000000000000000000000000"),
	BaseVariableBorrowRate:        MustParseRay("0"),
	VariableRateSlope1:            MustParseRay("70000000000000000000000000"),
	VariableRateSlope2:            MustParseRay("3000000000000000000000000000"),
	StableRateSlope1:              MustParseRay("70000000000000000000000000"),
	StableRateSlope2:              MustParseRay("3000000000000000000000000000"),
	BaseStableRateOffset:          MustParseRay("20000000000000000000000000"),
	StableRateExcessOffset:        MustParseRay("50000000000000000000000000"),
	OptimalStableToTotalDebtRatio: MustParseRay("200000000000000000000000000"),
}

// RateStrategies indexes the built-in curves by name.
var RateStrategies = map[string]RateStrategyParams{
	RateStrategyStableTwo.Name:   RateStrategyStableTwo,
	RateStrategyVolatileOne.Name: RateStrategyVolatileOne,
}

// RiskProfiles holds the built-in risk tables keyed by lower-case symbol.
var RiskProfiles = map[string]RiskParams{
	"dai": {
		BaseLTV: 7500, LiquidationThreshold: 8000, LiquidationBonus: 10500,
		LiquidationProtocolFee: 1000, ReserveFactor: 1000,
		BorrowingEnabled: true, FlashLoanEnabled: true, IsolationModeBorrowable: true,
	},
	"usdc": {
		BaseLTV: 8000, LiquidationThreshold: 8500, LiquidationBonus: 10500,
		LiquidationProtocolFee: 1000, ReserveFactor: 1000,
		BorrowingEnabled: true, FlashLoanEnabled: true, IsolationModeBorrowable: true,
	},
	"usdt": {
		BaseLTV: 7500, LiquidationThreshold: 8000, LiquidationBonus: 10500,
		LiquidationProtocolFee: 1000, ReserveFactor: 1000, DebtCeiling: 1_000_000,
		BorrowingEnabled: true, FlashLoanEnabled: true, IsolationModeBorrowable: true,
	},
	"eurs": {
		BaseLTV: 8000, LiquidationThreshold: 8500, LiquidationBonus: 10500,
		LiquidationProtocolFee: 1000, ReserveFactor: 1000, DebtCeiling: 1_000_000,
		BorrowingEnabled: true, FlashLoanEnabled: true,
	},
	"weth": {
		BaseLTV: 8000, LiquidationThreshold: 8250, LiquidationBonus: 10500,
		LiquidationProtocolFee: 1000, ReserveFactor: 1000,
		BorrowingEnabled: true, FlashLoanEnabled: true,
	},
	"wbtc": {
		BaseLTV: 7000, LiquidationThreshold: 7500, LiquidationBonus: 11000,
		LiquidationProtocolFee: 1000, ReserveFactor: 2000,
		BorrowingEnabled: true, FlashLoanEnabled: true,
	},
	"link": {
		BaseLTV: 7000, LiquidationThreshold: 7500, LiquidationBonus: 11000,
		LiquidationProtocolFee: 1000, ReserveFactor: 2000,
		BorrowingEnabled: true, FlashLoanEnabled: true,
	},
	"aave": {
		BaseLTV: 5000, LiquidationThreshold: 6500, LiquidationBonus: 11000,
		LiquidationProtocolFee: 1000, ReserveFactor: 0,
	},
}

// RiskProfileNames returns the built-in profile names sorted.
func RiskProfileNames() []string {
	names := make([]string, 0, len(RiskProfiles))
	for n := range RiskProfiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultSymbols is the listing order of the default market.
var DefaultSymbols = []string{"DAI", "WETH", "USDC", "AAVE"}

// DefaultPlan builds the four-reserve market. Feed ids come from the
// caller; symbols without a feed get none and fail the oracle step.
func DefaultPlan(treasury *sui.Address, feeds map[string][]byte) Plan {
	plan := Plan{Treasury: treasury}
	for _, sym := range DefaultSymbols {
		plan.Assets = append(plan.Assets, AssetConfig{
			Underlying: UnderlyingAsset{
				Name:      sym,
				Symbol:    sym,
				Decimals:  DefaultDecimals,
				MaxSupply: DefaultMaxSupply,
				Treasury:  treasury,
			},
			Strategy: RateStrategyStableTwo,
			Risk:     RiskProfiles[strings.ToLower(sym)],
			FeedID:   feeds[sym],
		})
	}
	return plan
}

