package market

import (
	"sync"
	"testing"

	"github.com/pattonkan/sui-go/sui"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRayNotations(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"80%", "800000000000000000000000000"},
		{"0.04", "40000000000000000000000000"},
		{"4%", "40000000000000000000000000"},
		{"750000000000000000000000000", "750000000000000000000000000"},
		{"0", "0"},
		{"300%", "3000000000000000000000000000"},
	}
	for _, tt := range tests {
		var r Ray
		require.NoError(t, r.UnmarshalText([]byte(tt.in)), tt.in)
		assert.Equal(t, tt.want, r.String(), tt.in)
	}
}

func TestRayRejectsBadInput(t *testing.T) {
	var r Ray
	assert.ErrorIs(t, r.UnmarshalText([]byte("-1%")), ErrInvalidRay)
	assert.ErrorIs(t, r.UnmarshalText([]byte("abc")), ErrInvalidRay)
	assert.ErrorIs(t, r.UnmarshalText([]byte("")), ErrInvalidRay)

	_, err := RayFromDecimal(decimal.RequireFromString("0.0000000000000000000000000001"))
	assert.ErrorIs(t, err, ErrInvalidRay)
}

func TestRayPercentAndDecimal(t *testing.T) {
	assert.Equal(t, "80%", RateStrategyStableTwo.OptimalUsageRatio.Percent())
	assert.True(t, RateStrategyStableTwo.OptimalUsageRatio.Decimal().Equal(decimal.RequireFromString("0.8")))
	assert.Equal(t, "790000000000000000000000000", RateStrategyStableTwo.MaxVariableBorrowRate().String())
}

func TestRayYAML(t *testing.T) {
	var s RateStrategyParams
	err := yaml.Unmarshal([]byte(`
optimal_usage_ratio: "80%"
base_variable_borrow_rate: "0"
variable_rate_slope1: "0.04"
variable_rate_slope2: "750000000000000000000000000"
`), &s)
	require.NoError(t, err)
	assert.True(t, s.SameVariableCurve(RateStrategyStableTwo))
}

func TestRateStrategyValidate(t *testing.T) {
	require.NoError(t, RateStrategyStableTwo.Validate())

	bad := RateStrategyStableTwo
	bad.OptimalUsageRatio = MustParseRay("1000000000000000000000000001")
	assert.Error(t, bad.Validate())
}

func TestRiskValidate(t *testing.T) {
	for _, name := range RiskProfileNames() {
		assert.NoError(t, RiskProfiles[name].Validate(), name)
	}

	cases := map[string]RiskParams{
		"ltv above threshold":      {BaseLTV: 8500, LiquidationThreshold: 8000, LiquidationBonus: 10500},
		"bonus not above par":      {BaseLTV: 7000, LiquidationThreshold: 8000, LiquidationBonus: 10000},
		"undercovered":             {BaseLTV: 9000, LiquidationThreshold: 9800, LiquidationBonus: 10500},
		"reserve factor":           {ReserveFactor: 10001},
		"bonus without collateral": {LiquidationBonus: 10500},
	}
	for name, p := range cases {
		assert.ErrorIs(t, p.Validate(), ErrInvalidRisk, name)
	}
}

func TestDefaultPlan(t *testing.T) {
	treasury := sui.MustAddressFromHex("0x800010ed1fe94674af83640117490d459e20441eab132c17e7ff39b7ae07a722")
	plan := DefaultPlan(treasury, map[string][]byte{"DAI": {1}})

	assert.Equal(t, []string{"DAI", "WETH", "USDC", "AAVE"}, plan.Symbols())
	dai, ok := plan.Asset("DAI")
	require.True(t, ok)
	assert.Equal(t, uint8(8), dai.Underlying.Decimals)
	assert.Equal(t, uint64(7500), dai.Risk.BaseLTV)
	assert.Equal(t, []byte{1}, dai.FeedID)

	aave, _ := plan.Asset("AAVE")
	assert.False(t, aave.Risk.BorrowingEnabled)
	assert.Nil(t, aave.FeedID)
}

func TestRegistryFromPlan(t *testing.T) {
	reg, err := NewRegistryFromPlan(DefaultPlan(nil, nil))
	require.NoError(t, err)

	assert.Len(t, reg.Underlyings(), 4)
	derived := reg.DerivedFor("WETH")
	require.Len(t, derived, 2)
	assert.Equal(t, "AWETH", derived[0].Symbol)
	assert.Equal(t, KindYield, derived[0].Kind)
	assert.Equal(t, "VWETH", derived[1].Symbol)
	assert.Equal(t, KindDebt, derived[1].Kind)

	_, ok := reg.Derived("ADAI")
	assert.True(t, ok)
}

func TestRegistryRejectsDuplicatesAndOrphans(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddUnderlying(UnderlyingAsset{Symbol: "DAI"}))
	assert.ErrorIs(t, reg.AddUnderlying(UnderlyingAsset{Symbol: "DAI"}), ErrDuplicateSymbol)
	assert.ErrorIs(t, reg.AddDerived(DerivedToken{Symbol: "AUSDC", UnderlyingSymbol: "USDC"}), ErrUnknownSymbol)
}

func TestRegistryResolutionIsStable(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.AddUnderlying(UnderlyingAsset{Symbol: "DAI"}))

	meta := sui.MustAddressFromHex("0x1")
	acct := sui.MustAddressFromHex("0x2")
	require.NoError(t, reg.ResolveUnderlying("DAI", meta, acct))
	require.NoError(t, reg.ResolveUnderlying("DAI", meta, acct))

	err := reg.ResolveUnderlying("DAI", meta, sui.MustAddressFromHex("0x3"))
	assert.ErrorIs(t, err, ErrAddressConflict)

	dai, _ := reg.Underlying("DAI")
	assert.True(t, dai.Resolved())
	assert.Equal(t, acct.String(), dai.AccountAddress.String())

	assert.ErrorIs(t, reg.ResolveUnderlying("WBTC", meta, acct), ErrUnknownSymbol)
}

func TestRegistryConcurrentRecords(t *testing.T) {
	reg, err := NewRegistryFromPlan(DefaultPlan(nil, nil))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, sym := range DefaultSymbols {
		wg.Add(3)
		go func(sym string) {
			defer wg.Done()
			reg.RecordRateStrategy(RateBinding{Symbol: sym, Params: RateStrategyStableTwo})
		}(sym)
		go func(sym string) {
			defer wg.Done()
			reg.RecordRiskConfig(RiskBinding{Symbol: sym})
		}(sym)
		go func(sym string) {
			defer wg.Done()
			reg.RecordFeed(PriceFeedBinding{Symbol: sym})
		}(sym)
	}
	wg.Wait()

	assert.Len(t, reg.RateStrategies(), 4)
	assert.Len(t, reg.RiskConfigs(), 4)
	assert.Len(t, reg.Feeds(), 4)
}

func TestFunctionsRequireEveryProfile(t *testing.T) {
	pkg := sui.MustPackageIdFromHex("0xa")
	_, err := NewFunctions(map[Profile]*sui.PackageId{ProfileACL: pkg})
	assert.Error(t, err)

	all := map[Profile]*sui.PackageId{}
	for _, p := range Profiles {
		all[p] = pkg
	}
	fns, err := NewFunctions(all)
	require.NoError(t, err)
	assert.Equal(t, "acl_manage::add_risk_admin", fns.GrantRole(RoleRiskAdmin).Name())
	assert.Equal(t, "acl_manage::is_asset_listing_admin", fns.HasRole(RoleAssetListingAdmin).Name())
	assert.Equal(t, "variable_debt_token_factory::get_token_account_address", fns.DerivedAccount(KindDebt).Name())
}
