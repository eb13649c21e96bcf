package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/pattonkan/sui-go/sui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var treasury = sui.MustAddressFromHex("0x7")

func TestEmptyPlanIsDefaultMarket(t *testing.T) {
	f, err := Parse([]byte(`
feeds:
  DAI: "0x01"
  WETH: "02"
`))
	require.NoError(t, err)

	p, err := f.Resolve(treasury)
	require.NoError(t, err)
	assert.Equal(t, market.DefaultSymbols, p.Symbols())

	dai, _ := p.Asset("DAI")
	assert.Equal(t, []byte{0x01}, dai.FeedID)
	weth, _ := p.Asset("WETH")
	assert.Equal(t, []byte{0x02}, weth.FeedID)
	usdc, _ := p.Asset("USDC")
	assert.Empty(t, usdc.FeedID)
}

func TestDefaultMarketTakesCurveOverrides(t *testing.T) {
	f, err := Parse([]byte(`
rate_strategies:
  stable-two:
    optimal_usage_ratio: "60%"
    base_variable_borrow_rate: "1%"
    variable_rate_slope1: "5%"
    variable_rate_slope2: "200%"
`))
	require.NoError(t, err)

	p, err := f.Resolve(treasury)
	require.NoError(t, err)
	require.Len(t, p.Assets, len(market.DefaultSymbols))
	for _, a := range p.Assets {
		assert.Equal(t, "stable-two", a.Strategy.Name, a.Underlying.Symbol)
		assert.Equal(t, "60%", a.Strategy.OptimalUsageRatio.Percent(), a.Underlying.Symbol)
	}
	assert.Equal(t, "80%", market.RateStrategyStableTwo.OptimalUsageRatio.Percent())
}

func TestDefaultMarketRejectsUnusedCurve(t *testing.T) {
	f, err := Parse([]byte(`
rate_strategies:
  steep:
    optimal_usage_ratio: "60%"
    base_variable_borrow_rate: "1%"
    variable_rate_slope1: "5%"
    variable_rate_slope2: "200%"
`))
	require.NoError(t, err)
	_, err = f.Resolve(treasury)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestResolveCustomAssets(t *testing.T) {
	f, err := Parse([]byte(`
treasury: "0x99"
rate_strategies:
  steep:
    optimal_usage_ratio: "60%"
    base_variable_borrow_rate: "1%"
    variable_rate_slope1: "5%"
    variable_rate_slope2: "200%"
assets:
  - symbol: WBTC
    decimals: 6
    feed_id: "0xaa"
    rate_strategy: volatile-one
  - symbol: GHO
    name: Gho Token
    rate_strategy: steep
    risk:
      base_ltv: 5000
      liquidation_threshold: 6000
      liquidation_bonus: 10800
      borrowing_enabled: true
`))
	require.NoError(t, err)

	p, err := f.Resolve(treasury)
	require.NoError(t, err)
	assert.Equal(t, sui.MustAddressFromHex("0x99"), p.Treasury)
	assert.Equal(t, []string{"WBTC", "GHO"}, p.Symbols())

	wbtc, _ := p.Asset("WBTC")
	assert.Equal(t, uint8(6), wbtc.Underlying.Decimals)
	assert.Equal(t, "WBTC", wbtc.Underlying.Name)
	assert.Equal(t, market.DefaultMaxSupply, wbtc.Underlying.MaxSupply)
	assert.Equal(t, []byte{0xaa}, wbtc.FeedID)
	assert.Equal(t, market.RateStrategyVolatileOne.Name, wbtc.Strategy.Name)
	assert.Equal(t, market.RiskProfiles["wbtc"], wbtc.Risk)

	gho, _ := p.Asset("GHO")
	assert.Equal(t, "Gho Token", gho.Underlying.Name)
	assert.Equal(t, market.DefaultDecimals, gho.Underlying.Decimals)
	assert.Equal(t, "steep", gho.Strategy.Name)
	assert.Equal(t, "60%", gho.Strategy.OptimalUsageRatio.Percent())
	assert.Equal(t, uint64(6000), gho.Risk.LiquidationThreshold)
	assert.True(t, gho.Risk.BorrowingEnabled)
	assert.Nil(t, gho.FeedID)
}

func TestResolveRejectsBadPlans(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown strategy", "assets:\n  - symbol: DAI\n    rate_strategy: nope\n"},
		{"unknown risk profile", "assets:\n  - symbol: XYZ\n"},
		{"duplicate symbol", "assets:\n  - symbol: DAI\n  - symbol: DAI\n"},
		{"missing symbol", "assets:\n  - name: Dai\n"},
		{"bad feed", "assets:\n  - symbol: DAI\n    feed_id: zz\n"},
		{"bad treasury", "treasury: nothex\n"},
		{"invalid curve", "rate_strategies:\n  flat:\n    optimal_usage_ratio: \"0\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = f.Resolve(treasury)
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}

func TestResolveRequiresTreasury(t *testing.T) {
	_, err := File{}.Resolve(nil)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("assets: [symbol: {"))
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestLoad(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, f.Assets)

	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assets:\n  - symbol: USDC\n"), 0o600))
	f, err = Load(path)
	require.NoError(t, err)
	require.Len(t, f.Assets, 1)
	assert.Equal(t, "USDC", f.Assets[0].Symbol)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseFeedID(t *testing.T) {
	id, err := ParseFeedID(" 0x0a0b ")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x0b}, id)

	_, err = ParseFeedID("0x")
	assert.Error(t, err)
}
