package market

import (
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/pattonkan/sui-go/sui"
)

// Move modules called during bootstrap.
const (
	ModuleACL              = "acl_manage"
	ModuleUnderlying       = "mock_underlying_token_factory"
	ModulePoolConfigurator = "pool_configurator"
	ModuleYieldFactory     = "a_token_factory"
	ModuleDebtFactory      = "variable_debt_token_factory"
	ModuleRateStrategy     = "default_reserve_interest_rate_strategy"
	ModuleOracle           = "oracle"
)

// Rate strategy view functions.
const (
	ViewOptimalUsageRatio      = "get_optimal_usage_ratio"
	ViewBaseVariableBorrowRate = "get_base_variable_borrow_rate"
	ViewVariableRateSlope1     = "get_variable_rate_slope1"
	ViewVariableRateSlope2     = "get_variable_rate_slope2"
	ViewMaxVariableBorrowRate  = "get_max_variable_borrow_rate"
)

// Functions resolves function ids against the deployed package of each
// profile.
type Functions struct {
	Packages map[Profile]*sui.PackageId
}

func NewFunctions(packages map[Profile]*sui.PackageId) (Functions, error) {
	for _, p := range Profiles {
		if packages[p] == nil {
			return Functions{}, fmt.Errorf("market: no package configured for profile %s", p)
		}
	}
	return Functions{Packages: packages}, nil
}

func (f Functions) id(p Profile, module, function string) gateway.FunctionID {
	return gateway.NewFunctionID(f.Packages[p], module, function)
}

func (f Functions) HasRole(r Role) gateway.FunctionID {
	return f.id(ProfileACL, ModuleACL, "is_"+r.String())
}

func (f Functions) GrantRole(r Role) gateway.FunctionID {
	return f.id(ProfileACL, ModuleACL, "add_"+r.String())
}

func (f Functions) CreateToken() gateway.FunctionID {
	return f.id(ProfileUnderlying, ModuleUnderlying, "create_token")
}

func (f Functions) UnderlyingMetadata() gateway.FunctionID {
	return f.id(ProfileUnderlying, ModuleUnderlying, "get_metadata_by_symbol")
}

func (f Functions) UnderlyingAccount() gateway.FunctionID {
	return f.id(ProfileUnderlying, ModuleUnderlying, "get_token_account_address")
}

func (f Functions) InitReserves() gateway.FunctionID {
	return f.id(ProfilePool, ModulePoolConfigurator, "init_reserves")
}

func derivedModule(kind DerivedKind) string {
	if kind == KindDebt {
		return ModuleDebtFactory
	}
	return ModuleYieldFactory
}

func (f Functions) DerivedMetadata(kind DerivedKind) gateway.FunctionID {
	return f.id(ProfilePool, derivedModule(kind), "get_metadata_by_symbol")
}

func (f Functions) DerivedAccount(kind DerivedKind) gateway.FunctionID {
	return f.id(ProfilePool, derivedModule(kind), "get_token_account_address")
}

func (f Functions) SetRateStrategy() gateway.FunctionID {
	return f.id(ProfileRate, ModuleRateStrategy, "set_reserve_interest_rate_strategy")
}

func (f Functions) RateView(view string) gateway.FunctionID {
	return f.id(ProfileRate, ModuleRateStrategy, view)
}

func (f Functions) SetAssetFeedID() gateway.FunctionID {
	return f.id(ProfileOracle, ModuleOracle, "set_asset_feed_id")
}

func (f Functions) BatchSetAssetFeedIDs() gateway.FunctionID {
	return f.id(ProfileOracle, ModuleOracle, "batch_set_asset_feed_ids")
}

func (f Functions) AssetFeedID() gateway.FunctionID {
	return f.id(ProfileOracle, ModuleOracle, "get_asset_feed_id")
}

// PoolConfigurator returns a pool_configurator entry point by name.
func (f Functions) PoolConfigurator(function string) gateway.FunctionID {
	return f.id(ProfilePool, ModulePoolConfigurator, function)
}
