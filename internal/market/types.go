package market

import (
	"fmt"
	"strings"

	"github.com/pattonkan/sui-go/sui"
)

// Role is an access-control capability held by an account.
type Role int

const (
	RoleRiskAdmin Role = iota + 1
	RolePoolAdmin
	RoleAssetListingAdmin
)

func (r Role) String() string {
	switch r {
	case RoleRiskAdmin:
		return "risk_admin"
	case RolePoolAdmin:
		return "pool_admin"
	case RoleAssetListingAdmin:
		return "asset_listing_admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "risk_admin", "risk-admin":
		return RoleRiskAdmin, nil
	case "pool_admin", "pool-admin":
		return RolePoolAdmin, nil
	case "asset_listing_admin", "asset-listing-admin":
		return RoleAssetListingAdmin, nil
	}
	return 0, fmt.Errorf("market: unknown role %q", s)
}

// Profile names an operator account. Each profile signs the calls of
// one pipeline component.
type Profile string

const (
	ProfileACL        Profile = "acl"
	ProfilePool       Profile = "pool"
	ProfileRate       Profile = "rate"
	ProfileOracle     Profile = "oracle"
	ProfileUnderlying Profile = "underlying"
)

// Profiles lists every operator profile in a stable order.
var Profiles = []Profile{ProfileACL, ProfilePool, ProfileRate, ProfileOracle, ProfileUnderlying}

// UnderlyingAsset is a base token that can be supplied and borrowed.
// The two addresses are unset until the token exists on chain.
type UnderlyingAsset struct {
	Name       string
	Symbol     string
	Decimals   uint8
	MaxSupply  string
	IconURI    string
	ProjectURI string
	Treasury   *sui.Address

	MetadataAddress *sui.Address
	AccountAddress  *sui.Address
}

func (a UnderlyingAsset) Resolved() bool {
	return a.MetadataAddress != nil && a.AccountAddress != nil
}

// DerivedKind distinguishes the two tokens minted per reserve.
type DerivedKind int

const (
	// KindYield tracks supplied balances (aToken).
	KindYield DerivedKind = iota + 1
	// KindDebt tracks variable-rate borrowed balances.
	KindDebt
)

func (k DerivedKind) String() string {
	switch k {
	case KindYield:
		return "yield"
	case KindDebt:
		return "debt"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DerivedToken is created by the protocol during reserve initialization.
type DerivedToken struct {
	Kind             DerivedKind
	Name             string
	Symbol           string
	UnderlyingSymbol string

	MetadataAddress *sui.Address
	AccountAddress  *sui.Address
}

func (t DerivedToken) Resolved() bool {
	return t.MetadataAddress != nil && t.AccountAddress != nil
}

// YieldSymbol and DebtSymbol follow the protocol's naming of derived tokens.
func YieldSymbol(underlying string) string { return "A" + underlying }
func DebtSymbol(underlying string) string  { return "V" + underlying }

func DerivedSymbol(kind DerivedKind, underlying string) string {
	if kind == KindDebt {
		return DebtSymbol(underlying)
	}
	return YieldSymbol(underlying)
}

// PriceFeedBinding maps one token address to an oracle feed.
type PriceFeedBinding struct {
	Symbol       string
	AssetAddress *sui.Address
	FeedID       []byte
}

// AssetConfig is everything needed to list one reserve.
type AssetConfig struct {
	Underlying UnderlyingAsset
	Strategy   RateStrategyParams
	Risk       RiskParams
	FeedID     []byte
}

// Plan is the ordered list of reserves to bootstrap.
type Plan struct {
	Treasury *sui.Address
	Assets   []AssetConfig
}

func (p Plan) Symbols() []string {
	out := make([]string, 0, len(p.Assets))
	for _, a := range p.Assets {
		out = append(out, a.Underlying.Symbol)
	}
	return out
}

// Asset returns the configuration for symbol.
func (p Plan) Asset(symbol string) (AssetConfig, bool) {
	for _, a := range p.Assets {
		if a.Underlying.Symbol == symbol {
			return a, true
		}
	}
	return AssetConfig{}, false
}
