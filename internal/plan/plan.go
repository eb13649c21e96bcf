// Package plan loads the deployment plan: which reserves to list and
// with which rate strategy, risk parameters and price feed.
package plan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/pattonkan/sui-go/sui"
	"gopkg.in/yaml.v3"
)

var ErrInvalidPlan = errors.New("plan: invalid")

// File is the YAML layout of a plan.
type File struct {
	Treasury       string                               `yaml:"treasury"`
	Feeds          map[string]string                    `yaml:"feeds"`
	RateStrategies map[string]market.RateStrategyParams `yaml:"rate_strategies"`
	Assets         []Asset                              `yaml:"assets"`
}

type Asset struct {
	Symbol       string             `yaml:"symbol"`
	Name         string             `yaml:"name"`
	Decimals     *uint8             `yaml:"decimals"`
	MaxSupply    string             `yaml:"max_supply"`
	IconURI      string             `yaml:"icon_uri"`
	ProjectURI   string             `yaml:"project_uri"`
	FeedID       string             `yaml:"feed_id"`
	RateStrategy string             `yaml:"rate_strategy"`
	RiskProfile  string             `yaml:"risk_profile"`
	Risk         *market.RiskParams `yaml:"risk"`
}

// Load reads a plan file. An empty path yields an empty File, which
// resolves to the default market.
func Load(path string) (File, error) {
	if path == "" {
		return File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read plan: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return f, nil
}

// Resolve turns the file into a market plan. treasury is used when the
// file names none. Without assets the default market is listed, with
// feeds taken from the feeds map and curves from rate_strategies.
func (f File) Resolve(treasury *sui.Address) (market.Plan, error) {
	if f.Treasury != "" {
		addr, err := sui.AddressFromHex(f.Treasury)
		if err != nil {
			return market.Plan{}, fmt.Errorf("%w: treasury: %v", ErrInvalidPlan, err)
		}
		treasury = addr
	}
	if treasury == nil {
		return market.Plan{}, fmt.Errorf("%w: no treasury address", ErrInvalidPlan)
	}

	feeds := make(map[string][]byte, len(f.Feeds))
	for sym, raw := range f.Feeds {
		id, err := ParseFeedID(raw)
		if err != nil {
			return market.Plan{}, fmt.Errorf("%w: feed of %s: %v", ErrInvalidPlan, sym, err)
		}
		feeds[sym] = id
	}
	strategies := make(map[string]market.RateStrategyParams, len(market.RateStrategies)+len(f.RateStrategies))
	for name, s := range market.RateStrategies {
		strategies[name] = s
	}
	for name, s := range f.RateStrategies {
		s.Name = name
		if err := s.Validate(); err != nil {
			return market.Plan{}, fmt.Errorf("%w: rate strategy %s: %v", ErrInvalidPlan, name, err)
		}
		strategies[name] = s
	}

	if len(f.Assets) == 0 {
		return f.defaultPlan(treasury, strategies, feeds)
	}

	p := market.Plan{Treasury: treasury}
	seen := make(map[string]bool)
	for i, a := range f.Assets {
		cfg, err := a.resolve(treasury, strategies, feeds)
		if err != nil {
			return market.Plan{}, fmt.Errorf("%w: asset %d: %v", ErrInvalidPlan, i, err)
		}
		if seen[cfg.Underlying.Symbol] {
			return market.Plan{}, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidPlan, cfg.Underlying.Symbol)
		}
		seen[cfg.Underlying.Symbol] = true
		p.Assets = append(p.Assets, cfg)
	}
	return p, nil
}

// defaultPlan lists the default market. A rate_strategies entry named
// after a built-in curve replaces it; other names have no asset to use
// them and are rejected.
func (f File) defaultPlan(treasury *sui.Address, strategies map[string]market.RateStrategyParams, feeds map[string][]byte) (market.Plan, error) {
	p := market.DefaultPlan(treasury, feeds)
	used := make(map[string]bool)
	for i := range p.Assets {
		name := p.Assets[i].Strategy.Name
		p.Assets[i].Strategy = strategies[name]
		used[name] = true
	}
	for name := range f.RateStrategies {
		if !used[name] {
			return market.Plan{}, fmt.Errorf("%w: rate strategy %s is not used by the default market", ErrInvalidPlan, name)
		}
	}
	return p, nil
}

func (a Asset) resolve(treasury *sui.Address, strategies map[string]market.RateStrategyParams, feeds map[string][]byte) (market.AssetConfig, error) {
	sym := strings.TrimSpace(a.Symbol)
	if sym == "" {
		return market.AssetConfig{}, errors.New("symbol is required")
	}
	u := market.UnderlyingAsset{
		Name:       a.Name,
		Symbol:     sym,
		Decimals:   market.DefaultDecimals,
		MaxSupply:  a.MaxSupply,
		IconURI:    a.IconURI,
		ProjectURI: a.ProjectURI,
		Treasury:   treasury,
	}
	if u.Name == "" {
		u.Name = sym
	}
	if a.Decimals != nil {
		u.Decimals = *a.Decimals
	}
	if u.MaxSupply == "" {
		u.MaxSupply = market.DefaultMaxSupply
	}

	strategyName := a.RateStrategy
	if strategyName == "" {
		strategyName = market.RateStrategyStableTwo.Name
	}
	strategy, ok := strategies[strategyName]
	if !ok {
		return market.AssetConfig{}, fmt.Errorf("%s: unknown rate strategy %q", sym, strategyName)
	}

	var risk market.RiskParams
	switch {
	case a.Risk != nil:
		risk = *a.Risk
	default:
		profile := a.RiskProfile
		if profile == "" {
			profile = strings.ToLower(sym)
		}
		risk, ok = market.RiskProfiles[strings.ToLower(profile)]
		if !ok {
			return market.AssetConfig{}, fmt.Errorf("%s: unknown risk profile %q (known: %s)",
				sym, profile, strings.Join(market.RiskProfileNames(), ", "))
		}
	}

	feed := feeds[sym]
	if a.FeedID != "" {
		id, err := ParseFeedID(a.FeedID)
		if err != nil {
			return market.AssetConfig{}, fmt.Errorf("%s: feed id: %v", sym, err)
		}
		feed = id
	}
	return market.AssetConfig{Underlying: u, Strategy: strategy, Risk: risk, FeedID: feed}, nil
}

// ParseFeedID decodes a hex feed id, with or without a 0x prefix.
func ParseFeedID(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, errors.New("empty feed id")
	}
	return hex.DecodeString(s)
}
