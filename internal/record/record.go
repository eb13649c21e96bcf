// Package record builds the deployment record of a bootstrap run and
// publishes it to the key-value store.
package record

import (
	"encoding/hex"
	"time"

	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/leafsii/reserve-bootstrap/internal/pipeline"
	"github.com/pattonkan/sui-go/sui"
)

type Token struct {
	Symbol     string       `json:"symbol"`
	Name       string       `json:"name"`
	Kind       string       `json:"kind,omitempty"`
	Underlying string       `json:"underlying,omitempty"`
	Metadata   *sui.Address `json:"metadata,omitempty"`
	Account    *sui.Address `json:"account,omitempty"`
}

type RateStrategy struct {
	Symbol                 string       `json:"symbol"`
	Asset                  *sui.Address `json:"asset"`
	Strategy               string       `json:"strategy,omitempty"`
	OptimalUsageRatio      string       `json:"optimal_usage_ratio"`
	BaseVariableBorrowRate string       `json:"base_variable_borrow_rate"`
	VariableRateSlope1     string       `json:"variable_rate_slope1"`
	VariableRateSlope2     string       `json:"variable_rate_slope2"`
}

type RiskConfig struct {
	Symbol string            `json:"symbol"`
	Asset  *sui.Address      `json:"asset"`
	Params market.RiskParams `json:"params"`
}

type Feed struct {
	Symbol string       `json:"symbol"`
	Asset  *sui.Address `json:"asset"`
	FeedID string       `json:"feed_id"`
}

// Record is everything a run resolved and configured. It is written for
// operators and downstream tooling; the bootstrap never reads it back.
type Record struct {
	RunID       string    `json:"run_id"`
	Network     string    `json:"network"`
	GeneratedAt time.Time `json:"generated_at"`

	Underlyings    []Token        `json:"underlyings"`
	Derived        []Token        `json:"derived"`
	RateStrategies []RateStrategy `json:"rate_strategies"`
	RiskConfigs    []RiskConfig   `json:"risk_configs"`
	Feeds          []Feed         `json:"feeds"`

	Stages map[pipeline.Stage]pipeline.Outcome `json:"stages"`
	Steps  []pipeline.StepResult               `json:"steps"`
}

// Build assembles a record from the registry and the report snapshot of
// one run.
func Build(network string, reg *market.Registry, snap pipeline.Snapshot) Record {
	rec := Record{
		RunID:       snap.RunID,
		Network:     network,
		GeneratedAt: time.Now().UTC(),
		Stages:      snap.Stages,
		Steps:       snap.Steps,
	}
	for _, a := range reg.Underlyings() {
		rec.Underlyings = append(rec.Underlyings, Token{
			Symbol:   a.Symbol,
			Name:     a.Name,
			Metadata: a.MetadataAddress,
			Account:  a.AccountAddress,
		})
	}
	for _, d := range reg.DerivedTokens() {
		rec.Derived = append(rec.Derived, Token{
			Symbol:     d.Symbol,
			Name:       d.Name,
			Kind:       d.Kind.String(),
			Underlying: d.UnderlyingSymbol,
			Metadata:   d.MetadataAddress,
			Account:    d.AccountAddress,
		})
	}
	for _, b := range reg.RateStrategies() {
		rec.RateStrategies = append(rec.RateStrategies, RateStrategy{
			Symbol:                 b.Symbol,
			Asset:                  b.Asset,
			Strategy:               b.Params.Name,
			OptimalUsageRatio:      b.Params.OptimalUsageRatio.String(),
			BaseVariableBorrowRate: b.Params.BaseVariableBorrowRate.String(),
			VariableRateSlope1:     b.Params.VariableRateSlope1.String(),
			VariableRateSlope2:     b.Params.VariableRateSlope2.String(),
		})
	}
	for _, b := range reg.RiskConfigs() {
		rec.RiskConfigs = append(rec.RiskConfigs, RiskConfig{Symbol: b.Symbol, Asset: b.Asset, Params: b.Params})
	}
	for _, f := range reg.Feeds() {
		rec.Feeds = append(rec.Feeds, Feed{Symbol: f.Symbol, Asset: f.AssetAddress, FeedID: "0x" + hex.EncodeToString(f.FeedID)})
	}
	return rec
}
