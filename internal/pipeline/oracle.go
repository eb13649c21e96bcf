package pipeline

import (
	"context"
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/pattonkan/sui-go/sui"
	"go.uber.org/zap"
)

// OracleFeedConfigurator binds price feeds to token addresses. A reserve
// needs three bindings: the underlying and both derived tokens, all to
// the underlying's feed.
type OracleFeedConfigurator struct {
	gw       gateway.Gateway
	account  gateway.Account
	fns      market.Functions
	registry *market.Registry
	logger   *zap.SugaredLogger
	batch    bool
}

func NewOracleFeedConfigurator(gw gateway.Gateway, account gateway.Account, fns market.Functions, registry *market.Registry, batch bool, logger *zap.SugaredLogger) *OracleFeedConfigurator {
	return &OracleFeedConfigurator{gw: gw, account: account, fns: fns, registry: registry, batch: batch, logger: logger}
}

// BindingsFor builds the bindings of one reserve from the registry.
func (c *OracleFeedConfigurator) BindingsFor(symbol string, feed []byte) ([]market.PriceFeedBinding, error) {
	if len(feed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFeed, symbol)
	}
	asset, ok := c.registry.Underlying(symbol)
	if !ok || !asset.Resolved() {
		return nil, fmt.Errorf("%w: underlying %s", ErrUnresolved, symbol)
	}
	bindings := []market.PriceFeedBinding{{Symbol: symbol, AssetAddress: asset.AccountAddress, FeedID: feed}}
	for _, t := range c.registry.DerivedFor(symbol) {
		if !t.Resolved() {
			return nil, fmt.Errorf("%w: %s token %s", ErrUnresolved, t.Kind, t.Symbol)
		}
		bindings = append(bindings, market.PriceFeedBinding{Symbol: t.Symbol, AssetAddress: t.AccountAddress, FeedID: feed})
	}
	return bindings, nil
}

// Bind submits the bindings, in one batch transaction or one transaction
// each. In batch mode a failure fails every binding; otherwise each
// binding fails alone.
func (c *OracleFeedConfigurator) Bind(ctx context.Context, owner string, bindings []market.PriceFeedBinding) []StepResult {
	if len(bindings) == 0 {
		return nil
	}
	if c.batch {
		return c.bindBatch(ctx, owner, bindings)
	}
	results := make([]StepResult, 0, len(bindings))
	for _, b := range bindings {
		results = append(results, c.bindOne(ctx, owner, b))
	}
	return results
}

func (c *OracleFeedConfigurator) bindOne(ctx context.Context, owner string, b market.PriceFeedBinding) StepResult {
	step := "set_asset_feed_id:" + b.Symbol
	digest, err := submit(ctx, c.gw, c.account, c.fns.SetAssetFeedID(),
		gateway.Address(b.AssetAddress),
		gateway.Bytes(b.FeedID),
	)
	if err != nil {
		return result(StageOracle, owner, step, OutcomeFailed, digest, stepError(StageOracle, owner, step, err))
	}
	c.registry.RecordFeed(b)
	c.logger.Infow("price feed bound", "symbol", b.Symbol, "asset", b.AssetAddress.String(), "digest", digest)
	return result(StageOracle, owner, step, OutcomeApplied, digest, nil)
}

func (c *OracleFeedConfigurator) bindBatch(ctx context.Context, owner string, bindings []market.PriceFeedBinding) []StepResult {
	const step = "batch_set_asset_feed_ids"
	assets := make([]*sui.Address, 0, len(bindings))
	feeds := make([][]byte, 0, len(bindings))
	for _, b := range bindings {
		assets = append(assets, b.AssetAddress)
		feeds = append(feeds, b.FeedID)
	}
	digest, err := submit(ctx, c.gw, c.account, c.fns.BatchSetAssetFeedIDs(),
		gateway.AddressVector(assets),
		gateway.BytesVector(feeds),
	)
	results := make([]StepResult, 0, len(bindings))
	if err != nil {
		serr := &StepError{Stage: StageOracle, Symbol: owner, Step: step, Kind: KindAtomicBatch, Err: err}
		if k := kindOf(err); k == KindCanceled || k == KindTransient || k == KindPrecondition {
			serr.Kind = k
		}
		for _, b := range bindings {
			results = append(results, result(StageOracle, owner, step+":"+b.Symbol, OutcomeFailed, digest, serr))
		}
		return results
	}
	for _, b := range bindings {
		c.registry.RecordFeed(b)
		results = append(results, result(StageOracle, owner, step+":"+b.Symbol, OutcomeApplied, digest, nil))
	}
	c.logger.Infow("price feeds bound", "reserve", owner, "count", len(bindings), "digest", digest)
	return results
}

// ReadFeed returns the feed bound to asset.
func (c *OracleFeedConfigurator) ReadFeed(ctx context.Context, asset *sui.Address) ([]byte, error) {
	return viewBytes(ctx, c.gw, c.fns.AssetFeedID(), gateway.Address(asset))
}
