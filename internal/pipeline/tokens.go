package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"go.uber.org/zap"
)

// TokenFactory creates the underlying test tokens and resolves their
// addresses into the registry.
type TokenFactory struct {
	gw       gateway.Gateway
	account  gateway.Account
	fns      market.Functions
	registry *market.Registry
	logger   *zap.SugaredLogger
}

func NewTokenFactory(gw gateway.Gateway, account gateway.Account, fns market.Functions, registry *market.Registry, logger *zap.SugaredLogger) *TokenFactory {
	return &TokenFactory{gw: gw, account: account, fns: fns, registry: registry, logger: logger}
}

// Lookup reads the addresses of an existing underlying token.
func (f *TokenFactory) Lookup(ctx context.Context, symbol string) (Resolution, error) {
	return lookupToken(ctx, f.gw, f.fns.UnderlyingMetadata(), f.fns.UnderlyingAccount(), gateway.String(symbol))
}

// CreateUnderlyingAsset creates the token unless a token with the same
// symbol already exists, then records both addresses in the registry.
func (f *TokenFactory) CreateUnderlyingAsset(ctx context.Context, asset market.UnderlyingAsset) StepResult {
	const step = "create_token"
	fail := func(digest string, err error) StepResult {
		return result(StageTokens, asset.Symbol, step, OutcomeFailed, digest, stepError(StageTokens, asset.Symbol, step, err))
	}

	res, err := f.Lookup(ctx, asset.Symbol)
	switch {
	case err == nil:
		if err := f.registry.ResolveUnderlying(asset.Symbol, res.Metadata, res.Account); err != nil {
			return fail("", err)
		}
		f.logger.Infow("underlying token already exists",
			"symbol", asset.Symbol,
			"account", res.Account.String(),
		)
		return result(StageTokens, asset.Symbol, step, OutcomeAlreadyExists, "", nil)
	case !errors.Is(err, gateway.ErrNotFound):
		return fail("", err)
	}

	maxSupply := asset.MaxSupply
	if maxSupply == "" {
		maxSupply = market.DefaultMaxSupply
	}
	digest, err := submit(ctx, f.gw, f.account, f.fns.CreateToken(),
		gateway.U128(maxSupply),
		gateway.String(asset.Name),
		gateway.String(asset.Symbol),
		gateway.U8(asset.Decimals),
		gateway.String(asset.IconURI),
		gateway.String(asset.ProjectURI),
	)
	outcome := OutcomeApplied
	if errors.Is(err, gateway.ErrAlreadyExists) {
		// Created between our lookup and the submission.
		outcome = OutcomeAlreadyExists
	} else if err != nil {
		return fail(digest, err)
	}

	res, err = f.Lookup(ctx, asset.Symbol)
	if err != nil {
		return fail(digest, fmt.Errorf("resolve %s after create: %w", asset.Symbol, err))
	}
	if err := f.registry.ResolveUnderlying(asset.Symbol, res.Metadata, res.Account); err != nil {
		return fail(digest, err)
	}
	f.logger.Infow("underlying token created",
		"symbol", asset.Symbol,
		"metadata", res.Metadata.String(),
		"account", res.Account.String(),
		"digest", digest,
	)
	return result(StageTokens, asset.Symbol, step, outcome, digest, nil)
}
