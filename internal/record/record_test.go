package record

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/leafsii/reserve-bootstrap/internal/gateway"
	"github.com/leafsii/reserve-bootstrap/internal/gateway/gatewaytest"
	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/leafsii/reserve-bootstrap/internal/pipeline"
	"github.com/leafsii/reserve-bootstrap/pkg/kv/memory"
	"github.com/pattonkan/sui-go/sui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func bootstrapped(t *testing.T) (*pipeline.Orchestrator, *pipeline.Report) {
	t.Helper()
	account := func(p market.Profile) gateway.Account {
		return gateway.Account{Profile: string(p), Address: gatewaytest.DeriveAddress("account", string(p))}
	}
	accounts := pipeline.Accounts{
		ACL:        account(market.ProfileACL),
		Pool:       account(market.ProfilePool),
		Rate:       account(market.ProfileRate),
		Oracle:     account(market.ProfileOracle),
		Underlying: account(market.ProfileUnderlying),
	}
	packages := make(map[market.Profile]*sui.PackageId)
	for i, p := range market.Profiles {
		packages[p] = sui.MustPackageIdFromHex(fmt.Sprintf("0x%x", i+1))
	}
	fns, err := market.NewFunctions(packages)
	require.NoError(t, err)
	feeds := map[string][]byte{"DAI": {1}, "WETH": {2}, "USDC": {3}, "AAVE": {4}}
	plan := market.DefaultPlan(gatewaytest.DeriveAddress("treasury"), feeds)

	chain := gatewaytest.NewChain(accounts.ACL.Address)
	o, err := pipeline.NewOrchestrator(chain, accounts, fns, plan, pipeline.DefaultOptions(), zap.NewNop().Sugar())
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	require.NoError(t, err)
	return o, report
}

func TestBuild(t *testing.T) {
	o, report := bootstrapped(t)
	rec := Build("localnet", o.Registry(), report.Snapshot())

	assert.Equal(t, report.RunID(), rec.RunID)
	assert.Len(t, rec.Underlyings, 4)
	assert.Len(t, rec.Derived, 8)
	assert.Len(t, rec.RateStrategies, 4)
	assert.Len(t, rec.RiskConfigs, 4)
	assert.Len(t, rec.Feeds, 12)
	assert.Equal(t, pipeline.OutcomeApplied, rec.Stages[pipeline.StageReserves])

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec.Underlyings[0].Account.String(), decoded.Underlyings[0].Account.String())
	assert.Equal(t, "stable-two", decoded.RateStrategies[0].Strategy)
}

func TestPublish(t *testing.T) {
	o, report := bootstrapped(t)
	rec := Build("localnet", o.Registry(), report.Snapshot())

	store := memory.New(0)
	defer store.Close()
	p := NewPublisher(store, zap.NewNop().Sugar())
	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, rec))

	dai, err := store.HGet(ctx, "deployment:localnet", "token:ADAI")
	require.NoError(t, err)
	derived, ok := o.Registry().Derived("ADAI")
	require.True(t, ok)
	assert.Equal(t, derived.AccountAddress.String(), string(dai))

	feed, err := store.HGet(ctx, "deployment:localnet", "feed:VWETH")
	require.NoError(t, err)
	assert.Equal(t, "0x02", string(feed))

	latest, err := p.Latest(ctx, "localnet")
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, latest.RunID)
	assert.Len(t, latest.Feeds, 12)
}

func TestLease(t *testing.T) {
	store := memory.New(0)
	defer store.Close()
	p := NewPublisher(store, zap.NewNop().Sugar())
	ctx := context.Background()

	release, err := p.Acquire(ctx, "testnet", "run-1", time.Minute)
	require.NoError(t, err)

	_, err = p.Acquire(ctx, "testnet", "run-2", time.Minute)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	// Other networks are independent.
	otherRelease, err := p.Acquire(ctx, "mainnet", "run-2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, otherRelease(ctx))

	require.NoError(t, release(ctx))
	release, err = p.Acquire(ctx, "testnet", "run-2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestStaleReleaseKeepsNewerLease(t *testing.T) {
	store := memory.New(0)
	defer store.Close()
	p := NewPublisher(store, zap.NewNop().Sugar())
	ctx := context.Background()

	stale, err := p.Acquire(ctx, "testnet", "run-1", 20*time.Millisecond)
	require.NoError(t, err)

	var release func(context.Context) error
	require.Eventually(t, func() bool {
		release, err = p.Acquire(ctx, "testnet", "run-2", time.Minute)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, stale(ctx))
	_, err = p.Acquire(ctx, "testnet", "run-3", time.Minute)
	assert.ErrorIs(t, err, ErrLeaseHeld)

	require.NoError(t, release(ctx))
}
