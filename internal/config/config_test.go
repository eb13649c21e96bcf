package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "arena garbage light lizard champion weasel produce analyst broken pitch shine gas"

func setPackages(t *testing.T) {
	t.Helper()
	for i, p := range market.Profiles {
		t.Setenv(profileKey(p, "PACKAGE"), fmt.Sprintf("0x%x", i+1))
	}
}

func TestLoadDefaults(t *testing.T) {
	setPackages(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "localnet", cfg.Sui.Network)
	assert.Equal(t, "http://localhost:9000", cfg.Sui.RPCURL)
	assert.Equal(t, uint64(3), cfg.Sui.TxMaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Sui.TxRetryBase)
	assert.Equal(t, "memory", cfg.Output.KVBackend)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.True(t, cfg.Pipeline.ValidateRisk)
	assert.True(t, cfg.Pipeline.OracleBatch)
	assert.False(t, cfg.Pipeline.VerifyRates)
	assert.Nil(t, cfg.Treasury())

	pkgs, err := cfg.Packages()
	require.NoError(t, err)
	assert.Len(t, pkgs, len(market.Profiles))
}

func TestLoadOverrides(t *testing.T) {
	setPackages(t)
	t.Setenv("RB_CONCURRENCY", "4")
	t.Setenv("RB_ORACLE_BATCH", "false")
	t.Setenv("RB_TX_RETRY_BASE", "2s")
	t.Setenv("RB_KV_BACKEND", "redis")
	t.Setenv("RB_TREASURY", "0xabc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.False(t, cfg.Pipeline.OracleBatch)
	assert.Equal(t, 2*time.Second, cfg.Sui.TxRetryBase)
	assert.Equal(t, "redis", cfg.Output.KVBackend)
	require.NotNil(t, cfg.Treasury())
}

func TestLoadInfersNetworkFromRPC(t *testing.T) {
	setPackages(t)
	t.Setenv("RB_SUI_RPC_URL", "https://fullnode.testnet.sui.io:443")
	for _, p := range market.Profiles {
		t.Setenv(profileKey(p, "MNEMONIC"), testMnemonic)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "testnet", cfg.Sui.Network)
	assert.False(t, cfg.IsLocalnet())
}

func TestLoadPublicNetworkReplacesLocalRPC(t *testing.T) {
	setPackages(t)
	t.Setenv("RB_NETWORK", "mainnet")
	for _, p := range market.Profiles {
		t.Setenv(profileKey(p, "MNEMONIC"), testMnemonic)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://fullnode.mainnet.sui.io", cfg.Sui.RPCURL)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown network", map[string]string{"RB_NETWORK": "devnet"}},
		{"unknown kv backend", map[string]string{"RB_KV_BACKEND": "etcd"}},
		{"zero concurrency", map[string]string{"RB_CONCURRENCY": "0"}},
		{"bad treasury", map[string]string{"RB_TREASURY": "treasury"}},
		{"missing package", map[string]string{"RB_POOL_PACKAGE": ""}},
		{"bad package", map[string]string{"RB_ORACLE_PACKAGE": "oracle"}},
		{"testnet without mnemonic", map[string]string{"RB_NETWORK": "testnet"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setPackages(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLocalnetSignersFallBackToTestSeed(t *testing.T) {
	setPackages(t)
	cfg, err := Load()
	require.NoError(t, err)

	seen := make(map[string]market.Profile)
	for _, p := range market.Profiles {
		s, err := cfg.Signer(p)
		require.NoError(t, err)
		addr := s.Address.String()
		_, dup := seen[addr]
		assert.False(t, dup, "profile %s shares a key with %s", p, seen[addr])
		seen[addr] = p
	}
}

func TestSignerFromMnemonic(t *testing.T) {
	setPackages(t)
	t.Setenv("RB_ACL_MNEMONIC", testMnemonic)
	t.Setenv("RB_POOL_MNEMONIC", testMnemonic)

	cfg, err := Load()
	require.NoError(t, err)

	acl, err := cfg.Signer(market.ProfileACL)
	require.NoError(t, err)
	pool, err := cfg.Signer(market.ProfilePool)
	require.NoError(t, err)
	assert.Equal(t, acl.Address, pool.Address)

	cfg.Sui.Network = "testnet"
	_, err = cfg.Signer(market.ProfileRate)
	assert.Error(t, err)
}
