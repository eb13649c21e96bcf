package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leafsii/reserve-bootstrap/internal/market"
	"github.com/pattonkan/sui-go/sui"
	"github.com/pattonkan/sui-go/suisigner"
	"github.com/pattonkan/sui-go/suisigner/suicrypto"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"RB_ENV"`
	LogLevel string `mapstructure:"RB_LOG_LEVEL"`

	Sui      SuiConfig      `mapstructure:",squash"`
	Output   OutputConfig   `mapstructure:",squash"`
	Pipeline PipelineConfig `mapstructure:",squash"`

	// Keyed by profile, filled from RB_<PROFILE>_MNEMONIC and
	// RB_<PROFILE>_PACKAGE.
	Profiles map[market.Profile]ProfileConfig `mapstructure:"-"`
}

type SuiConfig struct {
	RPCURL        string        `mapstructure:"RB_SUI_RPC_URL"`
	Network       string        `mapstructure:"RB_NETWORK"`
	GasBudget     uint64        `mapstructure:"RB_GAS_BUDGET"`
	RPS           float64       `mapstructure:"RB_RPC_RPS"`
	TxMaxRetries  uint64        `mapstructure:"RB_TX_MAX_RETRIES"`
	TxRetryBase   time.Duration `mapstructure:"RB_TX_RETRY_BASE"`
	FundOnLocal   bool          `mapstructure:"RB_LOCALNET_FUND"`
	TreasuryOwner string        `mapstructure:"RB_TREASURY"`
}

type OutputConfig struct {
	PlanPath   string `mapstructure:"RB_PLAN_PATH"`
	RecordPath string `mapstructure:"RB_RECORD_PATH"`
	StatusAddr string `mapstructure:"RB_STATUS_ADDR"`
	KVBackend  string `mapstructure:"RB_KV_BACKEND"`
	RedisURL   string `mapstructure:"RB_REDIS_URL"`
	KVStrict   bool   `mapstructure:"RB_KV_STRICT"`
}

type PipelineConfig struct {
	Concurrency  int  `mapstructure:"RB_CONCURRENCY"`
	ValidateRisk bool `mapstructure:"RB_VALIDATE_RISK"`
	OracleBatch  bool `mapstructure:"RB_ORACLE_BATCH"`
	VerifyRates  bool `mapstructure:"RB_VERIFY_RATES"`
	ExtendedRisk bool `mapstructure:"RB_EXTENDED_RISK"`
}

// ProfileConfig holds the secrets of one operator profile.
type ProfileConfig struct {
	Mnemonic string
	Package  string
}

func profileKey(p market.Profile, suffix string) string {
	return "RB_" + strings.ToUpper(string(p)) + "_" + suffix
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already in the environment win
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("RB_ENV", "dev")
	v.SetDefault("RB_LOG_LEVEL", "")
	v.SetDefault("RB_NETWORK", "localnet")
	v.SetDefault("RB_SUI_RPC_URL", "http://localhost:9000")
	v.SetDefault("RB_GAS_BUDGET", 0)
	v.SetDefault("RB_RPC_RPS", 0)
	v.SetDefault("RB_TX_MAX_RETRIES", 3)
	v.SetDefault("RB_TX_RETRY_BASE", "500ms")
	v.SetDefault("RB_LOCALNET_FUND", false)
	v.SetDefault("RB_TREASURY", "")
	v.SetDefault("RB_PLAN_PATH", "")
	v.SetDefault("RB_RECORD_PATH", "deployment.json")
	v.SetDefault("RB_STATUS_ADDR", "")
	v.SetDefault("RB_KV_BACKEND", "memory")
	v.SetDefault("RB_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("RB_KV_STRICT", false)
	v.SetDefault("RB_CONCURRENCY", 1)
	v.SetDefault("RB_VALIDATE_RISK", true)
	v.SetDefault("RB_ORACLE_BATCH", true)
	v.SetDefault("RB_VERIFY_RATES", false)
	v.SetDefault("RB_EXTENDED_RISK", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Profiles = make(map[market.Profile]ProfileConfig, len(market.Profiles))
	for _, p := range market.Profiles {
		cfg.Profiles[p] = ProfileConfig{
			Mnemonic: strings.TrimSpace(v.GetString(profileKey(p, "MNEMONIC"))),
			Package:  strings.TrimSpace(v.GetString(profileKey(p, "PACKAGE"))),
		}
	}

	cfg.applyNetworkDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Sui.RPCURL == "" {
		return fmt.Errorf("RB_SUI_RPC_URL is required")
	}
	switch c.Sui.Network {
	case "localnet", "testnet", "mainnet":
	default:
		return fmt.Errorf("invalid RB_NETWORK %q (must be localnet, testnet, or mainnet)", c.Sui.Network)
	}
	switch c.Output.KVBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid RB_KV_BACKEND %q (must be memory or redis)", c.Output.KVBackend)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("RB_CONCURRENCY must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Sui.TreasuryOwner != "" {
		if _, err := sui.AddressFromHex(c.Sui.TreasuryOwner); err != nil {
			return fmt.Errorf("invalid RB_TREASURY: %w", err)
		}
	}
	for _, p := range market.Profiles {
		pc := c.Profiles[p]
		if pc.Package == "" {
			return fmt.Errorf("%s is required", profileKey(p, "PACKAGE"))
		}
		if _, err := sui.PackageIdFromHex(pc.Package); err != nil {
			return fmt.Errorf("invalid %s: %w", profileKey(p, "PACKAGE"), err)
		}
		if pc.Mnemonic == "" && !c.IsLocalnet() {
			return fmt.Errorf("%s is required on %s", profileKey(p, "MNEMONIC"), c.Sui.Network)
		}
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func (c *Config) IsLocalnet() bool {
	return c.Sui.Network == "localnet"
}

// Packages returns the deployed package of every profile.
func (c *Config) Packages() (map[market.Profile]*sui.PackageId, error) {
	out := make(map[market.Profile]*sui.PackageId, len(c.Profiles))
	for _, p := range market.Profiles {
		id, err := sui.PackageIdFromHex(c.Profiles[p].Package)
		if err != nil {
			return nil, fmt.Errorf("package of profile %s: %w", p, err)
		}
		out[p] = id
	}
	return out, nil
}

// Signer builds the signer of a profile. On localnet a profile without a
// mnemonic gets the test-seed key at its profile index.
func (c *Config) Signer(p market.Profile) (*suisigner.Signer, error) {
	pc := c.Profiles[p]
	if pc.Mnemonic != "" {
		signer, err := suisigner.NewSignerWithMnemonic(pc.Mnemonic, suicrypto.KeySchemeFlagEd25519)
		if err != nil {
			return nil, fmt.Errorf("signer of profile %s: %w", p, err)
		}
		return signer, nil
	}
	if !c.IsLocalnet() {
		return nil, fmt.Errorf("no mnemonic for profile %s", p)
	}
	for i, known := range market.Profiles {
		if known == p {
			return suisigner.NewSignerByIndex(suisigner.TEST_SEED, suicrypto.KeySchemeFlagDefault, i), nil
		}
	}
	return nil, fmt.Errorf("unknown profile %s", p)
}

// Treasury returns RB_TREASURY, or nil when unset.
func (c *Config) Treasury() *sui.Address {
	if c.Sui.TreasuryOwner == "" {
		return nil
	}
	addr, err := sui.AddressFromHex(c.Sui.TreasuryOwner)
	if err != nil {
		return nil
	}
	return addr
}

// applyNetworkDefaults normalizes the network name and fills in the RPC endpoint.
func (c *Config) applyNetworkDefaults() {
	net := strings.ToLower(strings.TrimSpace(c.Sui.Network))
	rpc := strings.TrimSpace(c.Sui.RPCURL)

	if net == "" {
		net = "localnet"
	}

	// .env files often set only the RPC endpoint.
	if net == "localnet" {
		if inferred := inferNetworkFromRPC(rpc); inferred != "" {
			net = inferred
		}
	}

	switch net {
	case "testnet":
		if rpc == "" || isLocalEndpoint(rpc) {
			rpc = "https://fullnode.testnet.sui.io"
		}
	case "mainnet":
		if rpc == "" || isLocalEndpoint(rpc) {
			rpc = "https://fullnode.mainnet.sui.io"
		}
	case "localnet":
		if rpc == "" {
			rpc = "http://localhost:9000"
		}
	}

	c.Sui.Network = net
	c.Sui.RPCURL = rpc
}

func inferNetworkFromRPC(endpoint string) string {
	ep := strings.ToLower(endpoint)
	switch {
	case strings.Contains(ep, "testnet"):
		return "testnet"
	case strings.Contains(ep, "mainnet"):
		return "mainnet"
	default:
		return ""
	}
}

func isLocalEndpoint(endpoint string) bool {
	ep := strings.ToLower(endpoint)
	return strings.Contains(ep, "localhost") || strings.Contains(ep, "127.0.0.1") || strings.Contains(ep, "0.0.0.0")
}
