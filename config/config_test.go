package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelpento.lv/flashplanner/dex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testExecutor = "0x1111111111111111111111111111111111111111"
	testWallet   = "0x2222222222222222222222222222222222222222"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Contracts.Executor = testExecutor
	cfg.Wallet.PublicAddress = testWallet
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, uint64(1), cfg.ChainID)
	assert.True(t, cfg.DryRun)
	assert.False(t, cfg.MEVProtect)
	assert.Equal(t, uint64(5), cfg.Trading.PremiumBps)
	assert.Equal(t, uint64(50), cfg.Trading.SlippageBps)
	assert.Equal(t, "1000000000000000000", cfg.Trading.DefaultFlashLoanWei().String())
	assert.Equal(t, "2000000000", cfg.Gas.PriorityFeeWei().String())
	assert.Equal(t, "15000000000", cfg.Gas.FallbackBaseFeeWei().String())
	assert.Equal(t, 20*time.Second, cfg.EvaluationTimeout)
	assert.Equal(t, DefaultUniswapV2Router, cfg.Contracts.UniswapV2Router)
	assert.Equal(t, DefaultSushiswapV2Router, cfg.Contracts.SushiswapV2Router)
	assert.Equal(t, dex.MainnetUniswapV3Quoter, cfg.Contracts.UniswapV3Quoter)
	assert.Equal(t, dex.MainnetUniswapV3Router, cfg.Contracts.UniswapV3Router)
	assert.Equal(t, time.Minute, cfg.Metrics.ReportInterval)
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid dry run", func(t *testing.T) {
		require.NoError(t, validConfig().ValidateConfig())
	})

	t.Run("live mode needs private key", func(t *testing.T) {
		cfg := validConfig()
		cfg.DryRun = false
		err := cfg.ValidateConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "private key")
	})

	t.Run("collects every error", func(t *testing.T) {
		cfg := validConfig()
		cfg.Contracts.Executor = "0x1234"
		cfg.Trading.SlippageBps = 20000
		cfg.Workers = 0
		err := cfg.ValidateConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "executor")
		assert.Contains(t, err.Error(), "slippage_bps")
		assert.Contains(t, err.Error(), "workers")
	})

	t.Run("mev protect needs relay", func(t *testing.T) {
		cfg := validConfig()
		cfg.MEVProtect = true
		cfg.FlashbotsRelay = ""
		assert.Error(t, cfg.ValidateConfig())
	})

	t.Run("bad gwei", func(t *testing.T) {
		cfg := validConfig()
		cfg.Gas.PriorityGwei = "-1"
		assert.Error(t, cfg.ValidateConfig())
	})

	t.Run("unknown fee tier", func(t *testing.T) {
		cfg := validConfig()
		cfg.Trading.V3FeeTier = 42
		assert.Error(t, cfg.ValidateConfig())
	})
}

func TestCircuitBreakerValidate(t *testing.T) {
	cb := CircuitBreakerConfig{Enabled: false}
	assert.NoError(t, cb.Validate())

	cb = CircuitBreakerConfig{Enabled: true, ErrorThreshold: 0, ResetInterval: time.Second, CooldownPeriod: time.Second}
	assert.Error(t, cb.Validate())
}

func TestLoadConfigFromYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.yaml")
	content := []byte(`chain_id: 5
rpc_endpoint: http://node:8545
dry_run: true
wallet:
  public_address: "` + testWallet + `"
contracts:
  executor: "` + testExecutor + `"
  uniswap_v2_router: "` + DefaultUniswapV2Router + `"
  sushiswap_v2_router: "` + DefaultSushiswapV2Router + `"
trading:
  premium_bps: 9
  slippage_bps: 30
  default_flashloan_amount_wei: "500"
  deadline_window: 60s
  v3_fee_tier: 500
gas:
  priority_gwei: "1.5"
  fallback_base_fee_gwei: "15"
  cycle_gas_limit: 1000000
  default_tx_gas_limit: 1500000
scanner:
  poll_interval: 3s
  disabled_backoff: 2s
  dedupe_size: 10
workers: 2
evaluation_timeout: 5s
circuit_breaker:
  enabled: false
rpc_rate_limit:
  requests_per_second: 5
  burst_size: 5
  wait_timeout: 1s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv(EnvDefaultSlippageBps, "75")
	t.Setenv(EnvAdvisoryAPIKey, "secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), cfg.ChainID)
	assert.Equal(t, uint64(9), cfg.Trading.PremiumBps)
	assert.Equal(t, uint64(75), cfg.Trading.SlippageBps)
	assert.Equal(t, uint32(500), cfg.Trading.V3FeeTier)
	assert.Equal(t, "1500000000", cfg.Gas.PriorityFeeWei().String())
	assert.Equal(t, "secret", cfg.Advisory.APIKey)
	assert.Equal(t, 5*time.Second, cfg.EvaluationTimeout)
}

func TestLoadConfigFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.json")
	cfg := validConfig()
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, testExecutor, loaded.Contracts.Executor)
	assert.Equal(t, cfg.Scanner.PollInterval, loaded.Scanner.PollInterval)
}

func TestLoadConfigRejectsBadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "planner.json")
	require.NoError(t, SaveConfig(validConfig(), path))

	t.Setenv(EnvChainID, "mainnet")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvChainID)
}
