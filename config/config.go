package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/michaelpento.lv/flashplanner/dex"
	bigmath "github.com/michaelpento.lv/flashplanner/utils/math"
	"gopkg.in/yaml.v2"
)

// Mainnet defaults
const (
	DefaultUniswapV2Router       = dex.MainnetUniswapV2Router
	DefaultSushiswapV2Router     = dex.MainnetSushiswapRouter
	DefaultUniswapV3Quoter       = dex.MainnetUniswapV3Quoter
	DefaultUniswapV3Router       = dex.MainnetUniswapV3Router
	DefaultAaveAddressesProvider = "0xa97684ead0e402dC232d5A977953DF7ECBaB3CDb"
)

type Config struct {
	// Chain and network settings
	ChainID     uint64 `json:"chain_id" yaml:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint" yaml:"rpc_endpoint"`
	LogLevel    string `json:"log_level" yaml:"log_level"`

	// Submission behaviour
	DryRun         bool   `json:"dry_run" yaml:"dry_run"`
	MEVProtect     bool   `json:"mev_protect" yaml:"mev_protect"`
	FlashbotsRelay string `json:"flashbots_relay" yaml:"flashbots_relay"`
	Preflight      bool   `json:"preflight" yaml:"preflight"`

	Wallet    WalletConfig    `json:"wallet" yaml:"wallet"`
	Contracts ContractsConfig `json:"contracts" yaml:"contracts"`
	Trading   TradingConfig   `json:"trading" yaml:"trading"`
	Gas       GasConfig       `json:"gas" yaml:"gas"`
	Advisory  AdvisoryConfig  `json:"advisory" yaml:"advisory"`
	Scanner   ScannerConfig   `json:"scanner" yaml:"scanner"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`

	// Evaluation pipeline
	Workers           int           `json:"workers" yaml:"workers"`
	EvaluationTimeout time.Duration `json:"evaluation_timeout" yaml:"evaluation_timeout"`

	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	RPCRateLimit   RateLimitConfig      `json:"rpc_rate_limit" yaml:"rpc_rate_limit"`
}

type WalletConfig struct {
	PrivateKey    string `json:"-" yaml:"-"`
	PublicAddress string `json:"public_address" yaml:"public_address"`
}

type ContractsConfig struct {
	Executor              string `json:"executor" yaml:"executor"`
	AaveAddressesProvider string `json:"aave_addresses_provider" yaml:"aave_addresses_provider"`
	UniswapV2Router       string `json:"uniswap_v2_router" yaml:"uniswap_v2_router"`
	SushiswapV2Router     string `json:"sushiswap_v2_router" yaml:"sushiswap_v2_router"`
	UniswapV3Quoter       string `json:"uniswap_v3_quoter" yaml:"uniswap_v3_quoter"`
	UniswapV3Router       string `json:"uniswap_v3_router" yaml:"uniswap_v3_router"`
}

type TradingConfig struct {
	PremiumBps     uint64 `json:"premium_bps" yaml:"premium_bps"`
	RefreshPremium bool   `json:"refresh_premium" yaml:"refresh_premium"`
	SlippageBps    uint64 `json:"slippage_bps" yaml:"slippage_bps"`
	// Wei, base 10
	DefaultFlashLoanAmount string        `json:"default_flashloan_amount_wei" yaml:"default_flashloan_amount_wei"`
	DeadlineWindow         time.Duration `json:"deadline_window" yaml:"deadline_window"`
	V3FeeTier              uint32        `json:"v3_fee_tier" yaml:"v3_fee_tier"`
}

type GasConfig struct {
	PriorityGwei        string `json:"priority_gwei" yaml:"priority_gwei"`
	FallbackBaseFeeGwei string `json:"fallback_base_fee_gwei" yaml:"fallback_base_fee_gwei"`
	// Hint handed to the simulator and the executeFlashLoan template
	CycleGasLimit uint64 `json:"cycle_gas_limit" yaml:"cycle_gas_limit"`
	// Used by the transaction builder when a template carries no gas
	DefaultTxGasLimit uint64 `json:"default_tx_gas_limit" yaml:"default_tx_gas_limit"`
}

type AdvisoryConfig struct {
	Endpoint  string          `json:"endpoint" yaml:"endpoint"`
	APIKey    string          `json:"-" yaml:"-"`
	Timeout   time.Duration   `json:"timeout" yaml:"timeout"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

type ScannerConfig struct {
	SpoolDir        string        `json:"spool_dir" yaml:"spool_dir"`
	EnableFile      string        `json:"enable_file" yaml:"enable_file"`
	PollInterval    time.Duration `json:"poll_interval" yaml:"poll_interval"`
	DisabledBackoff time.Duration `json:"disabled_backoff" yaml:"disabled_backoff"`
	DedupeSize      int           `json:"dedupe_size" yaml:"dedupe_size"`
}

type MetricsConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
	Namespace  string `json:"namespace" yaml:"namespace"`
	// Zero disables the periodic summary log
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
}

type CircuitBreakerConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	ErrorThreshold int           `json:"error_threshold" yaml:"error_threshold"`
	ResetInterval  time.Duration `json:"reset_interval" yaml:"reset_interval"`
	CooldownPeriod time.Duration `json:"cooldown_period" yaml:"cooldown_period"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout" yaml:"wait_timeout"`
}

// DefaultFlashLoanWei returns the parsed fallback flash-loan amount
func (t TradingConfig) DefaultFlashLoanWei() *big.Int {
	v, ok := bigmath.ParsePositive(t.DefaultFlashLoanAmount)
	if !ok {
		return nil
	}
	return v
}

// PriorityFeeWei returns the configured priority fee in wei
func (g GasConfig) PriorityFeeWei() *big.Int {
	v, err := bigmath.ParseGwei(g.PriorityGwei)
	if err != nil {
		return nil
	}
	return v
}

// FallbackBaseFeeWei returns the base fee used when fee history is unavailable
func (g GasConfig) FallbackBaseFeeWei() *big.Int {
	v, err := bigmath.ParseGwei(g.FallbackBaseFeeGwei)
	if err != nil {
		return nil
	}
	return v
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}

	// Wallet
	if !common.IsHexAddress(c.Wallet.PublicAddress) {
		errors = append(errors, "wallet.public_address must be a hex address")
	}
	if !c.DryRun && c.Wallet.PrivateKey == "" {
		errors = append(errors, "private key is required unless dry_run is set")
	}
	if c.MEVProtect && c.FlashbotsRelay == "" {
		errors = append(errors, "flashbots_relay must be specified when mev_protect is set")
	}

	// Contracts
	if err := c.Contracts.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("contracts error: %v", err))
	}

	// Trading
	if err := c.Trading.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("trading error: %v", err))
	}

	// Gas
	if err := c.Gas.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("gas error: %v", err))
	}

	if c.Workers <= 0 {
		errors = append(errors, "workers must be positive")
	}
	if c.EvaluationTimeout <= 0 {
		errors = append(errors, "evaluation_timeout must be positive")
	}
	if c.Scanner.PollInterval <= 0 || c.Scanner.DisabledBackoff <= 0 {
		errors = append(errors, "scanner intervals must be positive")
	}
	if c.Scanner.DedupeSize <= 0 {
		errors = append(errors, "scanner.dedupe_size must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errors = append(errors, "metrics.listen_addr must be specified when metrics are enabled")
	}

	// Validate Circuit Breaker
	if err := c.CircuitBreaker.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("circuit breaker error: %v", err))
	}

	// Validate Rate Limits
	if err := c.RPCRateLimit.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("RPC rate limit error: %v", err))
	}
	if c.Advisory.Endpoint != "" {
		if err := c.Advisory.RateLimit.Validate(); err != nil {
			errors = append(errors, fmt.Sprintf("advisory rate limit error: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (c *ContractsConfig) Validate() error {
	var bad []string
	check := func(name, addr string, required bool) {
		if addr == "" && !required {
			return
		}
		if !common.IsHexAddress(addr) {
			bad = append(bad, name)
		}
	}
	check("executor", c.Executor, true)
	check("aave_addresses_provider", c.AaveAddressesProvider, false)
	check("uniswap_v2_router", c.UniswapV2Router, true)
	check("sushiswap_v2_router", c.SushiswapV2Router, true)
	check("uniswap_v3_quoter", c.UniswapV3Quoter, false)
	check("uniswap_v3_router", c.UniswapV3Router, false)
	if len(bad) > 0 {
		return fmt.Errorf("invalid address for %s", strings.Join(bad, ", "))
	}
	return nil
}

func (t *TradingConfig) Validate() error {
	if t.PremiumBps > bigmath.BpsDenominator {
		return fmt.Errorf("premium_bps must not exceed %d", bigmath.BpsDenominator)
	}
	if t.SlippageBps > bigmath.BpsDenominator {
		return fmt.Errorf("slippage_bps must not exceed %d", bigmath.BpsDenominator)
	}
	if t.DefaultFlashLoanWei() == nil {
		return fmt.Errorf("default_flashloan_amount_wei must be a positive integer")
	}
	if t.DeadlineWindow <= 0 {
		return fmt.Errorf("deadline_window must be positive")
	}
	switch t.V3FeeTier {
	case 100, 500, 3000, 10000:
	default:
		return fmt.Errorf("v3_fee_tier %d is not a known fee tier", t.V3FeeTier)
	}
	return nil
}

func (g *GasConfig) Validate() error {
	if g.PriorityFeeWei() == nil {
		return fmt.Errorf("priority_gwei %q is not a non-negative decimal", g.PriorityGwei)
	}
	if g.FallbackBaseFeeWei() == nil {
		return fmt.Errorf("fallback_base_fee_gwei %q is not a non-negative decimal", g.FallbackBaseFeeGwei)
	}
	if g.CycleGasLimit == 0 || g.DefaultTxGasLimit == 0 {
		return fmt.Errorf("gas limits must be positive")
	}
	return nil
}

func (c *CircuitBreakerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ErrorThreshold <= 0 {
		return fmt.Errorf("error threshold must be positive")
	}
	if c.ResetInterval <= 0 {
		return fmt.Errorf("reset interval must be positive")
	}
	if c.CooldownPeriod <= 0 {
		return fmt.Errorf("cooldown period must be positive")
	}

	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}

	return nil
}

// LoadConfig builds the configuration from defaults, an optional file and the environment.
// An empty cfgFile falls back to $HOME/.flashplanner.json when that file exists.
func LoadConfig(cfgFile string) (*Config, error) {
	config := DefaultConfig()

	if cfgFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".flashplanner.json")
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
			}
		}
	}

	if cfgFile != "" {
		if err := decodeFile(cfgFile, config); err != nil {
			return nil, err
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

func decodeFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, config); err != nil {
			return fmt.Errorf("failed to decode config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to decode config file: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" && err == nil {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("invalid %s: %w", key, perr)
				return
			}
			*dst = b
		}
	}
	setUint := func(key string, dst *uint64) {
		if v := os.Getenv(key); v != "" && err == nil {
			n, perr := strconv.ParseUint(v, 10, 64)
			if perr != nil {
				err = fmt.Errorf("invalid %s: %w", key, perr)
				return
			}
			*dst = n
		}
	}

	setUint(EnvChainID, &c.ChainID)
	setString(EnvRPCHTTPURL, &c.RPCEndpoint)
	setString(EnvLogLevel, &c.LogLevel)
	setBool(EnvDryRun, &c.DryRun)
	setBool(EnvMEVProtect, &c.MEVProtect)
	setString(EnvFlashbotsRelayURL, &c.FlashbotsRelay)

	setString(EnvPrivateKey, &c.Wallet.PrivateKey)
	setString(EnvPublicAddress, &c.Wallet.PublicAddress)

	setString(EnvExecutorAddress, &c.Contracts.Executor)
	setString(EnvAaveAddressProvider, &c.Contracts.AaveAddressesProvider)
	setString(EnvUniswapV2Router, &c.Contracts.UniswapV2Router)
	setString(EnvSushiswapV2Router, &c.Contracts.SushiswapV2Router)
	setString(EnvUniswapV3Quoter, &c.Contracts.UniswapV3Quoter)
	setString(EnvUniswapV3Router, &c.Contracts.UniswapV3Router)

	setUint(EnvAavePremiumBps, &c.Trading.PremiumBps)
	setUint(EnvDefaultSlippageBps, &c.Trading.SlippageBps)
	setString(EnvDefaultFlashLoanWei, &c.Trading.DefaultFlashLoanAmount)
	setString(EnvGasPriorityGwei, &c.Gas.PriorityGwei)

	setString(EnvAgentEnableFile, &c.Scanner.EnableFile)
	setString(EnvOpportunitySpoolDir, &c.Scanner.SpoolDir)
	setString(EnvAdvisoryURL, &c.Advisory.Endpoint)
	setString(EnvAdvisoryAPIKey, &c.Advisory.APIKey)

	return err
}

func SaveConfig(cfg *Config, cfgFile string) error {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cfgFile = filepath.Join(home, ".flashplanner.json")
	}

	file, err := os.Create(cfgFile)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	return encoder.Encode(cfg)
}

func DefaultConfig() *Config {
	return &Config{
		ChainID:     1,
		RPCEndpoint: "http://localhost:8545",
		LogLevel:    "INFO",
		DryRun:      true,
		Contracts: ContractsConfig{
			AaveAddressesProvider: DefaultAaveAddressesProvider,
			UniswapV2Router:       DefaultUniswapV2Router,
			SushiswapV2Router:     DefaultSushiswapV2Router,
			UniswapV3Quoter:       DefaultUniswapV3Quoter,
			UniswapV3Router:       DefaultUniswapV3Router,
		},
		Trading: TradingConfig{
			PremiumBps:             5,
			SlippageBps:            50,
			DefaultFlashLoanAmount: "1000000000000000000", // 1 token, 18 decimals
			DeadlineWindow:         600 * time.Second,
			V3FeeTier:              3000,
		},
		Gas: GasConfig{
			PriorityGwei:        "2",
			FallbackBaseFeeGwei: "15",
			CycleGasLimit:       1_000_000,
			DefaultTxGasLimit:   1_500_000,
		},
		Advisory: AdvisoryConfig{
			Timeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 2,
				BurstSize:         4,
				WaitTimeout:       5 * time.Second,
			},
		},
		Scanner: ScannerConfig{
			EnableFile:      "var/agent_enabled",
			PollInterval:    3 * time.Second,
			DisabledBackoff: 2 * time.Second,
			DedupeSize:      4096,
		},
		Metrics: MetricsConfig{
			Enabled:        false,
			ListenAddr:     ":9102",
			Namespace:      "flashplanner",
			ReportInterval: time.Minute,
		},
		Workers:           4,
		EvaluationTimeout: 20 * time.Second,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        true,
			ErrorThreshold: 5,
			ResetInterval:  time.Minute,
			CooldownPeriod: 30 * time.Second,
		},
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         20,
			WaitTimeout:       time.Second,
		},
	}
}
