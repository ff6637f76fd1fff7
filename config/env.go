package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvChainID             = "CHAIN_ID"
	EnvRPCHTTPURL          = "RPC_HTTP_URL"
	EnvPrivateKey          = "PRIVATE_KEY"
	EnvPublicAddress       = "PUBLIC_ADDRESS"
	EnvDryRun              = "DRY_RUN"
	EnvMEVProtect          = "MEV_PROTECT"
	EnvFlashbotsRelayURL   = "FLASHBOTS_RELAY_URL"
	EnvGasPriorityGwei     = "GAS_PRIORITY_GWEI"
	EnvAavePremiumBps      = "AAVE_PREMIUM_BPS"
	EnvDefaultSlippageBps  = "DEFAULT_SLIPPAGE_BPS"
	EnvDefaultFlashLoanWei = "DEFAULT_FLASHLOAN_AMOUNT_WEI"
	EnvExecutorAddress     = "EXECUTOR_ADDRESS"
	EnvAaveAddressProvider = "AAVE_V3_ADDRESSES_PROVIDER"
	EnvUniswapV2Router     = "UNISWAP_V2_ROUTER"
	EnvSushiswapV2Router   = "SUSHISWAP_V2_ROUTER"
	EnvUniswapV3Quoter     = "UNISWAP_V3_QUOTER"
	EnvUniswapV3Router     = "UNISWAP_V3_ROUTER"
	EnvAgentEnableFile     = "AGENT_ENABLE_FILE"
	EnvAdvisoryURL         = "ADVISORY_URL"
	EnvAdvisoryAPIKey      = "ADVISORY_API_KEY"
	EnvLogLevel            = "LOG_LEVEL"
	EnvOpportunitySpoolDir = "OPPORTUNITY_SPOOL_DIR"
)

// LoadEnv loads environment variables from a .env file.
// An empty path means ".env" in the working directory, which may be absent.
func LoadEnv(path string) error {
	if path == "" {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetRequiredEnv returns the value of key or an error when it is unset
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}
