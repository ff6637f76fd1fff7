package cmd

import (
	"context"
	"fmt"

	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/michaelpento.lv/flashplanner/utils"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "flashplanner",
	Short: "A flash loan arbitrage planner for EVM chains",
	Long: `flashplanner watches a spool of market snapshots, asks an advisory oracle
for candidate two-hop cycles, re-checks them with on-chain quotes and submits
an Aave flash loan through the executor contract when the numbers hold.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.flashplanner.json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file (default is ./.env when present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	if err := config.LoadEnv(envFile); err != nil {
		// logger is not up yet
		fmt.Println("warning:", err)
	}
	utils.InitLogger(config.GetEnvWithDefault(config.EnvLogLevel, "info"), debug)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
