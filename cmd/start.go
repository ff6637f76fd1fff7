package cmd

import (
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/michaelpento.lv/flashplanner/cmd/bot"
	"github.com/michaelpento.lv/flashplanner/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the opportunity scanner and evaluators",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, err := ethclient.DialContext(cmd.Context(), cfg.RPCEndpoint)
		if err != nil {
			log.Error("Failed to connect to Ethereum node", zap.Error(err))
			return err
		}
		defer client.Close()

		b, err := bot.New(cmd.Context(), cfg, client, log)
		if err != nil {
			log.Error("Failed to create bot", zap.Error(err))
			return err
		}

		log.Info("Starting flashplanner",
			zap.Uint64("chain_id", cfg.ChainID),
			zap.Bool("dry_run", cfg.DryRun),
			zap.Bool("mev_protect", cfg.MEVProtect))

		if err := b.Start(cmd.Context()); err != nil {
			log.Error("Bot stopped with error", zap.Error(err))
			return err
		}
		log.Info("Shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
