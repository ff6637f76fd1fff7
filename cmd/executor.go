package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/michaelpento.lv/flashplanner/cmd/bot"
	"github.com/michaelpento.lv/flashplanner/utils"
	"github.com/spf13/cobra"
)

var executorCmd = &cobra.Command{
	Use:   "executor",
	Short: "Administer the on-chain executor and relay submissions",
}

var executorPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Send pause() to the executor contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd.Context(), func(components *bot.Components) error {
			return sendPause(cmd, components, true)
		})
	},
}

var executorUnpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Send unpause() to the executor contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withComponents(cmd.Context(), func(components *bot.Components) error {
			return sendPause(cmd, components, false)
		})
	},
}

var executorCancelCmd = &cobra.Command{
	Use:   "cancel <tx-hash>",
	Short: "Withdraw a private transaction from the relay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hexutil.Decode(args[0])
		if err != nil || len(raw) != common.HashLength {
			return fmt.Errorf("%q is not a transaction hash", args[0])
		}
		return withComponents(cmd.Context(), func(components *bot.Components) error {
			cancelled, err := components.Submitter.CancelPrivate(cmd.Context(), common.BytesToHash(raw))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled: %t\n", cancelled)
			return nil
		})
	},
}

// sendPause goes through the regular submitter, so dry run still applies
func sendPause(cmd *cobra.Command, components *bot.Components, paused bool) error {
	tx, err := components.Builder.BuildPause(cmd.Context(), paused)
	if err != nil {
		return err
	}
	hash, err := components.Submitter.SignAndSend(cmd.Context(), tx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tx: %s\n", hash)
	return nil
}

func withComponents(ctx context.Context, fn func(*bot.Components) error) error {
	log := utils.GetLogger()
	defer utils.CleanupLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}
	defer client.Close()

	components, err := bot.NewComponents(ctx, cfg, client, nil, log)
	if err != nil {
		return err
	}
	return fn(components)
}

func init() {
	executorCmd.AddCommand(executorPauseCmd, executorUnpauseCmd, executorCancelCmd)
	rootCmd.AddCommand(executorCmd)
}
