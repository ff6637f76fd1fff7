package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print it with secrets removed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		fmt.Fprintf(cmd.OutOrStdout(), "private key set: %t\n", cfg.Wallet.PrivateKey != "")
		fmt.Fprintf(cmd.OutOrStdout(), "advisory key set: %t\n", cfg.Advisory.APIKey != "")
		if cfg.Advisory.Endpoint == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "warning: %s is unset, every opportunity will be declined\n", config.EnvAdvisoryURL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
