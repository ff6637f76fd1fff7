package cmd

import (
	"fmt"

	"github.com/michaelpento.lv/flashplanner/config"
	"github.com/michaelpento.lv/flashplanner/control"
	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop the scanner from polling new opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, false)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Let the scanner poll again",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, true)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the scanner is enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := enableFile()
		on, err := control.ReadEnabled(path)
		if err != nil {
			return err
		}
		state := "paused"
		if on {
			state = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", state, path)
		return nil
	},
}

func setEnabled(cmd *cobra.Command, on bool) error {
	path := enableFile()
	if err := control.WriteEnabled(path, on); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %t to %s\n", on, path)
	return nil
}

// the control file only needs the path, so a partial config is fine here
func enableFile() string {
	cfg, err := config.LoadConfig(cfgFile)
	if err == nil && cfg.Scanner.EnableFile != "" {
		return cfg.Scanner.EnableFile
	}
	return config.GetEnvWithDefault(config.EnvAgentEnableFile, config.DefaultConfig().Scanner.EnableFile)
}

func init() {
	rootCmd.AddCommand(pauseCmd, resumeCmd, statusCmd)
}
