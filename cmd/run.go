package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <goal...>",
		Short: "Run the agent loop on a free-form goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			return runGoal(cmd, strings.Join(args, " "), cfg.Mirror().OutputDir)
		},
	}
}
