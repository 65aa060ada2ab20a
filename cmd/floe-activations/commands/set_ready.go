package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newSetReadyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-ready",
		Short: "Mark an activation as ready to be attached to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtimeDir, _ := cmd.Flags().GetString("runtime-dir")
			envPath, _ := cmd.Flags().GetString("env-path")
			id, _ := cmd.Flags().GetString("id")
			return c.lifecycle.SetReady(runtimeDir, envPath, id)
		},
	}
	cmd.Flags().String("id", "", "Activation ID")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
