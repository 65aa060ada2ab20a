package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/floe/internal/adapters/state"
)

// newStartOrAttachCmd prints shell-evaluable variables telling the activating
// script whether to run the startup hooks or reuse the running activation.
func (c *CLI) newStartOrAttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-or-attach",
		Short: "Create an activation or attach to the existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtimeDir, _ := cmd.Flags().GetString("runtime-dir")
			envPath, _ := cmd.Flags().GetString("env-path")
			storePath, _ := cmd.Flags().GetString("store-path")
			pid, _ := cmd.Flags().GetInt("pid")

			result, err := c.lifecycle.StartOrAttach(cmd.Context(), runtimeDir, envPath, storePath, pid)
			if err != nil {
				return err
			}

			stateDir := state.ActivationStateDirPath(runtimeDir, envPath, result.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "_FLOE_ACTIVATION_ID=%s\n", result.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "_FLOE_ACTIVATION_STATE_DIR=%s\n", stateDir)
			fmt.Fprintf(cmd.OutOrStdout(), "_FLOE_ACTIVATION_ATTACH=%t\n", result.Attached)
			return nil
		},
	}
	cmd.Flags().Int("pid", 0, "PID of the activating process")
	cmd.Flags().String("store-path", "", "Store path of the rendered environment")
	_ = cmd.MarkFlagRequired("pid")
	_ = cmd.MarkFlagRequired("store-path")
	return cmd
}
