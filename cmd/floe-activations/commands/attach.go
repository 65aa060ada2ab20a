package commands

import (
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) newAttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach a process to a running activation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runtimeDir, _ := cmd.Flags().GetString("runtime-dir")
			envPath, _ := cmd.Flags().GetString("env-path")
			id, _ := cmd.Flags().GetString("id")
			pid, _ := cmd.Flags().GetInt("pid")

			var timeout *time.Duration
			if cmd.Flags().Changed("timeout-ms") {
				ms, _ := cmd.Flags().GetInt64("timeout-ms")
				d := time.Duration(ms) * time.Millisecond
				timeout = &d
			}
			var removePid *int
			if cmd.Flags().Changed("remove-pid") {
				old, _ := cmd.Flags().GetInt("remove-pid")
				removePid = &old
			}

			return c.lifecycle.Attach(runtimeDir, envPath, id, pid, timeout, removePid)
		},
	}
	cmd.Flags().String("id", "", "Activation ID")
	cmd.Flags().Int("pid", 0, "PID to attach")
	cmd.Flags().Int64("timeout-ms", 0, "Keep the attachment alive this long even if the process exits")
	cmd.Flags().Int("remove-pid", 0, "PID to detach in the same write")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("pid")
	cmd.MarkFlagsMutuallyExclusive("timeout-ms", "remove-pid")
	cmd.MarkFlagsOneRequired("timeout-ms", "remove-pid")
	return cmd
}
