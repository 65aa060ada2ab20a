package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/floe/internal/app"
)

func (c *CLI) newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Resolve the manifest and write the lockfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			result, err := c.app.Lock(cmd.Context(), dir)
			if err != nil {
				return err
			}
			printLockResult(cmd, result)
			return nil
		},
	}
}

func printLockResult(cmd *cobra.Command, result app.LockResult) {
	for _, warning := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: '%s': %s\n", warning.Include, warning.Msg)
	}
	if result.Changed {
		fmt.Fprintln(cmd.OutOrStdout(), "lockfile updated")
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "lockfile already up to date")
}
