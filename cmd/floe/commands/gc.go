package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Drop registry entries for environments that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := c.app.GC()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d environments registered\n", len(registry.Entries))
			return nil
		},
	}
}
