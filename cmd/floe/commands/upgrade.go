package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newUpgradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [targets...]",
		Short: "Re-resolve packages against the latest catalog state",
		Long: "Re-resolve the named install IDs or package groups; with no " +
			"targets every package is upgraded. Included environments are only " +
			"refetched when named with --include or when --include-all is set.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			includes, _ := cmd.Flags().GetStringArray("include")
			includeAll, _ := cmd.Flags().GetBool("include-all")

			// nil leaves includes untouched, empty refetches all of them.
			var includeTargets []string
			switch {
			case includeAll:
				includeTargets = []string{}
			case len(includes) > 0:
				includeTargets = includes
			}

			result, err := c.app.Upgrade(cmd.Context(), dir, args, includeTargets)
			if err != nil {
				return err
			}
			printLockResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringArray("include", nil, "Included environment to refetch (repeatable)")
	cmd.Flags().Bool("include-all", false, "Refetch every included environment")
	return cmd
}
