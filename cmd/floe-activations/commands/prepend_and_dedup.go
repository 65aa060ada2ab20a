package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/floe/internal/core/domain"
)

// newPrependAndDedupCmd is a pure string helper for activation scripts: it
// never touches activation state.
func (c *CLI) newPrependAndDedupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepend-and-dedup",
		Short: "Prepend environment directories to a PATH-like variable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envDirs, _ := cmd.Flags().GetString("env-dirs")
			pathLike, _ := cmd.Flags().GetString("path-like")

			var suffixes []string
			if cmd.Flags().Changed("suffix") {
				suffix, _ := cmd.Flags().GetString("suffix")
				suffixes = []string{suffix}
			}

			fixed := domain.PrependDirsToPathLike(
				domain.SeparateDirList(envDirs),
				suffixes,
				domain.SeparateDirList(pathLike),
			)
			fmt.Fprintln(cmd.OutOrStdout(), domain.JoinDirList(fixed))
			return nil
		},
	}
	cmd.Flags().String("env-dirs", "", "Colon-delimited list of environment directories")
	cmd.Flags().String("path-like", "", "Contents of a PATH-like variable")
	cmd.Flags().String("suffix", "", "Suffix to append to each environment directory")
	_ = cmd.MarkFlagRequired("env-dirs")
	return cmd
}
