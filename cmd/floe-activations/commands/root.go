// Package commands implements the CLI commands for floe-activations.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/floe/internal/app"
	"go.trai.ch/floe/internal/build"
)

// CLI represents the command line interface for floe-activations.
type CLI struct {
	lifecycle *app.Lifecycle
	rootCmd   *cobra.Command
}

// New creates a new CLI instance. defaultRuntimeDir seeds the --runtime-dir
// flag so activating scripts only pass it when overriding the config.
func New(lifecycle *app.Lifecycle, defaultRuntimeDir string) *CLI {
	rootCmd := &cobra.Command{
		Use:           "floe-activations",
		Short:         "Manage activation state for floe environments",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.PersistentFlags().String("runtime-dir", defaultRuntimeDir, "Directory holding per-environment runtime state")
	rootCmd.PersistentFlags().String("env-path", "", "Path of the environment directory")

	c := &CLI{
		lifecycle: lifecycle,
		rootCmd:   rootCmd,
	}

	rootCmd.AddCommand(c.newStartOrAttachCmd())
	rootCmd.AddCommand(c.newAttachCmd())
	rootCmd.AddCommand(c.newSetReadyCmd())
	rootCmd.AddCommand(c.newPrependAndDedupCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOut redirects command output. Used for testing.
func (c *CLI) SetOut(w io.Writer) {
	c.rootCmd.SetOut(w)
}
