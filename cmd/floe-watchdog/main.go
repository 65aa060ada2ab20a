// Package main is the entry point for the per-activation watchdog.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go.trai.ch/floe/internal/adapters/logger"
	"go.trai.ch/floe/internal/adapters/proc"
	"go.trai.ch/floe/internal/adapters/state"
	"go.trai.ch/floe/internal/build"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/floe/internal/engine/watcher"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.New()
	cmd := newRootCmd(log)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		return 1
	}
	return 0
}

func newRootCmd(log ports.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "floe-watchdog",
		Short:         "Watch one activation's attached processes and clean up after the last one",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			envPath, _ := cmd.Flags().GetString("env-path")
			runtimeDir, _ := cmd.Flags().GetString("runtime-dir")
			return watch(cmd.Context(), log, id, envPath, runtimeDir)
		},
	}
	cmd.Flags().String("id", "", "Activation ID to watch")
	cmd.Flags().String("env-path", "", "Path of the environment directory")
	cmd.Flags().String("runtime-dir", "", "Directory holding per-environment runtime state")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("env-path")
	_ = cmd.MarkFlagRequired("runtime-dir")
	return cmd
}

func watch(ctx context.Context, log ports.Logger, id, envPath, runtimeDir string) error {
	var shouldTerminate, shouldCleanUp atomic.Bool

	store := state.NewActivationsStore()
	activationsPath := state.ActivationsJSONPath(runtimeDir, envPath)
	pidWatcher := watcher.New(
		store,
		proc.New(),
		clockwork.NewRealClock(),
		log,
		activationsPath,
		id,
		&shouldTerminate,
		&shouldCleanUp,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminate := make(chan os.Signal, 1)
	cleanup := make(chan os.Signal, 1)
	signal.Notify(terminate, syscall.SIGINT, syscall.SIGTERM)
	signal.Notify(cleanup, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(terminate)
	defer signal.Stop(cleanup)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case sig := <-terminate:
				log.Info("received terminate signal", "signal", sig.String())
				shouldTerminate.Store(true)
			case sig := <-cleanup:
				log.Info("received cleanup signal", "signal", sig.String())
				shouldCleanUp.Store(true)
			}
		}
	})

	var result watcher.WaitResult
	group.Go(func() error {
		defer cancel()
		var err error
		result, err = pidWatcher.WaitForTermination(ctx)
		return err
	})

	if err := group.Wait(); err != nil {
		return err
	}

	if result.CleanUp == nil {
		log.Info("terminating without cleanup", "activation_id", id)
		return nil
	}
	return cleanUpActivation(log, store, activationsPath, runtimeDir, envPath, id, result.CleanUp)
}

// cleanUpActivation removes the activation under the inherited lock, then
// best-effort removes its scratch directory.
func cleanUpActivation(
	log ports.Logger,
	store ports.ActivationsStore,
	activationsPath, runtimeDir, envPath, id string,
	locked *watcher.LockedActivations,
) error {
	checked, err := locked.Activations.CheckVersion()
	if err != nil {
		locked.Lock.Unlock()
		return err
	}
	checked.RemoveActivation(id)
	if err := store.Write(activationsPath, checked, locked.Lock); err != nil {
		return err
	}

	stateDir := state.ActivationStateDirPath(runtimeDir, envPath, id)
	if err := os.RemoveAll(stateDir); err != nil {
		log.Error(err, "state_dir", stateDir)
	}
	log.Info("cleaned up activation", "activation_id", id)
	return nil
}
