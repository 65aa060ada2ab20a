// Package main is the entry point for the floe-activations helper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/floe/cmd/floe-activations/commands"
	"go.trai.ch/floe/internal/adapters/config"
	"go.trai.ch/floe/internal/adapters/logger"
	"go.trai.ch/floe/internal/adapters/proc"
	"go.trai.ch/floe/internal/adapters/spawn"
	"go.trai.ch/floe/internal/adapters/state"
	"go.trai.ch/floe/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logger.New()

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.Error(err)
		return 1
	}

	spawner, err := spawn.NewSpawner(log)
	if err != nil {
		log.Error(err)
		return 1
	}

	lifecycle := app.NewLifecycle(
		state.NewActivationsStore(),
		proc.New(),
		spawner,
		clockwork.NewRealClock(),
		log,
	)

	cli := commands.New(lifecycle, cfg.RuntimeDir)
	if err := cli.Execute(ctx); err != nil {
		log.Error(err)
		return 1
	}
	return 0
}
