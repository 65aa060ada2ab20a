// Package wiring registers all Graft nodes for the floe CLI.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/floe/internal/adapters/catalog"
	_ "go.trai.ch/floe/internal/adapters/config"
	_ "go.trai.ch/floe/internal/adapters/flake"
	_ "go.trai.ch/floe/internal/adapters/logger"
	_ "go.trai.ch/floe/internal/adapters/state"
	// Register app nodes.
	_ "go.trai.ch/floe/internal/app"
)
