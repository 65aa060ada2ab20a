package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/floe/internal/adapters/catalog" //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/adapters/config"  //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/adapters/flake"   //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/adapters/logger"  //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/adapters/state"   //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/core/ports"
)

// NodeID is the unique identifier for the main App Graft node.
const NodeID graft.ID = "app.main"

func init() {
	graft.Register(graft.Node[*App]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			catalog.NodeID,
			flake.NodeID,
			state.RegistryNodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			client, err := graft.Dep[ports.CatalogClient](ctx)
			if err != nil {
				return nil, err
			}
			installables, err := graft.Dep[ports.InstallableLocker](ctx)
			if err != nil {
				return nil, err
			}
			registry, err := graft.Dep[*state.RegistryStore](ctx)
			if err != nil {
				return nil, err
			}
			return New(*cfg, client, installables, registry, log), nil
		},
	})
}
