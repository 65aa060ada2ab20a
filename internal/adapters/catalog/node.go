package catalog

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/floe/internal/adapters/config"
	"go.trai.ch/floe/internal/core/ports"
)

// NodeID is the unique identifier for the catalog client Graft node.
const NodeID graft.ID = "adapter.catalog"

func init() {
	graft.Register(graft.Node[ports.CatalogClient]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.CatalogClient, error) {
			cfg, err := graft.Dep[*config.Config](ctx)
			if err != nil {
				return nil, err
			}
			return NewClient(cfg.CatalogURL, cfg.Token), nil
		},
	})
}
