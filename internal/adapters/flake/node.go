package flake

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/floe/internal/adapters/logger"
	"go.trai.ch/floe/internal/core/ports"
)

// NodeID is the unique identifier for the flake locker Graft node.
const NodeID graft.ID = "adapter.flake"

func init() {
	graft.Register(graft.Node[ports.InstallableLocker]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.InstallableLocker, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewLocker(log), nil
		},
	})
}
