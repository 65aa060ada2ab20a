package state

import (
	"context"

	"github.com/grindlemire/graft"
)

// RegistryNodeID is the unique identifier for the registry store Graft node.
const RegistryNodeID graft.ID = "adapter.state.registry"

func init() {
	graft.Register(graft.Node[*RegistryStore]{
		ID:        RegistryNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*RegistryStore, error) {
			return NewRegistryStore(), nil
		},
	})
}
