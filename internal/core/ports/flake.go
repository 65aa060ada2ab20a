package ports

import (
	"context"

	"go.trai.ch/floe/internal/core/domain"
)

// InstallableLocker defines the interface for locking flake installables.
type InstallableLocker interface {
	// LockFlakeInstallable pins a single flake reference for one system.
	LockFlakeInstallable(ctx context.Context, system string, descriptor domain.FlakeDescriptor) (domain.LockedInstallable, error)
}
