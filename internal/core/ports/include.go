package ports

import (
	"context"

	"go.trai.ch/floe/internal/core/domain"
)

// IncludeFetcher defines the interface for fetching included environments.
type IncludeFetcher interface {
	// Fetch materializes one declared include as a locked include: the
	// included environment's manifest plus its resolved name.
	Fetch(ctx context.Context, descriptor domain.IncludeDescriptor) (domain.LockedInclude, error)
}
