// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/floe/internal/core/domain"
)

// CatalogClient defines the interface for the package resolution service.
type CatalogClient interface {
	// Resolve answers all package groups in a single batched call. A group
	// that cannot be resolved still gets a ResolvedPackageGroup back, with a
	// nil or incomplete page; only transport and API failures return an
	// error.
	Resolve(ctx context.Context, groups []domain.PackageGroup) ([]domain.ResolvedPackageGroup, error)

	// Search finds packages matching a term on one system. limit zero means
	// the service default page size.
	Search(ctx context.Context, term, system string, limit int) (domain.SearchResults, error)

	// PackageVersions lists every version of an attr path, returning
	// domain.ErrPackageNotFound when the catalog has never seen it.
	PackageVersions(ctx context.Context, attrPath string) (domain.PackageDetails, error)
}
