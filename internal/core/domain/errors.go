package domain

import "go.trai.ch/zerr"

var (
	// ErrActivationExists is returned when creating an activation for a store
	// path that already has one.
	ErrActivationExists = zerr.New("activation already exists for store path")

	// ErrActivationNotFound is returned when an activation ID is not present
	// in the registry.
	ErrActivationNotFound = zerr.New("activation not found")

	// ErrEnvNotRegistered is returned when an environment is missing from the
	// environment registry.
	ErrEnvNotRegistered = zerr.New("environment not registered")

	// ErrNoEnvRegistry is returned when the registry file does not exist yet
	// but the operation requires one.
	ErrNoEnvRegistry = zerr.New("no environment registry found")

	// ErrParseLockfile is returned when a lockfile cannot be deserialized.
	ErrParseLockfile = zerr.New("failed to parse lockfile")

	// ErrParseManifest is returned when a manifest cannot be deserialized.
	ErrParseManifest = zerr.New("failed to parse manifest")

	// ErrAmbiguousPackage is returned when a locked package matches none of
	// the known structural shapes.
	ErrAmbiguousPackage = zerr.New("locked package matches no known shape")

	// ErrFlakeEval is returned when nix evaluated a flake installable and
	// rejected it. Distinct from backend errors (nix missing, bad output):
	// an eval failure is a resolution failure, not an infrastructure one.
	ErrFlakeEval = zerr.New("failed to evaluate flake installable")

	// ErrIncludeOutOfSync is returned when an included environment's lockfile
	// is stale with respect to its manifest.
	ErrIncludeOutOfSync = zerr.New("included environment is out of sync")

	// ErrPackageNotFound is returned when the catalog has no package at the
	// requested attr path.
	ErrPackageNotFound = zerr.New("package not found in catalog")
)
