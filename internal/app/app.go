// Package app implements the application operations behind the floe CLI.
package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/floe/internal/adapters/config"  //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/adapters/fs"      //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/adapters/include" //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/adapters/state"   //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/floe/internal/engine/resolve"
	"go.trai.ch/zerr"
)

const (
	manifestFilename = "manifest.json"
	lockfileFilename = "manifest.lock"
)

// App glues config, the resolution engine, and the state stores into the
// operations the CLI exposes.
type App struct {
	cfg          config.Config
	catalog      ports.CatalogClient
	installables ports.InstallableLocker
	registry     *state.RegistryStore
	logger       ports.Logger
}

// New creates a new App instance.
func New(
	cfg config.Config,
	catalog ports.CatalogClient,
	installables ports.InstallableLocker,
	registry *state.RegistryStore,
	logger ports.Logger,
) *App {
	return &App{
		cfg:          cfg,
		catalog:      catalog,
		installables: installables,
		registry:     registry,
		logger:       logger,
	}
}

// LockResult reports what a lock or upgrade did to the lockfile.
type LockResult struct {
	// Changed is false when the freshly computed lockfile is identical to
	// the one already on disk, in which case nothing was written.
	Changed  bool
	Warnings []domain.MergeWarning
}

// Lock computes the lockfile for the environment at envDir and writes it
// next to the manifest when it differs from the existing one.
func (a *App) Lock(ctx context.Context, envDir string) (LockResult, error) {
	return a.lock(ctx, envDir, nil, nil)
}

// Upgrade re-resolves the named targets (install IDs or package groups; none
// means everything) against the latest catalog state. Include upgrades are
// controlled separately: includeTargets nil leaves includes untouched, empty
// refetches every include, names refetch exactly those.
func (a *App) Upgrade(ctx context.Context, envDir string, targets, includeTargets []string) (LockResult, error) {
	return a.lock(ctx, envDir, &unlockSpec{targets: targets}, includeTargets)
}

// unlockSpec distinguishes "upgrade nothing" (nil) from "upgrade with no
// targets", which unlocks every package.
type unlockSpec struct {
	targets []string
}

func (a *App) lock(ctx context.Context, envDir string, unlock *unlockSpec, includeTargets []string) (LockResult, error) {
	manifest, err := readManifest(filepath.Join(envDir, manifestFilename))
	if err != nil {
		return LockResult{}, err
	}

	lockPath := filepath.Join(envDir, lockfileFilename)
	seed, err := readLockfileIfExists(lockPath)
	if err != nil {
		return LockResult{}, err
	}

	resolutionSeed := seed
	if unlock != nil && seed != nil {
		// Unlocking filters the package list in place, so the copy gets its
		// own slice to keep the change check's reference intact.
		unsealed := *seed
		unsealed.Packages = slices.Clone(seed.Packages)
		unsealed.UnlockPackagesByGroupOrIID(unlock.targets...)
		resolutionSeed = &unsealed
	}

	deps := resolve.Deps{
		Catalog:      a.catalog,
		Installables: a.installables,
		Includes:     include.NewFetcher(envDir),
		Logger:       a.logger,
	}
	locked, err := resolve.LockManifestWithUpgrades(ctx, manifest, resolutionSeed, deps, includeTargets)
	if err != nil {
		return LockResult{}, err
	}

	changed, err := lockfileChanged(seed, locked)
	if err != nil {
		return LockResult{}, err
	}
	if changed {
		if err := fs.WriteJSONAtomically(lockPath, locked); err != nil {
			return LockResult{}, zerr.Wrap(err, "failed to write lockfile")
		}
	}

	result := LockResult{Changed: changed}
	if locked.Compose != nil {
		result.Warnings = locked.Compose.Warnings
	}
	return result, nil
}

// GC drops registry entries whose environment directory no longer exists and
// returns the pruned registry.
func (a *App) GC() (*domain.EnvRegistry, error) {
	return a.registry.GarbageCollect(state.EnvRegistryPath(a.cfg.DataDir))
}

func readManifest(path string) (*domain.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read manifest"), "path", path)
	}
	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, zerr.Wrap(err, domain.ErrParseManifest.Error())
	}
	return &manifest, nil
}

func readLockfileIfExists(path string) (*domain.Lockfile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read lockfile"), "path", path)
	}
	return domain.ParseLockfile(data)
}

func lockfileChanged(seed, locked *domain.Lockfile) (bool, error) {
	if seed == nil {
		return true, nil
	}
	before, err := seed.Fingerprint()
	if err != nil {
		return false, err
	}
	after, err := locked.Fingerprint()
	if err != nil {
		return false, err
	}
	return before != after, nil
}
