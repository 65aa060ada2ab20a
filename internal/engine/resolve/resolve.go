// Package resolve turns manifests into lockfiles.
//
// Locking is a pipeline: merge included environments, partition the install
// table by descriptor kind, reuse everything the seed lockfile already
// answers, resolve the rest in one batched catalog call plus sequential
// flake evaluations, and reassemble.
package resolve

import (
	"context"
	"errors"
	"sort"

	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	// ErrLicenseNotAllowed is returned when a locked package's license is
	// not on the manifest's allow list.
	ErrLicenseNotAllowed = zerr.New("package license not allowed by manifest")
	// ErrBrokenNotAllowed is returned when a package marked broken is locked
	// without allow.broken set.
	ErrBrokenNotAllowed = zerr.New("package is marked broken")
	// ErrUnfreeNotAllowed is returned when an unfree package is locked with
	// allow.unfree disabled.
	ErrUnfreeNotAllowed = zerr.New("package is unfree")
	// ErrSystemUnavailable is returned when a descriptor requests a system
	// the manifest doesn't enable.
	ErrSystemUnavailable = zerr.New("system not enabled in manifest options")
)

// Deps are the external services locking needs.
type Deps struct {
	Catalog      ports.CatalogClient
	Installables ports.InstallableLocker
	Includes     ports.IncludeFetcher
	Logger       ports.Logger
}

// LockManifest merges includes, resolves the merged manifest, and returns
// the resulting lockfile. Packages and includes already answered by the
// seed are not re-resolved or re-fetched.
func LockManifest(ctx context.Context, manifest *domain.Manifest, seed *domain.Lockfile, deps Deps) (*domain.Lockfile, error) {
	return LockManifestWithUpgrades(ctx, manifest, seed, deps, nil)
}

// LockManifestWithUpgrades is LockManifest with include upgrade control:
// toUpgrade nil upgrades nothing, empty upgrades every include, names
// upgrade exactly those includes.
func LockManifestWithUpgrades(ctx context.Context, manifest *domain.Manifest, seed *domain.Lockfile, deps Deps, toUpgrade []string) (*domain.Lockfile, error) {
	merged, compose, err := mergeManifest(ctx, manifest, seed, deps.Includes, toUpgrade)
	if err != nil {
		return nil, err
	}
	packages, err := resolveManifest(ctx, merged, seed, deps)
	if err != nil {
		return nil, err
	}
	return &domain.Lockfile{
		Version:  domain.LockfileVersion,
		Manifest: *merged,
		Packages: packages,
		Compose:  compose,
	}, nil
}

// flakeToLock is one (install_id, system) flake evaluation to perform.
type flakeToLock struct {
	installID  string
	descriptor domain.FlakeDescriptor
	system     string
}

// seedEntry pairs a locked package with the descriptor that produced it.
type seedEntry struct {
	descriptor domain.PackageDescriptor
	locked     domain.LockedPackage
}

type seedKey struct {
	installID string
	system    string
}

// resolveManifest locks every descriptor of the manifest. Catalog packages
// and flake installables run through symmetric but separate pipelines;
// store paths are locked by definition.
func resolveManifest(ctx context.Context, manifest *domain.Manifest, seed *domain.Lockfile, deps Deps) ([]domain.LockedPackage, error) {
	for _, iid := range sortedInstallIDs(manifest) {
		if err := manifest.Install[iid].ValidateVersionConstraint(); err != nil {
			return nil, err
		}
	}

	catalogGroups, err := collectPackageGroups(manifest, seed)
	if err != nil {
		return nil, err
	}
	alreadyLocked, groupsToLock := splitFullyLockedGroups(catalogGroups, seed)

	installables := collectFlakeInstallables(manifest)
	alreadyLockedInstallables, installablesToLock := splitLockedFlakeInstallables(installables, seed)

	lockedStorePaths := collectStorePaths(manifest)

	// The manifest may have been edited since these were locked, so the
	// current allow list is enforced on carried-over packages too.
	if err := checkPackagesAreAllowed(alreadyLocked, manifest.Options.Allow); err != nil {
		return nil, err
	}
	updatePriority(alreadyLocked, manifest)

	if len(groupsToLock) == 0 && len(installablesToLock) == 0 {
		deps.Logger.Debug("all packages already locked, skipping resolution")
		return concat(lockedStorePaths, alreadyLocked, alreadyLockedInstallables), nil
	}

	var newlyLocked []domain.LockedPackage
	if len(groupsToLock) > 0 {
		resolved, err := deps.Catalog.Resolve(ctx, groupsToLock)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to resolve packages")
		}
		newlyLocked, err = lockedPackagesFromResolution(manifest, resolved)
		if err != nil {
			return nil, err
		}
	}

	var newlyLockedInstallables []domain.LockedPackage
	if len(installablesToLock) > 0 {
		newlyLockedInstallables, err = lockFlakeInstallables(ctx, deps.Installables, installablesToLock)
		if err != nil {
			return nil, err
		}
	}

	// The server enforces the allow list as well, but trusting that alone
	// would let a server bug ship policy violations.
	if err := checkPackagesAreAllowed(newlyLocked, manifest.Options.Allow); err != nil {
		return nil, err
	}

	return concat(lockedStorePaths, alreadyLocked, newlyLocked, alreadyLockedInstallables, newlyLockedInstallables), nil
}

// makeSeedMapping indexes the seed lockfile as
// (install_id, system) -> (descriptor, locked package). Locked packages
// whose install ID left the manifest are dropped.
func makeSeedMapping(seed *domain.Lockfile) map[seedKey]seedEntry {
	if seed == nil {
		return nil
	}
	mapping := make(map[seedKey]seedEntry, len(seed.Packages))
	for _, locked := range seed.Packages {
		descriptor, ok := seed.Manifest.Install[locked.InstallID()]
		if !ok {
			continue
		}
		mapping[seedKey{locked.InstallID(), locked.System()}] = seedEntry{descriptor, locked}
	}
	return mapping
}

func sortedInstallIDs(manifest *domain.Manifest) []string {
	ids := make([]string, 0, len(manifest.Install))
	for id := range manifest.Install {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// descriptorSystems expands a descriptor to the systems it must lock for,
// validating any explicit restriction against the manifest's enabled set.
func descriptorSystems(installID string, explicit []string, manifest *domain.Manifest) ([]string, error) {
	enabled := manifest.EnabledSystems()
	for _, system := range explicit {
		found := false
		for _, avail := range enabled {
			if avail == system {
				found = true
				break
			}
		}
		if !found {
			err := zerr.With(ErrSystemUnavailable, "install_id", installID)
			err = zerr.With(err, "system", system)
			return nil, zerr.With(err, "enabled_systems", enabled)
		}
	}
	systems := explicit
	if len(systems) == 0 {
		systems = enabled
	}
	sorted := make([]string, len(systems))
	copy(sorted, systems)
	sort.Strings(sorted)
	return sorted, nil
}

// collectPackageGroups partitions catalog descriptors into one PackageGroup
// per group name, expanded per system. Descriptors with an unexpired lock in
// the seed carry its derivation as a resolution constraint; everything else
// resolves unconstrained.
func collectPackageGroups(manifest *domain.Manifest, seed *domain.Lockfile) ([]domain.PackageGroup, error) {
	seedLocked := makeSeedMapping(seed)

	var licenses []string
	if len(manifest.Options.Allow.Licenses) > 0 {
		licenses = manifest.Options.Allow.Licenses
	}

	groups := make(map[string]*domain.PackageGroup)
	for _, installID := range sortedInstallIDs(manifest) {
		descriptor := manifest.Install[installID]
		cat := descriptor.Catalog
		if cat == nil {
			continue
		}

		var allowPreReleases *bool
		if manifest.Options.Semver.AllowPreReleases {
			t := true
			allowPreReleases = &t
		}
		base := domain.ResolveDescriptor{
			InstallID:        installID,
			AttrPath:         cat.PkgPath,
			Version:          cat.Version,
			AllowPreReleases: allowPreReleases,
			AllowBroken:      manifest.Options.Allow.Broken,
			AllowUnfree:      manifest.Options.Allow.Unfree,
			AllowedLicenses:  licenses,
		}

		groupName := cat.Group()
		group, ok := groups[groupName]
		if !ok {
			group = &domain.PackageGroup{Name: groupName}
			groups[groupName] = group
		}

		systems, err := descriptorSystems(installID, cat.Systems, manifest)
		if err != nil {
			return nil, err
		}
		for _, system := range systems {
			resolved := base
			resolved.Systems = []string{system}
			// A missing seed entry (new package) or an invalidated one
			// (manifest edit changed what would be selected) leaves the
			// derivation unconstrained.
			if entry, ok := seedLocked[seedKey{installID, system}]; ok {
				if !descriptor.InvalidatesExistingResolution(entry.descriptor) {
					if locked := entry.locked.Catalog; locked != nil {
						derivation := locked.Derivation
						resolved.Derivation = &derivation
					}
				}
			}
			group.Descriptors = append(group.Descriptors, resolved)
		}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.PackageGroup, 0, len(groups))
	for _, name := range names {
		out = append(out, *groups[name])
	}
	return out, nil
}

// splitFullyLockedGroups extracts groups where every descriptor carries a
// derivation constraint; their packages are copied from the seed instead of
// being re-resolved.
func splitFullyLockedGroups(groups []domain.PackageGroup, seed *domain.Lockfile) (alreadyLocked []domain.LockedPackage, toLock []domain.PackageGroup) {
	seedLocked := makeSeedMapping(seed)

	for _, group := range groups {
		fullyLocked := true
		for _, descriptor := range group.Descriptors {
			if descriptor.Derivation == nil {
				fullyLocked = false
				break
			}
		}
		if !fullyLocked {
			toLock = append(toLock, group)
			continue
		}
		for _, descriptor := range group.Descriptors {
			for _, system := range descriptor.Systems {
				entry, ok := seedLocked[seedKey{descriptor.InstallID, system}]
				if !ok {
					continue
				}
				// Copy so the later priority refresh can't reach back into
				// the caller's seed lockfile.
				pkg := entry.locked
				if pkg.Catalog != nil {
					cat := *pkg.Catalog
					pkg.Catalog = &cat
				}
				alreadyLocked = append(alreadyLocked, pkg)
			}
		}
	}
	return alreadyLocked, toLock
}

// checkPackagesAreAllowed enforces the manifest's allow list on catalog
// packages. An empty license list allows every license, and a package
// without license data is permitted since there is nothing to check.
// Broken defaults to disallowed, unfree to allowed.
func checkPackagesAreAllowed(packages []domain.LockedPackage, allow domain.Allows) error {
	for _, pkg := range packages {
		cat := pkg.Catalog
		if cat == nil {
			continue
		}
		if len(allow.Licenses) > 0 && cat.License != nil {
			permitted := false
			for _, allowed := range allow.Licenses {
				if allowed == *cat.License {
					permitted = true
					break
				}
			}
			if !permitted {
				err := zerr.With(ErrLicenseNotAllowed, "install_id", cat.InstallID)
				return zerr.With(err, "license", *cat.License)
			}
		}
		if !boolOr(allow.Broken, false) && boolOr(cat.Broken, false) {
			return zerr.With(ErrBrokenNotAllowed, "install_id", cat.InstallID)
		}
		if !boolOr(allow.Unfree, true) && boolOr(cat.Unfree, false) {
			return zerr.With(ErrUnfreeNotAllowed, "install_id", cat.InstallID)
		}
	}
	return nil
}

// updatePriority refreshes carried-over packages to the manifest's current
// priority. Priority is not a resolution constraint, so a priority edit must
// update the lock without forcing re-resolution.
func updatePriority(alreadyLocked []domain.LockedPackage, manifest *domain.Manifest) {
	for i := range alreadyLocked {
		cat := alreadyLocked[i].Catalog
		if cat == nil {
			continue
		}
		priority := domain.DefaultPriority
		if descriptor, ok := manifest.Install[cat.InstallID]; ok && descriptor.Catalog != nil {
			priority = descriptor.Priority()
		}
		cat.Priority = priority
	}
}

// lockedPackagesFromResolution flattens resolved groups into locked
// packages. A group with no page, or whose page is incomplete, failed; all
// failures across all groups are reported in one error.
func lockedPackagesFromResolution(manifest *domain.Manifest, groups []domain.ResolvedPackageGroup) ([]domain.LockedPackage, error) {
	var failures []ResolutionFailure
	for _, group := range groups {
		if group.Page != nil && group.Page.Complete {
			continue
		}
		for _, msg := range group.Msgs {
			if msg.Level != domain.MessageLevelError {
				continue
			}
			var invalidSystems []string
			if msg.Kind == domain.MessageKindNotFoundForAllSystems {
				invalidSystems = determineInvalidSystems(msg, manifest)
			}
			failures = append(failures, failureFromMessage(msg, group.Name, invalidSystems))
		}
	}
	if len(failures) > 0 {
		return nil, &ResolutionFailedError{Failures: failures}
	}

	var locked []domain.LockedPackage
	for _, group := range groups {
		for _, info := range group.Packages() {
			descriptor, ok := manifest.Install[info.InstallID]
			if !ok || descriptor.Catalog == nil {
				continue
			}
			pkg := domain.NewLockedPackageCatalog(info, *descriptor.Catalog)
			locked = append(locked, domain.LockedPackage{Catalog: &pkg})
		}
	}
	return locked, nil
}

// determineInvalidSystems subtracts the catalog's valid systems from the
// systems the descriptor actually requested.
func determineInvalidSystems(msg domain.ResolutionMessage, manifest *domain.Manifest) []string {
	requested := manifest.EnabledSystems()
	if descriptor, ok := manifest.Install[msg.InstallID]; ok && descriptor.Catalog != nil && len(descriptor.Catalog.Systems) > 0 {
		requested = descriptor.Catalog.Systems
	}
	valid := make(map[string]bool, len(msg.ValidSystems))
	for _, system := range msg.ValidSystems {
		valid[system] = true
	}
	var invalid []string
	for _, system := range requested {
		if !valid[system] {
			invalid = append(invalid, system)
		}
	}
	sort.Strings(invalid)
	return invalid
}

// collectFlakeInstallables expands flake descriptors per system. The seed
// plays no role here; already-locked ones are split off afterwards from the
// descriptors alone.
func collectFlakeInstallables(manifest *domain.Manifest) []flakeToLock {
	var out []flakeToLock
	for _, installID := range sortedInstallIDs(manifest) {
		descriptor := manifest.Install[installID]
		if descriptor.Flake == nil {
			continue
		}
		systems := descriptor.Flake.Systems
		if len(systems) == 0 {
			systems = manifest.EnabledSystems()
		}
		for _, system := range systems {
			out = append(out, flakeToLock{
				installID:  installID,
				descriptor: *descriptor.Flake,
				system:     system,
			})
		}
	}
	return out
}

// splitLockedFlakeInstallables passes through installables the seed already
// locks, per install ID all-or-nothing: if any system of an install ID needs
// locking, the whole install ID is re-locked.
func splitLockedFlakeInstallables(installables []flakeToLock, seed *domain.Lockfile) (alreadyLocked []domain.LockedPackage, toLock []flakeToLock) {
	seedLocked := makeSeedMapping(seed)

	byID := make(map[string][]flakeToLock)
	var idOrder []string
	for _, installable := range installables {
		if _, seen := byID[installable.installID]; !seen {
			idOrder = append(idOrder, installable.installID)
		}
		byID[installable.installID] = append(byID[installable.installID], installable)
	}

	for _, installID := range idOrder {
		group := byID[installID]
		locked := make([]domain.LockedPackage, 0, len(group))
		reusable := true
		for _, installable := range group {
			entry, ok := seedLocked[seedKey{installable.installID, installable.system}]
			if !ok || entry.locked.Flake == nil {
				reusable = false
				break
			}
			current := domain.PackageDescriptor{Flake: &installable.descriptor}
			if current.InvalidatesExistingResolution(entry.descriptor) {
				reusable = false
				break
			}
			locked = append(locked, entry.locked)
		}
		if reusable {
			alreadyLocked = append(alreadyLocked, locked...)
		} else {
			toLock = append(toLock, group...)
		}
	}
	return alreadyLocked, toLock
}

// lockFlakeInstallables locks installables one by one. An evaluation
// failure becomes a resolution failure; any other locker error is an
// infrastructure problem and aborts immediately.
func lockFlakeInstallables(ctx context.Context, locker ports.InstallableLocker, installables []flakeToLock) ([]domain.LockedPackage, error) {
	locked := make([]domain.LockedPackage, 0, len(installables))
	for _, installable := range installables {
		result, err := locker.LockFlakeInstallable(ctx, installable.system, installable.descriptor)
		if err != nil {
			if errors.Is(err, domain.ErrFlakeEval) {
				return nil, &ResolutionFailedError{Failures: []ResolutionFailure{{
					Kind: FailureFallbackMessage,
					Msg:  err.Error(),
				}}}
			}
			return nil, err
		}
		locked = append(locked, domain.LockedPackage{Flake: &domain.LockedPackageFlake{
			InstallID:         installable.installID,
			LockedInstallable: result,
		}})
	}
	return locked, nil
}

// collectStorePaths maps store path descriptors directly to locked
// packages, expanded per system.
func collectStorePaths(manifest *domain.Manifest) []domain.LockedPackage {
	var out []domain.LockedPackage
	for _, installID := range sortedInstallIDs(manifest) {
		descriptor := manifest.Install[installID]
		sp := descriptor.StorePath
		if sp == nil {
			continue
		}
		systems := sp.Systems
		if len(systems) == 0 {
			systems = manifest.EnabledSystems()
		}
		priority := descriptor.Priority()
		for _, system := range systems {
			out = append(out, domain.LockedPackage{StorePath: &domain.LockedPackageStorePath{
				InstallID: installID,
				StorePath: sp.StorePath,
				System:    system,
				Priority:  priority,
			}})
		}
	}
	return out
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

func concat(lists ...[]domain.LockedPackage) []domain.LockedPackage {
	var out []domain.LockedPackage
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}
