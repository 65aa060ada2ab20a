package resolve

import (
	"context"
	"fmt"
	"slices"

	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

// mergeManifest fetches included environments and merges them with the
// manifest. Returns the merged manifest and a Compose capturing what was
// fetched, or a nil Compose when the manifest declares no includes.
//
// Includes already present in the seed lockfile (matched by exact descriptor
// equality) are reused instead of re-fetched, unless named in toUpgrade.
// toUpgrade nil means upgrade nothing, empty means upgrade everything, and
// names mean upgrade exactly those, erroring on names that match no include.
func mergeManifest(
	ctx context.Context,
	manifest *domain.Manifest,
	seed *domain.Lockfile,
	fetcher ports.IncludeFetcher,
	toUpgrade []string,
) (*domain.Manifest, *domain.Compose, error) {
	if len(manifest.Include.Environments) == 0 {
		if toUpgrade != nil {
			return nil, nil, zerr.New("environment has no included environments")
		}
		return manifest, nil, nil
	}

	upgradeAll := toUpgrade != nil && len(toUpgrade) == 0
	pending := slices.Clone(toUpgrade)

	// Order matters twice over: names are matched against the declaration
	// order, and precedence during the merge increases with position.
	var lockedIncludes []domain.LockedInclude
	for _, descriptor := range manifest.Include.Environments {
		existing := findExistingInclude(seed, descriptor, upgradeAll)

		var locked domain.LockedInclude
		switch {
		case existing != nil && !removeMatchingInclude(&pending, existing.Name):
			locked = *existing
		default:
			fetched, err := fetcher.Fetch(ctx, descriptor)
			if err != nil {
				return nil, nil, zerr.With(zerr.Wrap(err, "failed to fetch included environment"), "dir", descriptor.Dir)
			}
			if existing == nil {
				removeMatchingInclude(&pending, fetched.Name)
			}
			locked = fetched
		}
		lockedIncludes = append(lockedIncludes, locked)
	}

	if err := checkLockedNamesUnique(lockedIncludes); err != nil {
		return nil, nil, err
	}
	if len(pending) > 0 {
		return nil, nil, zerr.With(zerr.New("unknown included environment to check for changes"), "name", pending[0])
	}

	merged, warnings := mergeAll(manifest, lockedIncludes)
	compose := &domain.Compose{
		Composer: *manifest,
		Include:  lockedIncludes,
		Warnings: warnings,
	}
	return merged, compose, nil
}

// findExistingInclude returns the seed's locked include with an identical
// descriptor, or nil.
func findExistingInclude(seed *domain.Lockfile, descriptor domain.IncludeDescriptor, upgradeAll bool) *domain.LockedInclude {
	if upgradeAll || seed == nil || seed.Compose == nil {
		return nil
	}
	for i := range seed.Compose.Include {
		if seed.Compose.Include[i].Descriptor == descriptor {
			return &seed.Compose.Include[i]
		}
	}
	return nil
}

// removeMatchingInclude drops the first occurrence of name from pending and
// reports whether it was present. Tracks which upgrades have been consumed.
func removeMatchingInclude(pending *[]string, name string) bool {
	for i, candidate := range *pending {
		if candidate == name {
			*pending = slices.Delete(*pending, i, i+1)
			return true
		}
	}
	return false
}

func checkLockedNamesUnique(includes []domain.LockedInclude) error {
	seen := make(map[string]bool, len(includes))
	for _, include := range includes {
		if seen[include.Name] {
			return zerr.With(zerr.New("multiple included environments have the same name; set a unique 'name' field"), "name", include.Name)
		}
		seen[include.Name] = true
	}
	return nil
}

// mergeAll shallow-merges the included manifests in ascending precedence,
// with the composer applied last so its own keys always win. Shallow means
// map entries are merged per key but values are never merged recursively.
func mergeAll(composer *domain.Manifest, includes []domain.LockedInclude) (*domain.Manifest, []domain.MergeWarning) {
	merged := &domain.Manifest{Version: composer.Version}
	var warnings []domain.MergeWarning

	for _, include := range includes {
		warnings = append(warnings, mergeInto(merged, &include.Manifest, include.Name)...)
	}
	// Overrides by the composer itself are intentional, not warned about.
	mergeInto(merged, composer, "")

	merged.Include = composer.Include
	return merged, warnings
}

// mergeInto applies higher-precedence manifest src on top of dst, returning
// a warning per shadowed entry when src is a named include.
func mergeInto(dst, src *domain.Manifest, srcName string) []domain.MergeWarning {
	var warnings []domain.MergeWarning
	warn := func(field, key string) {
		if srcName == "" {
			return
		}
		warnings = append(warnings, domain.MergeWarning{
			Include: srcName,
			Msg:     fmt.Sprintf("%s '%s' overrides a value from a lower-precedence environment", field, key),
		})
	}

	for key, descriptor := range src.Install {
		if dst.Install == nil {
			dst.Install = make(map[string]domain.PackageDescriptor)
		}
		if _, shadowed := dst.Install[key]; shadowed {
			warn("install", key)
		}
		dst.Install[key] = descriptor
	}
	for key, value := range src.Vars {
		if dst.Vars == nil {
			dst.Vars = make(map[string]string)
		}
		if _, shadowed := dst.Vars[key]; shadowed {
			warn("var", key)
		}
		dst.Vars[key] = value
	}
	if src.Hook != nil {
		if dst.Hook != nil {
			warn("hook", "on-activate")
		}
		hook := *src.Hook
		dst.Hook = &hook
	}
	if src.Profile != nil {
		if dst.Profile != nil {
			warn("profile", "scripts")
		}
		profile := *src.Profile
		dst.Profile = &profile
	}

	if len(src.Options.Systems) > 0 {
		dst.Options.Systems = slices.Clone(src.Options.Systems)
	}
	if src.Options.Allow.Unfree != nil {
		dst.Options.Allow.Unfree = src.Options.Allow.Unfree
	}
	if src.Options.Allow.Broken != nil {
		dst.Options.Allow.Broken = src.Options.Allow.Broken
	}
	if src.Options.Allow.Licenses != nil {
		dst.Options.Allow.Licenses = slices.Clone(src.Options.Allow.Licenses)
	}
	if src.Options.Semver.AllowPreReleases {
		dst.Options.Semver.AllowPreReleases = true
	}

	return warnings
}
