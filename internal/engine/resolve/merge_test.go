package resolve_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/internal/adapters/catalog"
	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/engine/resolve"
)

func includedManifest(vars map[string]string) domain.Manifest {
	return domain.Manifest{
		Version: 1,
		Vars:    vars,
		Options: domain.Options{Systems: []string{"aarch64-linux"}},
	}
}

func composingManifest(dirs ...string) *domain.Manifest {
	manifest := singleSystemManifest(nil)
	for _, dir := range dirs {
		manifest.Include.Environments = append(manifest.Include.Environments,
			domain.IncludeDescriptor{Dir: dir})
	}
	return manifest
}

func TestLockManifest_IncludePrecedence(t *testing.T) {
	t.Parallel()

	client := catalog.NewMockClient()
	deps, _, fetcher := newDeps(client)
	fetcher.includes["/envs/base"] = domain.LockedInclude{
		Manifest:   includedManifest(map[string]string{"SHARED": "base", "BASE_ONLY": "1"}),
		Name:       "base",
		Descriptor: domain.IncludeDescriptor{Dir: "/envs/base"},
	}
	fetcher.includes["/envs/override"] = domain.LockedInclude{
		Manifest:   includedManifest(map[string]string{"SHARED": "override"}),
		Name:       "override",
		Descriptor: domain.IncludeDescriptor{Dir: "/envs/override"},
	}

	manifest := composingManifest("/envs/base", "/envs/override")
	manifest.Vars = map[string]string{"COMPOSER": "1"}

	lockfile, err := resolve.LockManifest(context.Background(), manifest, nil, deps)
	require.NoError(t, err)

	// Later includes win over earlier ones, the composer wins over both.
	assert.Equal(t, "override", lockfile.Manifest.Vars["SHARED"])
	assert.Equal(t, "1", lockfile.Manifest.Vars["BASE_ONLY"])
	assert.Equal(t, "1", lockfile.Manifest.Vars["COMPOSER"])

	require.NotNil(t, lockfile.Compose)
	assert.Equal(t, *manifest, lockfile.Compose.Composer)
	require.Len(t, lockfile.Compose.Warnings, 1)
	assert.Equal(t, "override", lockfile.Compose.Warnings[0].Include)
	assert.Contains(t, lockfile.Compose.Warnings[0].Msg, "SHARED")
}

func TestLockManifest_ComposerOverrideNotWarned(t *testing.T) {
	t.Parallel()

	client := catalog.NewMockClient()
	deps, _, fetcher := newDeps(client)
	fetcher.includes["/envs/base"] = domain.LockedInclude{
		Manifest:   includedManifest(map[string]string{"SHARED": "base"}),
		Name:       "base",
		Descriptor: domain.IncludeDescriptor{Dir: "/envs/base"},
	}

	manifest := composingManifest("/envs/base")
	manifest.Vars = map[string]string{"SHARED": "composer"}

	lockfile, err := resolve.LockManifest(context.Background(), manifest, nil, deps)
	require.NoError(t, err)
	assert.Equal(t, "composer", lockfile.Manifest.Vars["SHARED"])
	assert.Empty(t, lockfile.Compose.Warnings)
}

func TestLockManifest_HookAndProfileShadowWarnings(t *testing.T) {
	t.Parallel()

	client := catalog.NewMockClient()
	deps, _, fetcher := newDeps(client)

	withHook := includedManifest(nil)
	withHook.Hook = &domain.Hook{OnActivate: "echo base"}
	withHook.Profile = &domain.Profile{Common: "echo base"}
	fetcher.includes["/envs/base"] = domain.LockedInclude{
		Manifest:   withHook,
		Name:       "base",
		Descriptor: domain.IncludeDescriptor{Dir: "/envs/base"},
	}

	alsoWithHook := includedManifest(nil)
	alsoWithHook.Hook = &domain.Hook{OnActivate: "echo override"}
	alsoWithHook.Profile = &domain.Profile{Common: "echo override"}
	fetcher.includes["/envs/override"] = domain.LockedInclude{
		Manifest:   alsoWithHook,
		Name:       "override",
		Descriptor: domain.IncludeDescriptor{Dir: "/envs/override"},
	}

	manifest := composingManifest("/envs/base", "/envs/override")

	lockfile, err := resolve.LockManifest(context.Background(), manifest, nil, deps)
	require.NoError(t, err)
	require.NotNil(t, lockfile.Manifest.Hook)
	assert.Equal(t, "echo override", lockfile.Manifest.Hook.OnActivate)
	require.Len(t, lockfile.Compose.Warnings, 2)
}

func TestLockManifest_IncludeReuseAndUpgrade(t *testing.T) {
	t.Parallel()

	descriptor := domain.IncludeDescriptor{Dir: "/envs/base"}
	seedInclude := domain.LockedInclude{
		Manifest:   includedManifest(map[string]string{"FROM": "seed"}),
		Name:       "base",
		Descriptor: descriptor,
	}

	newSeed := func(manifest *domain.Manifest) *domain.Lockfile {
		return &domain.Lockfile{
			Version:  domain.LockfileVersion,
			Manifest: *manifest,
			Compose: &domain.Compose{
				Composer: *manifest,
				Include:  []domain.LockedInclude{seedInclude},
			},
		}
	}

	freshInclude := domain.LockedInclude{
		Manifest:   includedManifest(map[string]string{"FROM": "fetch"}),
		Name:       "base",
		Descriptor: descriptor,
	}

	t.Run("matching descriptor reuses the seed", func(t *testing.T) {
		t.Parallel()
		client := catalog.NewMockClient()
		deps, _, fetcher := newDeps(client)
		manifest := composingManifest("/envs/base")

		lockfile, err := resolve.LockManifest(context.Background(), manifest, newSeed(manifest), deps)
		require.NoError(t, err)
		assert.Equal(t, "seed", lockfile.Manifest.Vars["FROM"])
		assert.Empty(t, fetcher.fetched)
	})

	t.Run("empty upgrade list refetches everything", func(t *testing.T) {
		t.Parallel()
		client := catalog.NewMockClient()
		deps, _, fetcher := newDeps(client)
		fetcher.includes["/envs/base"] = freshInclude
		manifest := composingManifest("/envs/base")

		lockfile, err := resolve.LockManifestWithUpgrades(
			context.Background(), manifest, newSeed(manifest), deps, []string{})
		require.NoError(t, err)
		assert.Equal(t, "fetch", lockfile.Manifest.Vars["FROM"])
		assert.Equal(t, []string{"/envs/base"}, fetcher.fetched)
	})

	t.Run("named upgrade refetches exactly that include", func(t *testing.T) {
		t.Parallel()
		client := catalog.NewMockClient()
		deps, _, fetcher := newDeps(client)
		fetcher.includes["/envs/base"] = freshInclude
		manifest := composingManifest("/envs/base")

		lockfile, err := resolve.LockManifestWithUpgrades(
			context.Background(), manifest, newSeed(manifest), deps, []string{"base"})
		require.NoError(t, err)
		assert.Equal(t, "fetch", lockfile.Manifest.Vars["FROM"])
	})

	t.Run("unknown upgrade name errors", func(t *testing.T) {
		t.Parallel()
		client := catalog.NewMockClient()
		deps, _, _ := newDeps(client)
		manifest := composingManifest("/envs/base")

		_, err := resolve.LockManifestWithUpgrades(
			context.Background(), manifest, newSeed(manifest), deps, []string{"nope"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown included environment")
	})

	t.Run("upgrade without includes errors", func(t *testing.T) {
		t.Parallel()
		client := catalog.NewMockClient()
		deps, _, _ := newDeps(client)
		manifest := singleSystemManifest(nil)

		_, err := resolve.LockManifestWithUpgrades(context.Background(), manifest, nil, deps, []string{})
		require.Error(t, err)
	})
}

func TestLockManifest_DuplicateIncludeNames(t *testing.T) {
	t.Parallel()

	client := catalog.NewMockClient()
	deps, _, fetcher := newDeps(client)
	fetcher.includes["/envs/one"] = domain.LockedInclude{
		Manifest:   includedManifest(nil),
		Name:       "same",
		Descriptor: domain.IncludeDescriptor{Dir: "/envs/one"},
	}
	fetcher.includes["/envs/two"] = domain.LockedInclude{
		Manifest:   includedManifest(nil),
		Name:       "same",
		Descriptor: domain.IncludeDescriptor{Dir: "/envs/two"},
	}

	manifest := composingManifest("/envs/one", "/envs/two")

	_, err := resolve.LockManifest(context.Background(), manifest, nil, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same name")
}
