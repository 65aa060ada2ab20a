package app_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/internal/adapters/catalog"
	"go.trai.ch/floe/internal/adapters/config"
	"go.trai.ch/floe/internal/adapters/state"
	"go.trai.ch/floe/internal/app"
	"go.trai.ch/floe/internal/core/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(error, ...any)  {}

type fakeLocker struct{}

func (fakeLocker) LockFlakeInstallable(_ context.Context, system string, descriptor domain.FlakeDescriptor) (domain.LockedInstallable, error) {
	return domain.LockedInstallable{
		LockedURL:     descriptor.Flake,
		Derivation:    "/nix/store/drv-flaked",
		System:        system,
		PackageSystem: system,
		Name:          "flaked",
		Priority:      domain.DefaultPriority,
	}, nil
}

func newApp(t *testing.T, client *catalog.MockClient) (*app.App, config.Config) {
	t.Helper()
	cfg := config.Config{
		CatalogURL: "https://catalog.invalid",
		RuntimeDir: t.TempDir(),
		DataDir:    t.TempDir(),
	}
	registry := state.NewRegistryStoreAt(func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	})
	return app.New(cfg, client, fakeLocker{}, registry, nopLogger{}), cfg
}

func writeManifest(t *testing.T, envDir string, manifest domain.Manifest) {
	t.Helper()
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "manifest.json"), data, 0o600))
}

func helloManifest() domain.Manifest {
	return domain.Manifest{
		Version: 1,
		Install: map[string]domain.PackageDescriptor{
			"hello": {Catalog: &domain.CatalogDescriptor{PkgPath: "hello"}},
		},
		Options: domain.Options{Systems: []string{"aarch64-linux"}},
	}
}

func helloResolution() []domain.ResolvedPackageGroup {
	return []domain.ResolvedPackageGroup{{
		Name: "toplevel",
		Page: &domain.CatalogPage{
			Complete: true,
			Packages: []domain.PackageResolutionInfo{{
				AttrPath:   "hello",
				PkgPath:    "hello",
				InstallID:  "hello",
				Name:       "hello-2.12",
				Pname:      "hello",
				Version:    "2.12",
				System:     "aarch64-linux",
				RevDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Derivation: "/nix/store/drv-hello",
			}},
			Page: 1,
		},
	}}
}

func TestApp_Lock(t *testing.T) {
	t.Parallel()

	client := catalog.NewMockClient()
	client.PushResolveResponse(helloResolution())
	application, _ := newApp(t, client)

	envDir := t.TempDir()
	writeManifest(t, envDir, helloManifest())

	result, err := application.Lock(context.Background(), envDir)
	require.NoError(t, err)
	assert.True(t, result.Changed)

	data, err := os.ReadFile(filepath.Join(envDir, "manifest.lock"))
	require.NoError(t, err)
	lockfile, err := domain.ParseLockfile(data)
	require.NoError(t, err)
	require.Len(t, lockfile.Packages, 1)
	assert.Equal(t, "/nix/store/drv-hello", lockfile.Packages[0].Derivation())

	// Re-locking answers everything from the lockfile on disk.
	result, err = application.Lock(context.Background(), envDir)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 1, client.ResolveCalls())
}

func TestApp_LockMissingManifest(t *testing.T) {
	t.Parallel()

	client := catalog.NewMockClient()
	application, _ := newApp(t, client)

	_, err := application.Lock(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestApp_UpgradeForcesResolution(t *testing.T) {
	t.Parallel()

	client := catalog.NewMockClient()
	client.PushResolveResponse(helloResolution())
	application, _ := newApp(t, client)

	envDir := t.TempDir()
	writeManifest(t, envDir, helloManifest())

	_, err := application.Lock(context.Background(), envDir)
	require.NoError(t, err)

	// The upgrade re-resolves even though the lockfile answers everything,
	// and reports no change when the catalog returns the same derivation.
	client.PushResolveResponse(helloResolution())
	result, err := application.Upgrade(context.Background(), envDir, []string{"hello"}, nil)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 2, client.ResolveCalls())
}

func TestApp_GC(t *testing.T) {
	t.Parallel()

	client := catalog.NewMockClient()
	application, _ := newApp(t, client)

	registry, err := application.GC()
	require.NoError(t, err)
	assert.Empty(t, registry.Entries)
}
