package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/internal/adapters/state"
	"go.trai.ch/floe/internal/core/domain"
)

func writeFile(t *testing.T, path, contents string) error {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(contents), 0o600)
}

func fixedClock() func() time.Time {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestRegistryStore_EnsureRegistered(t *testing.T) {
	t.Parallel()

	store := state.NewRegistryStoreAt(fixedClock())
	path := filepath.Join(t.TempDir(), "env-registry.json")
	envPath := t.TempDir()
	ptr := domain.EnvPointer{Name: "myenv"}

	require.NoError(t, store.EnsureRegistered(path, envPath, ptr))

	registry, lock, err := store.Read(path)
	require.NoError(t, err)
	require.NotNil(t, registry)
	require.NoError(t, lock.Unlock())
	got, err := registry.PathForHash(domain.PathHash(envPath))
	require.NoError(t, err)
	assert.Equal(t, envPath, got)

	// Re-registering the same pointer leaves the file untouched.
	before, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, store.EnsureRegistered(path, envPath, ptr))
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestRegistryStore_Deregister(t *testing.T) {
	t.Parallel()

	store := state.NewRegistryStoreAt(fixedClock())
	path := filepath.Join(t.TempDir(), "env-registry.json")
	envPath := t.TempDir()
	ptr := domain.EnvPointer{Name: "myenv"}

	t.Run("without a registry file", func(t *testing.T) {
		t.Parallel()
		missing := filepath.Join(t.TempDir(), "env-registry.json")
		err := store.Deregister(missing, envPath, ptr)
		require.ErrorIs(t, err, domain.ErrNoEnvRegistry)
	})

	require.NoError(t, store.EnsureRegistered(path, envPath, ptr))
	require.NoError(t, store.Deregister(path, envPath, ptr))

	registry, lock, err := store.Read(path)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
	assert.Empty(t, registry.Entries)
}

func TestRegistryStore_GarbageCollect(t *testing.T) {
	t.Parallel()

	store := state.NewRegistryStoreAt(fixedClock())
	path := filepath.Join(t.TempDir(), "env-registry.json")
	alive := t.TempDir()
	gone := filepath.Join(t.TempDir(), "removed")
	require.NoError(t, os.Mkdir(gone, 0o755))

	require.NoError(t, store.EnsureRegistered(path, alive, domain.EnvPointer{Name: "alive"}))
	require.NoError(t, store.EnsureRegistered(path, gone, domain.EnvPointer{Name: "gone"}))
	require.NoError(t, os.Remove(gone))

	registry, err := store.GarbageCollect(path)
	require.NoError(t, err)
	require.Len(t, registry.Entries, 1)
	assert.Equal(t, alive, registry.Entries[0].Path)

	// The pruned registry was persisted.
	persisted, lock, err := store.Read(path)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
	assert.Equal(t, registry, persisted)
}

func TestRegistryStore_GarbageCollectMissingFile(t *testing.T) {
	t.Parallel()

	store := state.NewRegistryStoreAt(fixedClock())
	registry, err := store.GarbageCollect(filepath.Join(t.TempDir(), "env-registry.json"))
	require.NoError(t, err)
	assert.Empty(t, registry.Entries)
}
