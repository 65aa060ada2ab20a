package state_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/internal/adapters/state"
	"go.trai.ch/floe/internal/core/domain"
)

func TestActivationsStore_MissingFile(t *testing.T) {
	t.Parallel()

	store := state.NewActivationsStore()
	path := filepath.Join(t.TempDir(), "activations.json")

	parsed, lock, err := store.Read(path)
	require.NoError(t, err)
	assert.Nil(t, parsed)
	require.NotNil(t, lock)
	require.NoError(t, lock.Unlock())

	noLock, err := store.ReadNoLock(path)
	require.NoError(t, err)
	assert.Nil(t, noLock)
}

func TestActivationsStore_WriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	store := state.NewActivationsStore()
	path := filepath.Join(t.TempDir(), "activations.json")

	_, lock, err := store.Read(path)
	require.NoError(t, err)

	activations := domain.NewActivations()
	activation, err := activations.CreateActivation("/nix/store/env", 123)
	require.NoError(t, err)
	activation.SetReady()
	require.NoError(t, store.Write(path, activations, lock))

	parsed, lock, err := store.Read(path)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	defer lock.Unlock()

	checked, err := parsed.CheckVersion()
	require.NoError(t, err)
	got := checked.ActivationForStorePath("/nix/store/env")
	require.NotNil(t, got)
	assert.True(t, got.Ready)
	require.Len(t, got.AttachedPids, 1)
	assert.Equal(t, 123, got.AttachedPids[0].Pid)
}

func TestActivationsStore_CorruptFile(t *testing.T) {
	t.Parallel()

	store := state.NewActivationsStore()
	path := filepath.Join(t.TempDir(), "activations.json")
	require.NoError(t, writeFile(t, path, "not json"))

	_, _, err := store.Read(path)
	require.Error(t, err)
}

func TestActivationPaths(t *testing.T) {
	t.Parallel()

	hash := domain.PathHash("/home/user/project")
	assert.Equal(t,
		filepath.Join("/run/floe", hash, "activations.json"),
		state.ActivationsJSONPath("/run/floe", "/home/user/project"))
	assert.Equal(t,
		filepath.Join("/run/floe", hash, "abcd1234"),
		state.ActivationStateDirPath("/run/floe", "/home/user/project", "abcd1234"))
	assert.Equal(t,
		"/var/lib/floe/env-registry.json",
		state.EnvRegistryPath("/var/lib/floe"))
}
