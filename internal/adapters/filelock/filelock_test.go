package filelock_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/internal/adapters/filelock"
)

func TestSidecarPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/run/floe/activations.lock", filelock.SidecarPath("/run/floe/activations.json"))
	assert.Equal(t, "/run/floe/state.lock", filelock.SidecarPath("/run/floe/state"))
}

func TestAcquireUnlock(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "nested", "state.lock")

	lock, err := filelock.Acquire(lockPath)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())

	// Re-acquirable after release.
	lock, err = filelock.Acquire(lockPath)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
}

func TestAcquireBlocksConcurrentHolder(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "state.lock")

	held, err := filelock.Acquire(lockPath)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := filelock.Acquire(lockPath)
		assert.NoError(t, err)
		close(acquired)
		second.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while the lock was held")
	default:
	}

	require.NoError(t, held.Unlock())
	<-acquired
}
