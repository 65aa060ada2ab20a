package ports

import "go.trai.ch/floe/internal/core/domain"

// ActivationsStore defines the interface for persisting activation state.
//
// Every mutation must follow read-lock-modify-write-unlock: Read returns the
// held lock so the subsequent Write reuses it without a window for a
// concurrent writer.
type ActivationsStore interface {
	// Read acquires the sidecar lock, then returns the parsed file, or nil
	// if it doesn't exist yet, along with the held lock.
	Read(path string) (*domain.UncheckedActivations, FileLock, error)

	// ReadNoLock reads without acquiring the lock. The result may be stale
	// by the time the caller looks at it; only safe for optimistic checks
	// that are re-verified under the lock.
	ReadNoLock(path string) (*domain.UncheckedActivations, error)

	// Write atomically replaces the file and releases the lock.
	Write(path string, activations *domain.Activations, lock FileLock) error
}

// EnvRegistryStore defines the interface for persisting the environment
// registry, under the same locking protocol as ActivationsStore.
type EnvRegistryStore interface {
	Read(path string) (*domain.EnvRegistry, FileLock, error)
	Write(path string, registry *domain.EnvRegistry, lock FileLock) error
}
