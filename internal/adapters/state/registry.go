package state

import (
	"encoding/json"
	"os"
	"time"

	"go.trai.ch/floe/internal/adapters/filelock"
	"go.trai.ch/floe/internal/adapters/fs"
	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

// RegistryStore reads and writes the environment registry and carries the
// registration operations that must run under its lock.
type RegistryStore struct {
	now func() time.Time
}

var _ ports.EnvRegistryStore = (*RegistryStore)(nil)

func NewRegistryStore() *RegistryStore {
	return &RegistryStore{now: time.Now}
}

// NewRegistryStoreAt pins the store's clock, for tests.
func NewRegistryStoreAt(now func() time.Time) *RegistryStore {
	return &RegistryStore{now: now}
}

// Read acquires the sidecar lock and parses the registry. A missing file
// yields nil with the lock held.
func (s *RegistryStore) Read(path string) (*domain.EnvRegistry, ports.FileLock, error) {
	lock, err := filelock.Acquire(filelock.SidecarPath(path))
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to acquire registry lock")
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, lock, nil
	}
	if err != nil {
		lock.Unlock()
		return nil, nil, zerr.Wrap(err, "failed to read registry")
	}
	var parsed domain.EnvRegistry
	if err := json.Unmarshal(data, &parsed); err != nil {
		lock.Unlock()
		return nil, nil, zerr.With(zerr.Wrap(err, "failed to parse registry"), "path", path)
	}
	return &parsed, lock, nil
}

// Write atomically replaces the registry, then releases the lock.
func (s *RegistryStore) Write(path string, registry *domain.EnvRegistry, lock ports.FileLock) error {
	if err := fs.WriteJSONAtomically(path, registry); err != nil {
		lock.Unlock()
		return zerr.Wrap(err, "failed to write registry")
	}
	return lock.Unlock()
}

// EnsureRegistered records ptr as the latest environment at envPath. When
// ptr already is the latest registration the file is left untouched.
func (s *RegistryStore) EnsureRegistered(path, envPath string, ptr domain.EnvPointer) error {
	registry, lock, err := s.Read(path)
	if err != nil {
		return err
	}
	if registry == nil {
		registry = domain.NewEnvRegistry()
	}
	hash := domain.PathHash(envPath)
	if registered := registry.RegisterEnv(envPath, hash, ptr, s.now().Unix()); registered == nil {
		return lock.Unlock()
	}
	return s.Write(path, registry, lock)
}

// Deregister removes ptr iff it is the latest registration at envPath.
func (s *RegistryStore) Deregister(path, envPath string, ptr domain.EnvPointer) error {
	registry, lock, err := s.Read(path)
	if err != nil {
		return err
	}
	if registry == nil {
		lock.Unlock()
		return domain.ErrNoEnvRegistry
	}
	if _, err := registry.DeregisterEnv(domain.PathHash(envPath), ptr); err != nil {
		lock.Unlock()
		return err
	}
	return s.Write(path, registry, lock)
}

// GarbageCollect drops entries whose path no longer exists and returns the
// pruned registry.
func (s *RegistryStore) GarbageCollect(path string) (*domain.EnvRegistry, error) {
	registry, lock, err := s.Read(path)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		lock.Unlock()
		return domain.NewEnvRegistry(), nil
	}
	registry.PruneNonexistent()
	if err := s.Write(path, registry, lock); err != nil {
		return nil, err
	}
	return registry, nil
}
