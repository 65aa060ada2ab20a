package state

import (
	"encoding/json"
	"os"

	"go.trai.ch/floe/internal/adapters/filelock"
	"go.trai.ch/floe/internal/adapters/fs"
	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

// ActivationsStore reads and writes activations.json files.
type ActivationsStore struct{}

var _ ports.ActivationsStore = (*ActivationsStore)(nil)

func NewActivationsStore() *ActivationsStore {
	return &ActivationsStore{}
}

// Read acquires the sidecar lock and parses the file. A missing file yields
// a nil result with the lock still held, so the caller can create it under
// the same lock.
func (s *ActivationsStore) Read(path string) (*domain.UncheckedActivations, ports.FileLock, error) {
	lock, err := filelock.Acquire(filelock.SidecarPath(path))
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to acquire activations lock")
	}
	parsed, err := readActivationsFile(path)
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	return parsed, lock, nil
}

// ReadNoLock parses the file without taking the lock. The result may be
// stale; callers must re-read under the lock before acting on it.
func (s *ActivationsStore) ReadNoLock(path string) (*domain.UncheckedActivations, error) {
	return readActivationsFile(path)
}

// Write atomically replaces the file, then releases the lock.
func (s *ActivationsStore) Write(path string, activations *domain.Activations, lock ports.FileLock) error {
	if err := fs.WriteJSONAtomically(path, activations); err != nil {
		lock.Unlock()
		return zerr.Wrap(err, "failed to write activations")
	}
	return lock.Unlock()
}

func readActivationsFile(path string) (*domain.UncheckedActivations, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read activations")
	}
	var parsed domain.UncheckedActivations
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse activations"), "path", path)
	}
	return &parsed, nil
}
