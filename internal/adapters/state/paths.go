// Package state persists activation and registry state under the
// read-lock-modify-write-unlock protocol.
package state

import (
	"path/filepath"

	"go.trai.ch/floe/internal/core/domain"
)

const (
	activationsFilename = "activations.json"
	registryFilename    = "env-registry.json"
)

// ActivationsJSONPath is {runtimeDir}/{hash(envPath)}/activations.json.
func ActivationsJSONPath(runtimeDir, envPath string) string {
	return filepath.Join(runtimeDir, domain.PathHash(envPath), activationsFilename)
}

// ActivationStateDirPath is {runtimeDir}/{hash(envPath)}/{activationID},
// scratch space owned by one activation and removed on cleanup.
func ActivationStateDirPath(runtimeDir, envPath, activationID string) string {
	return filepath.Join(runtimeDir, domain.PathHash(envPath), activationID)
}

// EnvRegistryPath is the system-wide registry file under the data dir.
func EnvRegistryPath(dataDir string) string {
	return filepath.Join(dataDir, registryFilename)
}
