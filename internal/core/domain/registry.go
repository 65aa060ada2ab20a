package domain

import (
	"os"

	"go.trai.ch/zerr"
)

// EnvRegistryVersion is the schema version of the registry file.
const EnvRegistryVersion = 1

// EnvPointer identifies an environment registered at a path. Owner is set
// for environments managed on a remote hub.
type EnvPointer struct {
	Name  string  `json:"name"`
	Owner *string `json:"owner,omitempty"`
}

// Equal reports pointer equality by value.
func (p EnvPointer) Equal(other EnvPointer) bool {
	return p.Name == other.Name && equalStrPtr(p.Owner, other.Owner)
}

// RegisteredEnv is one environment that has existed at a registered path.
type RegisteredEnv struct {
	// CreatedAt is seconds since the Unix epoch. Appends are clamped so the
	// list stays sorted even if the wall clock steps backwards.
	CreatedAt int64      `json:"created_at"`
	Pointer   EnvPointer `json:"pointer"`
}

// RegistryEntry tracks the environments that have existed at one path since
// the last garbage collection.
type RegistryEntry struct {
	PathHash string          `json:"hash"`
	Path     string          `json:"path"`
	Envs     []RegisteredEnv `json:"envs"`
}

// Exists reports whether the registered path is still on disk.
func (e *RegistryEntry) Exists() bool {
	_, err := os.Stat(e.Path)
	return err == nil
}

// LatestEnv returns the most recently registered environment, or nil.
func (e *RegistryEntry) LatestEnv() *RegisteredEnv {
	if len(e.Envs) == 0 {
		return nil
	}
	return &e.Envs[len(e.Envs)-1]
}

// IsSameAsLatestEnv reports whether ptr matches the latest registration.
func (e *RegistryEntry) IsSameAsLatestEnv(ptr EnvPointer) bool {
	latest := e.LatestEnv()
	return latest != nil && latest.Pointer.Equal(ptr)
}

// RegisterEnv appends a registration unless ptr already is the latest one,
// in which case it returns nil without modifying anything. now is seconds
// since the Unix epoch; it is clamped against the latest created_at.
func (e *RegistryEntry) RegisterEnv(ptr EnvPointer, now int64) *RegisteredEnv {
	if e.IsSameAsLatestEnv(ptr) {
		return nil
	}
	createdAt := now
	if latest := e.LatestEnv(); latest != nil && latest.CreatedAt > createdAt {
		createdAt = latest.CreatedAt
	}
	e.Envs = append(e.Envs, RegisteredEnv{CreatedAt: createdAt, Pointer: ptr})
	return &e.Envs[len(e.Envs)-1]
}

// DeregisterEnv removes and returns the latest registration iff it matches
// ptr.
func (e *RegistryEntry) DeregisterEnv(ptr EnvPointer) *RegisteredEnv {
	if !e.IsSameAsLatestEnv(ptr) {
		return nil
	}
	removed := e.Envs[len(e.Envs)-1]
	e.Envs = e.Envs[:len(e.Envs)-1]
	return &removed
}

// EnvRegistry is the system-wide record of where environments live.
type EnvRegistry struct {
	Version int             `json:"version"`
	Entries []RegistryEntry `json:"entries"`
}

// NewEnvRegistry returns an empty registry at the current version.
func NewEnvRegistry() *EnvRegistry {
	return &EnvRegistry{Version: EnvRegistryVersion}
}

// EntryForHash returns the entry with the given path hash, or nil.
func (r *EnvRegistry) EntryForHash(hash string) *RegistryEntry {
	for i := range r.Entries {
		if r.Entries[i].PathHash == hash {
			return &r.Entries[i]
		}
	}
	return nil
}

// PathForHash returns the path registered under hash.
func (r *EnvRegistry) PathForHash(hash string) (string, error) {
	entry := r.EntryForHash(hash)
	if entry == nil {
		return "", zerr.With(ErrEnvNotRegistered, "hash", hash)
	}
	return entry.Path, nil
}

// RegisterEnv records ptr at path, creating the entry if needed. Returns
// nil when ptr already is the latest registration there.
func (r *EnvRegistry) RegisterEnv(path, hash string, ptr EnvPointer, now int64) *RegisteredEnv {
	entry := r.EntryForHash(hash)
	if entry == nil {
		r.Entries = append(r.Entries, RegistryEntry{PathHash: hash, Path: path})
		entry = &r.Entries[len(r.Entries)-1]
	}
	return entry.RegisterEnv(ptr, now)
}

// DeregisterEnv removes the latest registration under hash iff it matches
// ptr, dropping the entry entirely once no registrations remain.
func (r *EnvRegistry) DeregisterEnv(hash string, ptr EnvPointer) (*RegisteredEnv, error) {
	entry := r.EntryForHash(hash)
	if entry == nil {
		return nil, zerr.With(ErrEnvNotRegistered, "hash", hash)
	}
	removed := entry.DeregisterEnv(ptr)
	if removed == nil {
		return nil, zerr.With(ErrEnvNotRegistered, "hash", hash)
	}
	if len(entry.Envs) == 0 {
		kept := r.Entries[:0]
		for _, e := range r.Entries {
			if e.PathHash != hash {
				kept = append(kept, e)
			}
		}
		r.Entries = kept
	}
	return removed, nil
}

// PruneNonexistent drops entries whose path no longer exists on disk.
func (r *EnvRegistry) PruneNonexistent() {
	kept := r.Entries[:0]
	for _, entry := range r.Entries {
		if entry.Exists() {
			kept = append(kept, entry)
		}
	}
	r.Entries = kept
}
