// Package include implements the IncludeFetcher port for local directories.
package include

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	manifestFilename = "manifest.json"
	lockfileFilename = "manifest.lock"
)

// Fetcher materializes includes that point at local environment
// directories.
type Fetcher struct {
	// baseDir anchors relative include dirs, usually the composing
	// environment's directory.
	baseDir string
}

var _ ports.IncludeFetcher = (*Fetcher)(nil)

func NewFetcher(baseDir string) *Fetcher {
	return &Fetcher{baseDir: baseDir}
}

// Fetch reads the included environment's manifest and lockfile. The include
// must be locked and in sync: composing an environment whose own lockfile is
// stale would bake outdated declarations into the composer's lock.
func (f *Fetcher) Fetch(_ context.Context, descriptor domain.IncludeDescriptor) (domain.LockedInclude, error) {
	dir := descriptor.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(f.baseDir, dir)
	}

	manifestData, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		return domain.LockedInclude{}, zerr.With(zerr.Wrap(err, "failed to read included manifest"), "dir", descriptor.Dir)
	}
	var manifest domain.Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return domain.LockedInclude{}, zerr.Wrap(err, domain.ErrParseManifest.Error())
	}

	lockData, err := os.ReadFile(filepath.Join(dir, lockfileFilename))
	if os.IsNotExist(err) {
		return domain.LockedInclude{}, zerr.With(domain.ErrIncludeOutOfSync, "dir", descriptor.Dir)
	}
	if err != nil {
		return domain.LockedInclude{}, zerr.Wrap(err, "failed to read included lockfile")
	}
	lockfile, err := domain.ParseLockfile(lockData)
	if err != nil {
		return domain.LockedInclude{}, err
	}

	inSync, err := manifestsEqual(&manifest, lockfile.UserManifest())
	if err != nil {
		return domain.LockedInclude{}, err
	}
	if !inSync {
		return domain.LockedInclude{}, zerr.With(domain.ErrIncludeOutOfSync, "dir", descriptor.Dir)
	}

	return domain.LockedInclude{
		Manifest:   lockfile.Manifest,
		Name:       descriptor.DisplayName(),
		Descriptor: descriptor,
	}, nil
}

// manifestsEqual compares by canonical JSON so formatting differences on
// disk don't count as drift.
func manifestsEqual(a, b *domain.Manifest) (bool, error) {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false, zerr.Wrap(err, "failed to serialize manifest")
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false, zerr.Wrap(err, "failed to serialize manifest")
	}
	return bytes.Equal(aJSON, bJSON), nil
}
