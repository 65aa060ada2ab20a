// Package fs provides filesystem helpers shared by the state stores.
package fs

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
)

// WriteJSONAtomically serializes v and renames it over path. The rename is
// atomic on POSIX filesystems, so readers observe either the old or the new
// contents, never a partial write.
func WriteJSONAtomically(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to serialize state")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerr.Wrap(err, "failed to create state directory")
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return zerr.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return zerr.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return zerr.With(zerr.Wrap(err, "failed to replace state file"), "path", path)
	}
	return nil
}
