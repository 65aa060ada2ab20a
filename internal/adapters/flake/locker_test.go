package flake

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/floe/internal/core/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(error, ...any)  {}

func fakeCommand(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lock-flake-installable")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestLockFlakeInstallable(t *testing.T) {
	t.Parallel()

	descriptor := domain.FlakeDescriptor{Flake: "github:NixOS/nixpkgs#hello"}

	t.Run("parses the evaluator's output", func(t *testing.T) {
		t.Parallel()
		command := fakeCommand(t, `cat <<'EOF'
{
  "locked-url": "github:NixOS/nixpkgs/abcdef",
  "locked-flake-attr-path": "packages.aarch64-linux.hello",
  "derivation": "/nix/store/drv-hello",
  "outputs": {"out": "/nix/store/out-hello"},
  "output-names": ["out"],
  "package-system": "aarch64-linux",
  "system": "aarch64-linux",
  "name": "hello-2.12",
  "priority": 5
}
EOF`)
		locker := newLockerWithCommand(command, nopLogger{})

		locked, err := locker.LockFlakeInstallable(context.Background(), "aarch64-linux", descriptor)
		require.NoError(t, err)
		assert.Equal(t, "github:NixOS/nixpkgs/abcdef", locked.LockedURL)
		assert.Equal(t, "/nix/store/drv-hello", locked.Derivation)
		assert.Equal(t, uint64(5), locked.Priority)
	})

	t.Run("nonzero exit is an evaluation failure", func(t *testing.T) {
		t.Parallel()
		command := fakeCommand(t, `echo "error: flake does not provide attribute" >&2
exit 1`)
		locker := newLockerWithCommand(command, nopLogger{})

		_, err := locker.LockFlakeInstallable(context.Background(), "aarch64-linux", descriptor)
		require.ErrorIs(t, err, domain.ErrFlakeEval)
	})

	t.Run("missing command is an infrastructure error", func(t *testing.T) {
		t.Parallel()
		locker := newLockerWithCommand(filepath.Join(t.TempDir(), "does-not-exist"), nopLogger{})

		_, err := locker.LockFlakeInstallable(context.Background(), "aarch64-linux", descriptor)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrFlakeEval)
	})

	t.Run("garbage output fails to parse", func(t *testing.T) {
		t.Parallel()
		command := fakeCommand(t, `echo "not json"`)
		locker := newLockerWithCommand(command, nopLogger{})

		_, err := locker.LockFlakeInstallable(context.Background(), "aarch64-linux", descriptor)
		require.Error(t, err)
	})
}
