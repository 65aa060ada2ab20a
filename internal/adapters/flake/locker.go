// Package flake implements the InstallableLocker port by shelling out to
// the nix evaluator.
package flake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"

	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

const lockCommand = "lock-flake-installable"

// Locker pins flake installables one at a time. Each call evaluates the
// flake, which can take seconds; callers batch at a higher level.
type Locker struct {
	command string
	logger  ports.Logger
}

var _ ports.InstallableLocker = (*Locker)(nil)

func NewLocker(logger ports.Logger) *Locker {
	return &Locker{command: lockCommand, logger: logger}
}

// newLockerWithCommand creates a Locker with a custom command (used for testing).
func newLockerWithCommand(command string, logger ports.Logger) *Locker {
	return &Locker{command: command, logger: logger}
}

// LockFlakeInstallable evaluates one flake reference for one system. An
// evaluation failure is reported as domain.ErrFlakeEval so callers can fold
// it into resolution failures; anything else is an infrastructure error.
func (l *Locker) LockFlakeInstallable(ctx context.Context, system string, descriptor domain.FlakeDescriptor) (domain.LockedInstallable, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, l.command, "--system", system, descriptor.Flake)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger.Debug("locking flake installable", "flake", descriptor.Flake, "system", system)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			evalErr := zerr.With(domain.ErrFlakeEval, "flake", descriptor.Flake)
			evalErr = zerr.With(evalErr, "system", system)
			return domain.LockedInstallable{}, zerr.With(evalErr, "stderr", strings.TrimSpace(stderr.String()))
		}
		return domain.LockedInstallable{}, zerr.Wrap(err, "failed to run "+l.command)
	}

	var locked domain.LockedInstallable
	if err := json.Unmarshal(stdout.Bytes(), &locked); err != nil {
		return domain.LockedInstallable{}, zerr.Wrap(err, "failed to parse locked installable")
	}
	return locked, nil
}
