// Package spawn starts the watchdog as a detached process.
package spawn

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"go.trai.ch/floe/internal/adapters/state"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

const watchdogBinary = "floe-watchdog"

// Spawner launches floe-watchdog in its own session so it survives the
// activating command and its terminal.
type Spawner struct {
	executablePath string
	logger         ports.Logger
}

var _ ports.WatchdogSpawner = (*Spawner)(nil)

// NewSpawner locates the watchdog binary, preferring a sibling of the
// current executable over PATH.
func NewSpawner(logger ports.Logger) (*Spawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to determine executable path")
	}
	sibling := filepath.Join(filepath.Dir(exe), watchdogBinary)
	if _, err := os.Stat(sibling); err == nil {
		return &Spawner{executablePath: sibling, logger: logger}, nil
	}
	path, err := exec.LookPath(watchdogBinary)
	if err != nil {
		return nil, zerr.Wrap(err, "watchdog binary not found")
	}
	return &Spawner{executablePath: path, logger: logger}, nil
}

// Spawn starts the watchdog for one activation. Its output goes to a log
// file in the activation's runtime directory since there is no terminal to
// inherit.
func (s *Spawner) Spawn(activationID, envPath, runtimeDir string) error {
	logPath := filepath.Join(
		filepath.Dir(state.ActivationsJSONPath(runtimeDir, envPath)),
		"watchdog."+activationID+".log",
	)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return zerr.Wrap(err, "failed to create runtime directory")
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerr.Wrap(err, "failed to open watchdog log")
	}

	//nolint:gosec // G204: executablePath is controlled, args come from our own state layer
	cmd := exec.Command(s.executablePath,
		"--id", activationID,
		"--env-path", envPath,
		"--runtime-dir", runtimeDir,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return zerr.Wrap(err, "failed to spawn watchdog")
	}
	s.logger.Debug("spawned watchdog", "pid", cmd.Process.Pid, "activation_id", activationID)

	go func() {
		_ = cmd.Wait()
		_ = logFile.Close()
	}()
	return nil
}
