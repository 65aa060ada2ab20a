package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/floe/internal/adapters/state" //nolint:depguard // Wired in app layer
	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

// readinessPollInterval paces the wait for another process to finish
// starting an activation.
const readinessPollInterval = 100 * time.Millisecond

// Lifecycle implements the activation lifecycle operations. Every mutation
// follows the same protocol: acquire the sidecar lock, read, check the file
// version, mutate, write atomically, unlock.
type Lifecycle struct {
	store   ports.ActivationsStore
	prober  ports.ProcProber
	spawner ports.WatchdogSpawner
	clock   clockwork.Clock
	logger  ports.Logger
}

func NewLifecycle(
	store ports.ActivationsStore,
	prober ports.ProcProber,
	spawner ports.WatchdogSpawner,
	clock clockwork.Clock,
	logger ports.Logger,
) *Lifecycle {
	return &Lifecycle{
		store:   store,
		prober:  prober,
		spawner: spawner,
		clock:   clock,
		logger:  logger,
	}
}

// StartOrAttachResult tells the caller whether it must run the startup hooks
// (start) or can reuse an already-running activation (attach).
type StartOrAttachResult struct {
	ID       string
	Attached bool
}

// StartOrAttach creates the activation for storePath, or attaches to the
// existing one. An existing activation that is not ready yet is waited on
// while its starting process is alive; if that process dies before reaching
// readiness, the activation is taken over.
func (l *Lifecycle) StartOrAttach(ctx context.Context, runtimeDir, envPath, storePath string, pid int) (StartOrAttachResult, error) {
	path := state.ActivationsJSONPath(runtimeDir, envPath)
	for {
		if err := ctx.Err(); err != nil {
			return StartOrAttachResult{}, err
		}

		activations, lock, err := l.readChecked(path)
		if err != nil {
			return StartOrAttachResult{}, err
		}

		existing := activations.ActivationForStorePath(storePath)
		switch {
		case existing == nil:
			return l.start(path, activations, lock, envPath, runtimeDir, storePath, pid)

		case existing.Ready:
			existing.AttachPid(pid, nil)
			id := existing.ID
			if err := l.store.Write(path, activations, lock); err != nil {
				return StartOrAttachResult{}, err
			}
			return StartOrAttachResult{ID: id, Attached: true}, nil

		case !existing.StartupProcessRunning(l.prober.IsRunning):
			// The starter died before readiness; its half-built activation
			// is unusable, so take over from scratch.
			l.logger.Debug("taking over abandoned activation", "activation_id", existing.ID)
			activations.RemoveActivation(existing.ID)
			return l.start(path, activations, lock, envPath, runtimeDir, storePath, pid)

		default:
			if err := lock.Unlock(); err != nil {
				return StartOrAttachResult{}, err
			}
			l.clock.Sleep(readinessPollInterval)
		}
	}
}

func (l *Lifecycle) start(path string, activations *domain.Activations, lock ports.FileLock, envPath, runtimeDir, storePath string, pid int) (StartOrAttachResult, error) {
	activation, err := activations.CreateActivation(storePath, pid)
	if err != nil {
		lock.Unlock()
		return StartOrAttachResult{}, err
	}
	id := activation.ID
	if err := l.store.Write(path, activations, lock); err != nil {
		return StartOrAttachResult{}, err
	}
	// The watchdog needs the activation on disk before its first poll, so it
	// is spawned after the write. A failed spawn rolls the activation back;
	// nothing would ever clean it up otherwise.
	if err := l.spawner.Spawn(id, envPath, runtimeDir); err != nil {
		l.removeActivationBestEffort(path, id)
		return StartOrAttachResult{}, err
	}
	return StartOrAttachResult{ID: id, Attached: false}, nil
}

func (l *Lifecycle) removeActivationBestEffort(path, id string) {
	activations, lock, err := l.readChecked(path)
	if err != nil {
		l.logger.Error(err, "activation_id", id)
		return
	}
	activations.RemoveActivation(id)
	if err := l.store.Write(path, activations, lock); err != nil {
		l.logger.Error(err, "activation_id", id)
	}
}

// Attach registers pid on an existing activation. Exactly one of timeout and
// removePid must be set: with a timeout the attachment expires unless
// renewed, with removePid the previously attached process is swapped out in
// the same write.
func (l *Lifecycle) Attach(runtimeDir, envPath, id string, pid int, timeout *time.Duration, removePid *int) error {
	if (timeout == nil) == (removePid == nil) {
		return zerr.New("exactly one of timeout and remove-pid must be given")
	}
	path := state.ActivationsJSONPath(runtimeDir, envPath)
	activations, lock, err := l.readChecked(path)
	if err != nil {
		return err
	}
	activation := activations.ActivationForID(id)
	if activation == nil {
		lock.Unlock()
		return zerr.With(domain.ErrActivationNotFound, "activation_id", id)
	}
	if timeout != nil {
		expiration := l.clock.Now().Add(*timeout)
		activation.AttachPid(pid, &expiration)
	} else {
		activation.AttachPid(pid, nil)
		activation.RemovePid(*removePid)
	}
	return l.store.Write(path, activations, lock)
}

// SetReady marks the activation attachable. Idempotent.
func (l *Lifecycle) SetReady(runtimeDir, envPath, id string) error {
	path := state.ActivationsJSONPath(runtimeDir, envPath)
	activations, lock, err := l.readChecked(path)
	if err != nil {
		return err
	}
	activation := activations.ActivationForID(id)
	if activation == nil {
		lock.Unlock()
		return zerr.With(domain.ErrActivationNotFound, "activation_id", id)
	}
	activation.SetReady()
	return l.store.Write(path, activations, lock)
}

// readChecked reads the activations file under its lock and validates the
// version, treating a missing file as an empty registry. On error the lock
// is released.
func (l *Lifecycle) readChecked(path string) (*domain.Activations, ports.FileLock, error) {
	unchecked, lock, err := l.store.Read(path)
	if err != nil {
		return nil, nil, err
	}
	if unchecked == nil {
		return domain.NewActivations(), lock, nil
	}
	activations, err := unchecked.CheckVersion()
	if err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	return activations, lock, nil
}
