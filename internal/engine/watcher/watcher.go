// Package watcher implements the watchdog's polling state machine.
//
// A watcher observes one activation's attached PIDs and decides when the
// activation can be torn down. Polling reads optimistically without the
// file lock; the lock is taken only when a state-changing write or a
// terminal decision is about to be made, so liveness probes don't serialize
// against concurrent attach invocations.
package watcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

// PollInterval is how long the watcher sleeps between iterations.
const PollInterval = 100 * time.Millisecond

// LockedActivations pairs a parsed activations file with the held lock
// preventing it from being modified.
type LockedActivations struct {
	Activations *domain.UncheckedActivations
	Lock        ports.FileLock
}

// WaitResult is the watcher's terminal state.
type WaitResult struct {
	// CleanUp is set when the activation should be torn down; the caller
	// inherits the held lock and must release it after removing the
	// activation. Nil means plain termination with nothing to clean.
	CleanUp *LockedActivations
}

// pidKey makes an attached PID usable as a set member. Expirations are
// part of identity: re-attaching the same PID with a new expiration is a
// change worth persisting.
type pidKey struct {
	pid        int
	expiration int64
}

func keyOf(ap domain.AttachedPid) pidKey {
	key := pidKey{pid: ap.Pid, expiration: -1}
	if ap.Expiration != nil {
		key.expiration = ap.Expiration.UnixNano()
	}
	return key
}

// PidWatcher polls one activation's attached PIDs until none remain alive
// or a signal flag is raised.
type PidWatcher struct {
	store               ports.ActivationsStore
	prober              ports.ProcProber
	clock               clockwork.Clock
	logger              ports.Logger
	activationsJSONPath string
	activationID        string
	shouldTerminate     *atomic.Bool
	shouldCleanUp       *atomic.Bool
	watching            map[pidKey]domain.AttachedPid
}

func New(
	store ports.ActivationsStore,
	prober ports.ProcProber,
	clock clockwork.Clock,
	logger ports.Logger,
	activationsJSONPath string,
	activationID string,
	shouldTerminate *atomic.Bool,
	shouldCleanUp *atomic.Bool,
) *PidWatcher {
	return &PidWatcher{
		store:               store,
		prober:              prober,
		clock:               clock,
		logger:              logger,
		activationsJSONPath: activationsJSONPath,
		activationID:        activationID,
		shouldTerminate:     shouldTerminate,
		shouldCleanUp:       shouldCleanUp,
		watching:            make(map[pidKey]domain.AttachedPid),
	}
}

// WaitForTermination blocks until the activation is ready for cleanup or a
// termination flag is raised.
func (w *PidWatcher) WaitForTermination(ctx context.Context) (WaitResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return WaitResult{}, err
		}

		changed, err := w.updateWatchlistNoLock()
		if err != nil {
			return WaitResult{}, err
		}
		if changed {
			// Persist the pruned set so other processes observe the same
			// view and the next iteration doesn't re-merge dead PIDs.
			if err := w.writeWatchlist(); err != nil {
				return WaitResult{}, err
			}
		}

		if len(w.watching) == 0 {
			// Re-confirm under the lock: a PID may have attached between
			// the optimistic read and now.
			activations, lock, err := w.updateWatchlistLocked()
			if err != nil {
				return WaitResult{}, err
			}
			if len(w.watching) == 0 {
				return WaitResult{CleanUp: &LockedActivations{Activations: activations, Lock: lock}}, nil
			}
			if err := lock.Unlock(); err != nil {
				return WaitResult{}, err
			}
		}

		if w.shouldTerminate.Load() {
			return WaitResult{}, nil
		}

		if w.shouldCleanUp.Load() {
			activations, lock, err := w.store.Read(w.activationsJSONPath)
			if err != nil {
				return WaitResult{}, err
			}
			if activations == nil {
				lock.Unlock()
				return WaitResult{}, zerr.New("watchdog running but activations file doesn't exist")
			}
			return WaitResult{CleanUp: &LockedActivations{Activations: activations, Lock: lock}}, nil
		}

		w.clock.Sleep(PollInterval)
	}
}

// updateWatchlistNoLock refreshes the watched set from an optimistic read
// and reports whether the set changed.
func (w *PidWatcher) updateWatchlistNoLock() (bool, error) {
	activations, err := w.store.ReadNoLock(w.activationsJSONPath)
	if err != nil {
		return false, err
	}
	before := w.snapshot()
	if err := w.mergeAndPrune(activations); err != nil {
		return false, err
	}
	return !w.sameAs(before), nil
}

// updateWatchlistLocked refreshes the watched set from a locked read and
// returns the parsed file with the lock still held.
func (w *PidWatcher) updateWatchlistLocked() (*domain.UncheckedActivations, ports.FileLock, error) {
	activations, lock, err := w.store.Read(w.activationsJSONPath)
	if err != nil {
		return nil, nil, err
	}
	if err := w.mergeAndPrune(activations); err != nil {
		lock.Unlock()
		return nil, nil, err
	}
	return activations, lock, nil
}

// mergeAndPrune merges newly attached PIDs into the watched set, then drops
// every PID that is not OS-alive and has no unreached expiration. The
// activation missing from the file, or the file missing entirely, is a
// logic error: the watchdog must not outlive the state it watches.
func (w *PidWatcher) mergeAndPrune(activations *domain.UncheckedActivations) error {
	if activations == nil {
		return zerr.New("watchdog running but activations file doesn't exist")
	}
	var activation *domain.Activation
	for i := range activations.Activations {
		if activations.Activations[i].ID == w.activationID {
			activation = &activations.Activations[i]
			break
		}
	}
	if activation == nil {
		return zerr.With(zerr.New("watchdog running for unknown activation"), "activation_id", w.activationID)
	}

	for _, ap := range activation.AttachedPids {
		w.watching[keyOf(ap)] = ap
	}

	now := w.clock.Now()
	for key, ap := range w.watching {
		if ap.Expiration != nil && now.Before(*ap.Expiration) {
			continue
		}
		if w.prober.IsRunning(ap.Pid) {
			continue
		}
		delete(w.watching, key)
	}
	return nil
}

// writeWatchlist persists the watched set as the activation's attached PID
// list, under the lock.
func (w *PidWatcher) writeWatchlist() error {
	activations, lock, err := w.updateWatchlistLocked()
	if err != nil {
		return err
	}
	checked, err := activations.CheckVersion()
	if err != nil {
		lock.Unlock()
		return err
	}
	activation := checked.ActivationForID(w.activationID)
	if activation == nil {
		lock.Unlock()
		return zerr.With(zerr.New("watchdog running for unknown activation"), "activation_id", w.activationID)
	}
	// Filter the list as read instead of dumping the watched set: attach
	// order is load-bearing, the first PID is the activation's starter.
	kept := activation.AttachedPids[:0]
	for _, ap := range activation.AttachedPids {
		if _, ok := w.watching[keyOf(ap)]; ok {
			kept = append(kept, ap)
		}
	}
	activation.AttachedPids = kept
	return w.store.Write(w.activationsJSONPath, checked, lock)
}

func (w *PidWatcher) snapshot() map[pidKey]struct{} {
	out := make(map[pidKey]struct{}, len(w.watching))
	for key := range w.watching {
		out[key] = struct{}{}
	}
	return out
}

func (w *PidWatcher) sameAs(before map[pidKey]struct{}) bool {
	if len(w.watching) != len(before) {
		return false
	}
	for key := range w.watching {
		if _, ok := before[key]; !ok {
			return false
		}
	}
	return true
}
