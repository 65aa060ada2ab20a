package domain

import (
	"fmt"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// LatestActivationsVersion is the highest activations file version this
// binary understands. Incrementing it forces existing activations to exit
// before the new format is written.
const LatestActivationsVersion = 1

// AttachedPid is a process that registered interest in an activation.
//
// Even after the process exits, the activation must not be cleaned up before
// Expiration (if set) has passed. In-place activations rely on this grace
// period: the command that emits the shell script exits before the shell has
// evaluated it.
type AttachedPid struct {
	Pid        int        `json:"pid"`
	Expiration *time.Time `json:"expiration"`
}

// Activation is the state of one activated render of an environment.
//
// There is at most one activation per store path. IDs exist so callers have
// something short and globally unique to use in socket paths and state
// directory names.
type Activation struct {
	ID           string        `json:"id"`
	StorePath    string        `json:"store_path"`
	Ready        bool          `json:"ready"`
	AttachedPids []AttachedPid `json:"attached_pids"`
}

// SetReady marks the activation as attachable. Readiness is a one-way state
// change.
func (a *Activation) SetReady() {
	a.Ready = true
}

// AttachPid registers another process running this activation. The watchdog
// uses the attached set to decide when the activation can be cleaned up.
func (a *Activation) AttachPid(pid int, expiration *time.Time) {
	a.AttachedPids = append(a.AttachedPids, AttachedPid{Pid: pid, Expiration: expiration})
}

// RemovePid unregisters a previously attached process. Used by attach to swap
// the starting process for the shell that ends up evaluating the activation.
func (a *Activation) RemovePid(pid int) {
	kept := a.AttachedPids[:0]
	for _, ap := range a.AttachedPids {
		if ap.Pid != pid {
			kept = append(kept, ap)
		}
	}
	a.AttachedPids = kept
}

// StartupProcessRunning reports whether the process that started the
// activation is still alive. Attaching processes poll this to decide whether
// waiting for readiness is still worthwhile.
func (a *Activation) StartupProcessRunning(isRunning func(pid int) bool) bool {
	if len(a.AttachedPids) == 0 {
		return false
	}
	return isRunning(a.AttachedPids[0].Pid)
}

// UncheckedActivations is the raw deserialized activations file. Its version
// has not been validated; CheckVersion is the only way to obtain an
// Activations value that the rest of the code operates on.
type UncheckedActivations struct {
	Version     int          `json:"version"`
	Activations []Activation `json:"activations"`
}

// UnsupportedVersionError reports an activations file written by an
// incompatible version. It carries the PIDs of the running activations so
// the caller can tell the user what to exit.
type UnsupportedVersionError struct {
	Version int
	Pids    []int
}

func (e *UnsupportedVersionError) Error() string {
	pids := make([]string, len(e.Pids))
	for i, pid := range e.Pids {
		pids[i] = fmt.Sprintf("%d", pid)
	}
	return fmt.Sprintf(
		"environment already activated with an incompatible version (file version %d); exit the running activations first (PIDs: %s)",
		e.Version, strings.Join(pids, ", "))
}

// CheckVersion validates the file version and upgrades it when safe.
//
// A file with no activations is upgraded to the latest version regardless of
// what it claims, since there is no live state to misinterpret. A populated
// file must already be at the latest version; otherwise the error lists every
// attached PID.
func (u *UncheckedActivations) CheckVersion() (*Activations, error) {
	if len(u.Activations) == 0 {
		return &Activations{Version: LatestActivationsVersion}, nil
	}
	if u.Version == LatestActivationsVersion {
		return &Activations{Version: u.Version, Activations: u.Activations}, nil
	}
	var pids []int
	for _, activation := range u.Activations {
		for _, ap := range activation.AttachedPids {
			pids = append(pids, ap.Pid)
		}
	}
	return nil, &UnsupportedVersionError{Version: u.Version, Pids: pids}
}

// Activations is the version-checked state of all activations of one
// environment. There is exactly one activations file per environment, which
// may hold activations for several store paths as the environment is
// re-rendered over time.
type Activations struct {
	Version     int          `json:"version"`
	Activations []Activation `json:"activations"`
}

// NewActivations returns an empty registry at the latest version.
func NewActivations() *Activations {
	return &Activations{Version: LatestActivationsVersion}
}

// CreateActivation adds an activation for a store path with its starting
// process attached. At most one activation may exist per store path; this
// being the only constructor enforces that.
func (s *Activations) CreateActivation(storePath string, pid int) (*Activation, error) {
	if s.ActivationForStorePath(storePath) != nil {
		return nil, zerr.With(ErrActivationExists, "store_path", storePath)
	}
	activation := Activation{
		ID:           PathHash(storePath),
		StorePath:    storePath,
		AttachedPids: []AttachedPid{{Pid: pid}},
	}
	s.Activations = append(s.Activations, activation)
	return &s.Activations[len(s.Activations)-1], nil
}

// ActivationForID returns the activation with the given ID, or nil.
// The pointer aliases the registry's backing slice until the next append.
func (s *Activations) ActivationForID(id string) *Activation {
	for i := range s.Activations {
		if s.Activations[i].ID == id {
			return &s.Activations[i]
		}
	}
	return nil
}

// ActivationForStorePath returns the activation for the store path, or nil.
func (s *Activations) ActivationForStorePath(storePath string) *Activation {
	for i := range s.Activations {
		if s.Activations[i].StorePath == storePath {
			return &s.Activations[i]
		}
	}
	return nil
}

// RemoveActivation drops the activation with the given ID, if present.
func (s *Activations) RemoveActivation(id string) {
	kept := s.Activations[:0]
	for _, activation := range s.Activations {
		if activation.ID != id {
			kept = append(kept, activation)
		}
	}
	s.Activations = kept
}

// IsEmpty reports whether no activations remain.
func (s *Activations) IsEmpty() bool {
	return len(s.Activations) == 0
}
