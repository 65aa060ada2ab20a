package ports

// ProcProber defines the interface for process liveness checks.
type ProcProber interface {
	// IsRunning reports whether pid refers to a live process. Zombies count
	// as dead: they no longer execute and only await reaping.
	IsRunning(pid int) bool
}
