package ports

// FileLock is a held advisory lock on a state file's sidecar. The kernel
// releases it if the holding process dies, so a crashed writer never leaves
// the file locked.
type FileLock interface {
	// Unlock releases the lock. Safe to call once only.
	Unlock() error
}
