package ports

// WatchdogSpawner starts the detached watchdog process that outlives the
// activating command and eventually cleans the activation up.
type WatchdogSpawner interface {
	Spawn(activationID, envPath, runtimeDir string) error
}
