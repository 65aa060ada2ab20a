package ports

// Logger defines the interface for logging.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Error(err error, kv ...any)
}
