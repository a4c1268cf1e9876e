package core

// Logger is any service that can report application events, optionally
// shipping them to an external error tracker.
type Logger interface {
	Enable(enabled bool)

	// expected args fmt: error, map[string]interface{}, user.User
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
