package logging

// Logger is the minimal logging contract used across the bridge.
// Infrastructure provides a logrus-backed implementation.
type Logger interface {
	Printf(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}
