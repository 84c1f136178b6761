package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"ucibridge/application/logging"
)

// LogrusLogger adapts a logrus.Logger to the application logging contract.
type LogrusLogger struct {
	log *logrus.Logger
}

func NewLogrusLogger(log *logrus.Logger) logging.Logger {
	return &LogrusLogger{log: log}
}

func (l *LogrusLogger) Printf(format string, v ...any) {
	l.log.Infof(format, v...)
}

func (l *LogrusLogger) Warnf(format string, v ...any) {
	l.log.Warnf(format, v...)
}

func (l *LogrusLogger) Errorf(format string, v ...any) {
	l.log.Errorf(format, v...)
}

// Setup builds the process logger. When serverLog is enabled the output is
// duplicated into server.log under baseDir (created if missing); a baseDir
// that cannot be created falls back to the working directory with a warning
// on stderr.
func Setup(baseDir string, serverLog bool) (logging.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stderr)

	if !serverLog {
		return NewLogrusLogger(log), nil
	}

	if baseDir == "" {
		baseDir = "."
	} else if mkErr := os.MkdirAll(baseDir, 0o755); mkErr != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create log dir %q: %v, using working directory\n", baseDir, mkErr)
		baseDir = "."
	}

	path := filepath.Join(baseDir, "server.log")
	file, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if openErr != nil {
		return NewLogrusLogger(log), fmt.Errorf("cannot open %s: %w", path, openErr)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return NewLogrusLogger(log), nil
}
