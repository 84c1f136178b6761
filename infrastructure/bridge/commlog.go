package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ucibridge/application/logging"
)

// commLog appends both directions of the UCI dialogue to
// communication_log_<engine>.txt under the log directory. A nil receiver is
// a no-op, so call sites stay unconditional.
type commLog struct {
	mu   sync.Mutex
	file *os.File
}

func openCommLog(dir, engineName string, logger logging.Logger) *commLog {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, fmt.Sprintf("communication_log_%s.txt", engineName))
	file, openErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if openErr != nil {
		logger.Warnf("UCI log unavailable at %s: %v", path, openErr)
		return nil
	}
	return &commLog{file: file}
}

func (l *commLog) Client(line string) {
	l.append("Client: " + line)
}

func (l *commLog) Engine(line string) {
	l.append("Engine: " + line)
}

func (l *commLog) append(line string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.WriteString(line + "\n")
}

func (l *commLog) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.file.Close()
}
