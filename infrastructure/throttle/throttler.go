package throttle

import (
	"strconv"
	"strings"
	"time"
)

// Throttler elides same-depth info lines within a time window so bursty
// engine search output does not flood the client. Non-info lines and depth
// changes always pass. Not safe for concurrent use; each bridge owns one.
type Throttler struct {
	interval    time.Duration
	lastForward time.Time
	lastDepth   int
	pending     string
	hasPending  bool
	now         func() time.Time
}

func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		interval:  interval,
		lastDepth: -1,
		now:       time.Now,
	}
}

// Offer decides whether line should be forwarded now. A deferred line
// replaces any previously deferred one; the pending slot holds at most one.
func (t *Throttler) Offer(line string) bool {
	if t.interval <= 0 {
		return true
	}

	if !strings.HasPrefix(line, "info ") {
		t.clearPending()
		return true
	}

	if depth, ok := extractDepth(line); ok && depth != t.lastDepth {
		t.lastDepth = depth
		t.lastForward = t.now()
		t.clearPending()
		return true
	}

	if t.now().Sub(t.lastForward) >= t.interval {
		t.lastForward = t.now()
		t.clearPending()
		return true
	}

	t.pending = line
	t.hasPending = true
	return false
}

// Pending returns the deferred line, if any, and clears the slot.
func (t *Throttler) Pending() (string, bool) {
	if !t.hasPending {
		return "", false
	}
	line := t.pending
	t.clearPending()
	return line, true
}

func (t *Throttler) clearPending() {
	t.pending = ""
	t.hasPending = false
}

// extractDepth returns the integer following the first depth token. Note
// that "seldepth" is a distinct token and never matches.
func extractDepth(line string) (int, bool) {
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "depth" && i+1 < len(fields) {
			depth, parseErr := strconv.Atoi(fields[i+1])
			if parseErr != nil {
				return 0, false
			}
			return depth, true
		}
	}
	return 0, false
}
