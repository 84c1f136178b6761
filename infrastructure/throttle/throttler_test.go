package throttle

import (
	"fmt"
	"testing"
	"time"
)

func newTestThrottler(interval time.Duration) (*Throttler, *time.Time) {
	t := NewThrottler(interval)
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	t.now = func() time.Time { return current }
	return t, &current
}

func TestThrottlerDisabledForwardsEverything(t *testing.T) {
	throttler, _ := newTestThrottler(0)
	for i := 0; i < 10; i++ {
		if !throttler.Offer("info depth 5 score cp 20") {
			t.Fatal("deferred with throttling disabled")
		}
	}
}

func TestThrottlerNonInfoAlwaysPasses(t *testing.T) {
	throttler, _ := newTestThrottler(500 * time.Millisecond)

	if !throttler.Offer("info depth 5 score cp 20") {
		t.Fatal("first info line deferred")
	}
	throttler.Offer("info depth 5 score cp 21")

	if !throttler.Offer("bestmove e2e4") {
		t.Fatal("non-info line deferred")
	}
	// Passing a non-info line clears the pending slot.
	if _, ok := throttler.Pending(); ok {
		t.Fatal("pending slot survived non-info line")
	}
}

func TestThrottlerMonotoneDepthAlwaysForwards(t *testing.T) {
	throttler, _ := newTestThrottler(time.Second)
	for depth := 1; depth <= 20; depth++ {
		line := fmt.Sprintf("info depth %d score cp 10 nodes 1000", depth)
		if !throttler.Offer(line) {
			t.Fatalf("depth %d deferred", depth)
		}
	}
}

func TestThrottlerConstantDepthWindow(t *testing.T) {
	throttler, clock := newTestThrottler(500 * time.Millisecond)

	if !throttler.Offer("info depth 8 score cp 10") {
		t.Fatal("depth change deferred")
	}
	if throttler.Offer("info depth 8 score cp 11") {
		t.Fatal("same depth inside window forwarded")
	}
	if throttler.Offer("info depth 8 score cp 12") {
		t.Fatal("same depth inside window forwarded")
	}

	// Pending slot holds only the most recent deferred line.
	pending, ok := throttler.Pending()
	if !ok || pending != "info depth 8 score cp 12" {
		t.Fatalf("pending = %q/%v, want latest deferred line", pending, ok)
	}

	*clock = clock.Add(600 * time.Millisecond)
	if !throttler.Offer("info depth 8 score cp 13") {
		t.Fatal("same depth after window deferred")
	}
}

func TestThrottlerSeldepthIgnored(t *testing.T) {
	throttler, _ := newTestThrottler(time.Second)

	if !throttler.Offer("info depth 8 seldepth 12 score cp 10") {
		t.Fatal("first line deferred")
	}
	// seldepth changes alone do not count as depth changes.
	if throttler.Offer("info depth 8 seldepth 14 score cp 11") {
		t.Fatal("seldepth change treated as depth change")
	}
}

func TestExtractDepth(t *testing.T) {
	tests := []struct {
		line  string
		depth int
		ok    bool
	}{
		{"info depth 12 score cp 30", 12, true},
		{"info seldepth 14 depth 9", 9, true},
		{"info score cp 30", 0, false},
		{"info depth abc", 0, false},
		{"info depth", 0, false},
	}
	for _, tt := range tests {
		depth, ok := extractDepth(tt.line)
		if depth != tt.depth || ok != tt.ok {
			t.Errorf("extractDepth(%q) = %d/%v, want %d/%v", tt.line, depth, ok, tt.depth, tt.ok)
		}
	}
}
