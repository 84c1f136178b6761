package exec_commander

import (
	"runtime"
	"strings"
	"testing"
)

func requirePOSIXShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
}

func TestCombinedOutputMergesBothStreams(t *testing.T) {
	requirePOSIXShell(t)
	c := NewExecCommander()

	out, runErr := c.CombinedOutput("/bin/sh", "-c", "printf listing; printf diagnostic 1>&2")
	if runErr != nil {
		t.Fatalf("CombinedOutput: %v", runErr)
	}
	if !strings.Contains(string(out), "listing") || !strings.Contains(string(out), "diagnostic") {
		t.Fatalf("output %q missing one of the merged streams", string(out))
	}
}

func TestCombinedOutputKeepsOutputOnFailure(t *testing.T) {
	requirePOSIXShell(t)
	c := NewExecCommander()

	// A failing tool still prints why; callers report that text alongside
	// the exit error.
	out, runErr := c.CombinedOutput("/bin/sh", "-c", "printf 'no rules match' 1>&2; exit 1")
	if runErr == nil {
		t.Fatal("expected an exit error")
	}
	if !strings.Contains(string(out), "no rules match") {
		t.Fatalf("output %q lost the tool's diagnostic", string(out))
	}
}
