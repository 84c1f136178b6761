package session

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if writeErr := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); writeErr != nil {
		t.Fatalf("write script: %v", writeErr)
	}
	return path
}

func TestProcessStreamsOutputLines(t *testing.T) {
	path := writeScript(t, "echo id name scripted\necho uciok\nread ignored\n")

	process, spawnErr := NewSpawner().Spawn(path)
	if spawnErr != nil {
		t.Fatalf("Spawn: %v", spawnErr)
	}
	defer process.Kill()

	want := []string{"id name scripted", "uciok"}
	for _, expected := range want {
		select {
		case line := <-process.Lines():
			if line != expected {
				t.Fatalf("line = %q, want %q", line, expected)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", expected)
		}
	}
}

func TestProcessQuitClosesLines(t *testing.T) {
	path := writeScript(t, "while read line; do [ \"$line\" = quit ] && exit 0; done\n")

	process, spawnErr := NewSpawner().Spawn(path)
	if spawnErr != nil {
		t.Fatalf("Spawn: %v", spawnErr)
	}

	process.Quit()
	if process.Alive() {
		t.Fatal("process still alive after Quit")
	}
	select {
	case _, open := <-process.Lines():
		if open {
			t.Fatal("line channel still delivering after exit")
		}
	case <-time.After(time.Second):
		t.Fatal("line channel not closed after exit")
	}
}

func TestProcessQuitReturnsWhileOutputUnread(t *testing.T) {
	// An engine that floods stdout with nobody draining fills the line
	// buffer; shutdown must still complete.
	path := writeScript(t, "while true; do echo info depth 1; done\n")

	process, spawnErr := NewSpawner().Spawn(path)
	if spawnErr != nil {
		t.Fatalf("Spawn: %v", spawnErr)
	}

	// Give the flood time to fill the channel and block the reader.
	time.Sleep(200 * time.Millisecond)

	finished := make(chan struct{})
	go func() {
		process.Quit()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(15 * time.Second):
		t.Fatal("Quit did not return while engine output was unread")
	}
	if process.Alive() {
		t.Fatal("process still alive after Quit")
	}
}
