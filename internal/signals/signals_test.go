package signals

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(filepath.Join(t.TempDir(), "signals"))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func TestKillIsLatched(t *testing.T) {
	w := newTestWatcher(t)

	if w.ShouldStop() {
		t.Fatal("ShouldStop before any signal")
	}
	if err := SendKill(w.Dir()); err != nil {
		t.Fatalf("SendKill failed: %v", err)
	}
	if !w.ShouldStop() {
		t.Error("ShouldStop = false after SendKill")
	}

	// Removing the file does not un-kill a running worker.
	if err := Resume(w.Dir()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if !w.ShouldStop() {
		t.Error("kill should stay latched")
	}
}

func TestKillPendingUntilResume(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "signals")

	if KillPending(dir) {
		t.Fatal("KillPending on an empty directory")
	}
	if err := SendKill(dir); err != nil {
		t.Fatalf("SendKill failed: %v", err)
	}

	// A second watcher on the same directory still sees the kill.
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()
	if !KillPending(dir) || !w.ShouldStop() {
		t.Error("kill file should stay until resumed")
	}

	if err := Resume(dir); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if KillPending(dir) {
		t.Error("KillPending after Resume")
	}
}

func TestPauseFollowsFile(t *testing.T) {
	w := newTestWatcher(t)

	if err := SendPause(w.Dir()); err != nil {
		t.Fatalf("SendPause failed: %v", err)
	}
	if !w.ShouldPause() {
		t.Error("ShouldPause = false after SendPause")
	}

	if err := Resume(w.Dir()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if w.ShouldPause() {
		t.Error("ShouldPause = true after Resume")
	}

	// Resuming twice is harmless.
	if err := Resume(w.Dir()); err != nil {
		t.Errorf("second Resume failed: %v", err)
	}
}

func TestChangedFires(t *testing.T) {
	w := newTestWatcher(t)
	if w.watcher == nil {
		t.Skip("fsnotify unavailable")
	}

	if err := SendPause(w.Dir()); err != nil {
		t.Fatalf("SendPause failed: %v", err)
	}

	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Error("Changed did not fire after a signal file was written")
	}
}

func TestDir(t *testing.T) {
	if got := Dir("/var/lib/huddle/huddle.db"); got != "/var/lib/huddle/signals" {
		t.Errorf("Dir = %q", got)
	}
}

func TestCloseIdempotent(t *testing.T) {
	w := newTestWatcher(t)
	w.Close()
	w.Close()
}
