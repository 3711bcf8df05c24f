package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWaitForNewFileReturnsOnTimeout(t *testing.T) {
	dir := t.TempDir()
	w := &FSNotifyWatcher{}

	start := time.Now()
	ok := w.WaitForNewFile(context.Background(), dir, 100*time.Millisecond)
	elapsed := time.Since(start)

	if !ok {
		t.Error("WaitForNewFile() = false, want true on timeout")
	}
	if elapsed > 2*time.Second {
		t.Errorf("WaitForNewFile() took %v, want to return near the timeout", elapsed)
	}
}

func TestWaitForNewFileReturnsOnNewFile(t *testing.T) {
	dir := t.TempDir()
	w := &FSNotifyWatcher{}

	done := make(chan bool, 1)
	go func() {
		done <- w.WaitForNewFile(context.Background(), dir, 5*time.Second)
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "@new"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitForNewFile() = false, want true")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForNewFile() did not return after file creation")
	}
}

func TestWaitForNewFileFallsBackWhenDirMissing(t *testing.T) {
	w := &FSNotifyWatcher{}
	start := time.Now()
	ok := w.WaitForNewFile(context.Background(), filepath.Join(t.TempDir(), "missing"), 150*time.Millisecond)
	if !ok {
		t.Error("WaitForNewFile() = false, want true from fallback path")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("WaitForNewFile() took too long on fallback path")
	}
}
