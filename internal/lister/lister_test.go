package lister

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
		t.Fatalf("touch %s: %v", name, err)
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "@400000005f1a2b3c.s")
	touch(t, dir, "@400000005f1a2b3d.s")
	touch(t, dir, "current")
	touch(t, dir, "lock")

	got, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"@400000005f1a2b3c.s", "@400000005f1a2b3d.s"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestListEmergencyStop(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "@400000005f1a2b3c.s")
	touch(t, dir, StopSentinel)

	got, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() = %v, want empty under emergency stop", got)
	}
}

func TestListMissingDirectory(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("List() on missing directory: want error, got nil")
	}
}
