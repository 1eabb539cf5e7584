package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_DeliversWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "prompt.md")

	got := make(chan string, 8)
	w, err := Watch(target, func(b []byte) { got <- string(b) })
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.md"), []byte("noise"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("be brief"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-got:
			if s == "noise" {
				t.Fatal("callback fired for another file")
			}
			if s == "be brief" {
				return
			}
		case <-deadline:
			t.Fatal("no change delivered")
		}
	}
}

func TestWatch_CloseIsIdempotent(t *testing.T) {
	w, err := Watch(filepath.Join(t.TempDir(), "x"), func([]byte) {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	if _, err := Watch(filepath.Join(t.TempDir(), "no", "such", "file"), func([]byte) {}); err == nil {
		t.Error("expected error watching a missing directory")
	}
}
