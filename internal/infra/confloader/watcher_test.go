package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T, path string) (*Watcher, <-chan string) {
	t.Helper()
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changed := make(chan string, 10)
	w.OnChange(func(p string) {
		select {
		case changed <- p:
		default:
		}
	})
	w.StartAsync()

	// Give the event loop a moment to start.
	time.Sleep(50 * time.Millisecond)
	return w, changed
}

func TestWatcher_FileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, changed := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if filepath.Base(got) != "cli.yaml" {
			t.Errorf("OnChange() path = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Error("OnChange() callback was not triggered within timeout")
	}
}

func TestWatcher_FileCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	_, changed := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("output: json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Error("creating the watched file should trigger OnChange")
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cli.yaml")
	_, changed := startWatcher(t, path)

	if err := os.WriteFile(filepath.Join(dir, "history"), []byte("login\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		t.Errorf("OnChange() fired for unwatched file %q", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_WatchMissingDir(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.Watch("/nonexistent/dir/cli.yaml"); err == nil {
		t.Error("Watch() should fail when the directory does not exist")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	w.StartAsync()
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
