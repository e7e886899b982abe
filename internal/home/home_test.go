package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	d := New("/tmp/jobscrape-test")
	if d.Root() != "/tmp/jobscrape-test" {
		t.Errorf("expected root /tmp/jobscrape-test, got %s", d.Root())
	}
}

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if d.Root() == "" {
		t.Fatal("expected non-empty root")
	}
	// Should end with "jobscrape".
	if filepath.Base(d.Root()) != "jobscrape" {
		t.Errorf("expected root to end with 'jobscrape', got %s", d.Root())
	}
}

func TestSessionsDir(t *testing.T) {
	d := New("/data")
	if got := d.SessionsDir(); got != "/data/sessions" {
		t.Errorf("got %s", got)
	}
}

func TestSessionPath(t *testing.T) {
	d := New("/data")
	if got := d.SessionPath(3); got != "/data/sessions/3.session" {
		t.Errorf("got %s", got)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "jobscrape")
	d := New(root)
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	info, err := os.Stat(d.SessionsDir())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}

	// Calling again should be idempotent.
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists (idempotent): %v", err)
	}
}
