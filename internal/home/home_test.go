package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	d := New("/tmp/nasstore-test")
	if d.Root() != "/tmp/nasstore-test" {
		t.Errorf("expected root /tmp/nasstore-test, got %s", d.Root())
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
	if filepath.Base(d.Root()) != "nasstore" {
		t.Errorf("expected root to end with 'nasstore', got %s", d.Root())
	}
}

func TestConfigPath(t *testing.T) {
	d := New("/data")
	if got := d.ConfigPath(); got != "/data/config.json" {
		t.Errorf("got %s", got)
	}
}

func TestChunkIndexPath(t *testing.T) {
	d := New("/data")
	if got := d.ChunkIndexPath(); got != "/data/meta/chunks.db" {
		t.Errorf("got %s", got)
	}
}

func TestVersionStorePath(t *testing.T) {
	d := New("/data")
	if got := d.VersionStorePath(); got != "/data/meta/files.db" {
		t.Errorf("got %s", got)
	}
}

func TestWALDir(t *testing.T) {
	d := New("/data")
	if got := d.WALDir(); got != "/data/wal" {
		t.Errorf("got %s", got)
	}
}

func TestChunkDir(t *testing.T) {
	d := New("/data")
	if got := d.ChunkDir(); got != "/data/chunks" {
		t.Errorf("got %s", got)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "nasstore")
	d := New(root)
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}
	metaInfo, err := os.Stat(filepath.Join(root, "meta"))
	if err != nil {
		t.Fatalf("Stat meta: %v", err)
	}
	if !metaInfo.IsDir() {
		t.Error("expected meta directory")
	}

	// Calling again should be idempotent.
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists (idempotent): %v", err)
	}
}
