package resolver

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	if err := os.WriteFile(src, []byte("some png bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	cachePath := filepath.Join(dir, "cache.bin")
	c, err := LoadCache(cachePath)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if err := c.Record(src); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := LoadCache(cachePath)
	if err != nil {
		t.Fatalf("LoadCache (reload): %v", err)
	}

	unchanged, err := reloaded.Unchanged(src, time.Now())
	if err != nil {
		t.Fatalf("Unchanged: %v", err)
	}
	if !unchanged {
		t.Error("expected an untouched file to report unchanged after reload")
	}
}

func TestCacheDetectsModification(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	if err := os.WriteFile(src, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCache("")
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if err := c.Record(src); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Simulate a later, larger write (size always changes ctime-independently).
	time.Sleep(2 * time.Millisecond)
	if err := os.WriteFile(src, []byte("modified content, different length"), 0o644); err != nil {
		t.Fatal(err)
	}

	unchanged, err := c.Unchanged(src, time.Now())
	if err != nil {
		t.Fatalf("Unchanged: %v", err)
	}
	if unchanged {
		t.Error("expected a modified file to report changed")
	}
}

func TestCacheMissFallsBackToError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "never_recorded.png")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCache("")
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if _, err := c.Unchanged(src, time.Now()); err == nil {
		t.Error("expected an error for a source with no cache entry")
	}
}

func TestLoadCacheMissingFileReturnsEmptyCache(t *testing.T) {
	c, err := LoadCache(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if len(c.entries) != 0 {
		t.Errorf("expected empty cache, got %d entries", len(c.entries))
	}
}
