package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goopsie/pngtodds/pkg/config"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveSinglePNGFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	writeFile(t, src, []byte("fake-png"))

	cfg := config.New()
	cfg.Input = src

	tasks, err := Resolve(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Dest != filepath.Join(dir, "tex.dds") {
		t.Fatalf("unexpected dest: %s", tasks[0].Dest)
	}
}

func TestResolveDirectoryWalk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"), []byte("a"))
	writeFile(t, filepath.Join(dir, "sub", "b.png"), []byte("b"))
	writeFile(t, filepath.Join(dir, "ignore.txt"), []byte("not a png"))

	cfg := config.New()
	cfg.Input = dir
	cfg.Depth = -1

	tasks, err := Resolve(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 png tasks, got %d: %+v", len(tasks), tasks)
	}
}

func TestResolveDepthLimit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.png"), []byte("a"))
	writeFile(t, filepath.Join(dir, "sub", "deep.png"), []byte("b"))

	cfg := config.New()
	cfg.Input = dir
	cfg.Depth = 0

	tasks, err := Resolve(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected depth-0 walk to admit only the top-level png, got %d", len(tasks))
	}
}

func TestResolveOutputRebasesDestination(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "tex.png"), []byte("a"))

	cfg := config.New()
	cfg.Input = dir
	cfg.Output = out
	cfg.Depth = -1

	tasks, err := Resolve(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	want := filepath.Join(out, "sub", "tex.dds")
	if tasks[0].Dest != want {
		t.Fatalf("got dest %s, want %s", tasks[0].Dest, want)
	}
}

func TestResolveManifestIgnoresOutput(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	pngPath := filepath.Join(dir, "tex.png")
	writeFile(t, pngPath, []byte("a"))

	manifestPath := filepath.Join(dir, "list.txt")
	writeFile(t, manifestPath, []byte("tex.png\n"))

	cfg := config.New()
	cfg.Input = manifestPath
	cfg.Output = out

	tasks, err := Resolve(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Dest != filepath.Join(dir, "tex.dds") {
		t.Fatalf("manifest destination should sit beside the source, got %s", tasks[0].Dest)
	}
}

func TestResolveSkipsExistingDestinationByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tex.png"), []byte("a"))
	writeFile(t, filepath.Join(dir, "tex.dds"), []byte("already there"))

	cfg := config.New()
	cfg.Input = dir
	cfg.Depth = -1

	tasks, err := Resolve(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected existing destination to be skipped, got %d tasks", len(tasks))
	}
}

func TestResolveOverwriteAlwaysProcesses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tex.png"), []byte("a"))
	writeFile(t, filepath.Join(dir, "tex.dds"), []byte("already there"))

	cfg := config.New()
	cfg.Input = dir
	cfg.Depth = -1
	cfg.Overwrite = true

	tasks, err := Resolve(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected overwrite to force processing, got %d tasks", len(tasks))
	}
}

func TestResolveSubstringFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep_this.png"), []byte("a"))
	writeFile(t, filepath.Join(dir, "drop_this.png"), []byte("b"))

	cfg := config.New()
	cfg.Input = dir
	cfg.Depth = -1
	cfg.Substring = "keep"

	tasks, err := Resolve(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 matching task, got %d", len(tasks))
	}
}
