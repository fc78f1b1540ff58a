package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/report"
)

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture png: %v", err)
	}
}

func baseConfig(t *testing.T, input string) *config.Config {
	cfg := config.New()
	cfg.Input = input
	cfg.Format = config.FormatBC1
	cfg.Threads = 2
	cfg.Mipmaps = true
	cfg.Scale = 100
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return cfg
}

func TestRunConvertsSingleFileToDDS(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	writePNG(t, src, 8, 8, color.RGBA{R: 200, G: 50, B: 10, A: 255})

	cfg := baseConfig(t, src)

	result, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected 1 processed, got %+v", result)
	}
	if result.HadErrors {
		t.Fatal("expected no errors")
	}

	dest := filepath.Join(dir, "tex.dds")
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("expected dds output: %v", err)
	}
	if info.Size() < 128 {
		t.Errorf("dds output suspiciously small: %d bytes", info.Size())
	}
}

func TestRunSkipsExistingDestinationByDefault(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	writePNG(t, src, 4, 4, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	cfg := baseConfig(t, src)
	if _, err := Run(context.Background(), cfg, nil); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	dest := filepath.Join(dir, "tex.dds")
	firstInfo, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat dest: %v", err)
	}

	result, err := Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.Processed != 0 || result.Skipped != 1 {
		t.Errorf("expected skip on rerun, got %+v", result)
	}

	secondInfo, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat dest after rerun: %v", err)
	}
	if !firstInfo.ModTime().Equal(secondInfo.ModTime()) {
		t.Error("destination was rewritten even though overwrite was not requested")
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	writePNG(t, src, 4, 4, color.RGBA{R: 9, G: 9, B: 9, A: 255})

	cfg := baseConfig(t, src)
	cfg.DryRun = true

	if _, err := Run(context.Background(), cfg, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dest := filepath.Join(dir, "tex.dds")
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("dry run should not have written a destination file")
	}
}

func TestRunPNGFormatBypassesCompression(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	writePNG(t, src, 4, 4, color.RGBA{R: 7, G: 8, B: 9, A: 255})

	outDir := filepath.Join(dir, "out")
	cfg := baseConfig(t, src)
	cfg.Format = config.FormatPNG
	cfg.Mipmaps = false
	cfg.Output = outDir
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if _, err := Run(context.Background(), cfg, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dest := filepath.Join(outDir, "tex.png")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected png passthrough output at %s: %v", dest, err)
	}
}

func TestRunReportsProgressOverStream(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	writePNG(t, src, 4, 4, color.RGBA{R: 1, G: 1, B: 1, A: 255})

	cfg := baseConfig(t, src)
	stream := report.NewStream(16)

	done := make(chan struct{})
	var sawEncoded bool
	go func() {
		defer close(done)
		for r := range stream.Events() {
			if r.Tag == report.EncodingProgress {
				sawEncoded = true
			}
		}
	}()

	if _, err := Run(context.Background(), cfg, stream); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stream.Close()
	<-done

	if !sawEncoded {
		t.Error("expected an encoding_progress event")
	}
}

func TestRunCleanDeletesDestinations(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tex.png")
	writePNG(t, src, 4, 4, color.RGBA{R: 3, G: 3, B: 3, A: 255})

	cfg := baseConfig(t, src)
	if _, err := Run(context.Background(), cfg, nil); err != nil {
		t.Fatalf("convert Run: %v", err)
	}

	dest := filepath.Join(dir, "tex.dds")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected dds before clean: %v", err)
	}

	cleanCfg := baseConfig(t, src)
	cleanCfg.Clean = true
	result, err := Run(context.Background(), cleanCfg, nil)
	if err != nil {
		t.Fatalf("clean Run: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("expected 1 cleaned, got %+v", result)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("expected destination to be removed by clean mode")
	}
}
