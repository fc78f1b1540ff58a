package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodeSolidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeBasic(t *testing.T) {
	data := encodeSolidPNG(t, 8, 8, color.RGBA{10, 20, 30, 255})
	chain, w, h, err := Decode(data, false, true, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w != 8 || h != 8 {
		t.Fatalf("got %dx%d, want 8x8", w, h)
	}
	r, g, b, a := chain.Base().At(0, 0)
	if r != 10 || g != 20 || b != 30 || a != 255 {
		t.Fatalf("pixel mismatch: got (%d,%d,%d,%d)", r, g, b, a)
	}
}

func TestDecodeVFlip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{1, 0, 0, 255}) // top-left
	img.SetRGBA(0, 1, color.RGBA{2, 0, 0, 255}) // bottom-left
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	chain, _, _, err := Decode(buf.Bytes(), true, false, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, _, _, _ := chain.Base().At(0, 0)
	if r != 2 {
		t.Fatalf("expected vflip to move bottom row to top, got r=%d", r)
	}
}

func TestDecodeFixSizePads3x5To4x8(t *testing.T) {
	// fix_size on a 3x5 image produces a 4x8 padded base.
	data := encodeSolidPNG(t, 3, 5, color.RGBA{5, 5, 5, 255})
	chain, w, h, err := Decode(data, false, false, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w != 4 || h != 8 {
		t.Fatalf("got %dx%d, want 4x8", w, h)
	}
	if chain.Base().Width() != 4 || chain.Base().Height() != 8 {
		t.Fatalf("base dims should reflect padded size, got %dx%d", chain.Base().Width(), chain.Base().Height())
	}
	r, _, _, _ := chain.Base().At(0, 0)
	if r != 5 {
		t.Fatalf("expected original pixel data preserved, got r=%d", r)
	}
}

func TestDecodeFixSizeNoOpWhenAlreadyAligned(t *testing.T) {
	data := encodeSolidPNG(t, 8, 4, color.RGBA{1, 1, 1, 255})
	chain, w, h, err := Decode(data, false, false, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w != 8 || h != 4 {
		t.Fatalf("fix_size should be a no-op on already-aligned dims, got %dx%d", w, h)
	}
	_ = chain
}
