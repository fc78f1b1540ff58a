package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// Decode implements the Decode stage contract: parse PNG bytes to RGBA8,
// optionally vflip, allocate the full mipmap chain, write the decoded pixels
// into the base level, and pad the base to x4 dimensions when fixSize is
// requested and the source isn't already x4-aligned.
//
// Returns the populated chain and the logical (possibly padded) width/height
// that the caller's per-file dimensions and mipmap count should be updated to.
func Decode(pngBytes []byte, vflip, mipmaps, fixSize bool) (*MipmapImage, int, int, error) {
	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode png: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, 0, 0, fmt.Errorf("decode png: zero-sized image")
	}

	chain := NewMipmapChain(w, h, mipmaps)
	base := chain.Base()
	copyPixels(base, img, bounds, vflip)

	needsPad := fixSize && (w%4 != 0 || h%4 != 0)
	if !needsPad {
		return chain, w, h, nil
	}

	padded := Pad4(w)
	paddedH := Pad4(h)
	fixed := NewMipmapChain(padded, paddedH, mipmaps)
	copyImageInto(fixed.Base(), base, w, h)
	return fixed, padded, paddedH, nil
}

// copyPixels decodes img into dst's padded buffer, reflecting row order if
// vflip is set. Padding columns/rows beyond the logical bounds are left as
// whatever make() zeroed them to — their contents are don't-care.
func copyPixels(dst *Image, img image.Image, bounds image.Rectangle, vflip bool) {
	w, h := bounds.Dx(), bounds.Dy()
	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + y
		dstY := y
		if vflip {
			dstY = h - 1 - y
		}
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, srcY).RGBA()
			dst.Set(x, dstY, uint8(r>>8), uint8(g>>8), uint8(b>>8), uint8(a>>8))
		}
	}
}

// copyImageInto copies src's logical w x h region into dst's base buffer,
// used by the fix_size re-allocation step: the newly allocated padded chain
// receives the original rows, with right/bottom padding left don't-care.
func copyImageInto(dst, src *Image, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := src.At(x, y)
			dst.Set(x, y, r, g, b, a)
		}
	}
}
