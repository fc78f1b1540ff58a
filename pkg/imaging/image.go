// Package imaging implements the Image/MipmapImage data model: a single
// contiguous allocation backing an entire mip chain, with non-owning
// per-level views into it, expressed as a parent []byte slice plus
// offset/length views rather than a hand-rolled allocator (see DESIGN.md,
// C3).
package imaging

import "fmt"

// BytesPerPixel is the invariant pixel stride for every Image: RGBA8.
const BytesPerPixel = 4

// Pad4 rounds n up to the nearest multiple of 4, the block-codec alignment
// requirement: padded_width = ceil(width, 4).
func Pad4(n int) int {
	return (n + 3) &^ 3
}

// Image is a single 2D RGBA8 surface, a non-owning view into a parent
// allocation owned by a MipmapImage.
type Image struct {
	width, height             int
	paddedWidth, paddedHeight int
	buf                       []byte // len == paddedWidth*paddedHeight*BytesPerPixel, view into parent
}

// Width returns the logical (unpadded) width.
func (im *Image) Width() int { return im.width }

// Height returns the logical (unpadded) height.
func (im *Image) Height() int { return im.height }

// PaddedWidth returns the ×4-aligned buffer width.
func (im *Image) PaddedWidth() int { return im.paddedWidth }

// PaddedHeight returns the ×4-aligned buffer height.
func (im *Image) PaddedHeight() int { return im.paddedHeight }

// Size returns the byte length of the view's backing buffer.
func (im *Image) Size() int { return im.paddedWidth * im.paddedHeight * BytesPerPixel }

// Buffer returns the row-major RGBA8 buffer for this level. Padding
// columns/rows beyond Width()/Height() are don't-care.
func (im *Image) Buffer() []byte { return im.buf }

// At returns the RGBA8 pixel at (x, y) within the padded buffer.
func (im *Image) At(x, y int) (r, g, b, a uint8) {
	o := (y*im.paddedWidth + x) * BytesPerPixel
	p := im.buf[o : o+4]
	return p[0], p[1], p[2], p[3]
}

// Set writes the RGBA8 pixel at (x, y) within the padded buffer.
func (im *Image) Set(x, y int, r, g, b, a uint8) {
	o := (y*im.paddedWidth + x) * BytesPerPixel
	p := im.buf[o : o+4]
	p[0], p[1], p[2], p[3] = r, g, b, a
}

// levelSize is the byte length of one mip level's surface for given dims.
func levelSize(w, h int) int {
	return Pad4(w) * Pad4(h) * BytesPerPixel
}

// MipDims computes the dimensions of the level below (w, h): each axis halves,
// floored, but never below 1: max(1, w>>1), max(1, h>>1).
func MipDims(w, h int) (int, int) {
	nw, nh := w>>1, h>>1
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// MipmapImage owns one contiguous allocation sized to the sum of every mip
// surface, plus an ordered list of non-owning Image views into it.
type MipmapImage struct {
	alloc []byte
	mips  []Image
}

// NewMipmapChain allocates a MipmapImage for a base image of (width, height).
// If withMipmaps is false, the chain has exactly one level (the base) — "list
// terminates after the base when mipmaps are disabled. Otherwise the chain
// continues until a level reaches 1x1 inclusive.
func NewMipmapChain(width, height int, withMipmaps bool) *MipmapImage {
	type dims struct{ w, h int }
	levels := []dims{{width, height}}
	// 1x1, 1xN and Nx1 inputs get exactly one level —
	// once either axis is already 1, halving the other axis alone produces no
	// useful minification step, so the chain is degenerate and stops at the base.
	degenerate := width == 1 || height == 1
	if withMipmaps && !degenerate {
		for {
			last := levels[len(levels)-1]
			if last.w == 1 && last.h == 1 {
				break
			}
			nw, nh := MipDims(last.w, last.h)
			levels = append(levels, dims{nw, nh})
			if nw == 1 && nh == 1 {
				break
			}
		}
	}

	total := 0
	for _, d := range levels {
		total += levelSize(d.w, d.h)
	}

	mi := &MipmapImage{
		alloc: make([]byte, total),
		mips:  make([]Image, len(levels)),
	}

	offset := 0
	for i, d := range levels {
		sz := levelSize(d.w, d.h)
		mi.mips[i] = Image{
			width:        d.w,
			height:       d.h,
			paddedWidth:  Pad4(d.w),
			paddedHeight: Pad4(d.h),
			buf:          mi.alloc[offset : offset+sz],
		}
		offset += sz
	}

	return mi
}

// Mips returns the ordered mip level views, base first.
func (mi *MipmapImage) Mips() []Image { return mi.mips }

// Mip returns the k-th level view.
func (mi *MipmapImage) Mip(k int) *Image { return &mi.mips[k] }

// Base returns the level-0 (full resolution) view.
func (mi *MipmapImage) Base() *Image { return &mi.mips[0] }

// Count returns the number of mip levels.
func (mi *MipmapImage) Count() int { return len(mi.mips) }

// AllocationSize returns the total byte length of the parent allocation.
func (mi *MipmapImage) AllocationSize() int { return len(mi.alloc) }

// Validate checks the structural invariants: the sum of every
// level's surface bytes equals the allocation size, and the base dimensions
// are the given logical width/height.
func (mi *MipmapImage) Validate(wantWidth, wantHeight int) error {
	sum := 0
	for _, m := range mi.mips {
		sum += m.Size()
	}
	if sum != len(mi.alloc) {
		return fmt.Errorf("mipmap allocation mismatch: sum of levels %d != allocation %d", sum, len(mi.alloc))
	}
	if mi.mips[0].width != wantWidth || mi.mips[0].height != wantHeight {
		return fmt.Errorf("base dimensions mismatch: got %dx%d, want %dx%d",
			mi.mips[0].width, mi.mips[0].height, wantWidth, wantHeight)
	}
	return nil
}
