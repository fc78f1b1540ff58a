// Package bc implements the BC1, BC3 and BC7 block-compression encoders.
// BC3 and plain BC1 delegate whole-image encoding to
// github.com/woozymasta/bcn, the pure-Go block compressor used by
// WoozyMasta-edds, WoozyMasta-paa and WoozyMasta-imageset-packer in the
// retrieved pack (see pkg/bc's DESIGN.md entry for what's delegated and
// why). No CGo binding or C library is used anywhere in this package: the
// original encoder for this format delegated to libsquish through a CGo
// shim with no Go source available to adapt (see DESIGN.md, "Dropped
// teacher dependencies"). Two paths remain hand-rolled here because bcn's API
// doesn't cover them: BC1 with the alpha-black punch-through heuristic, and
// BC7's quality-scaled mode 1/3/6 search — both written as the inverse of
// the decompressBC1/decompressBC3 functions in cmd/texconv/main.go (kept in
// the workspace as reference during development of this package).
package bc

// BlockSize is the number of source pixels per side in any BC1/BC3/BC7 block.
const BlockSize = 4

// BC1BlockBytes and BC3BlockBytes are the fixed encoded sizes per 4x4 block.
const (
	BC1BlockBytes = 8
	BC3BlockBytes = 16
	BC7BlockBytes = 16
)

// rgb565 packs an 8-bit color down to RGB565, the BC1/BC3 color-endpoint format.
func rgb565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// unpack565 is the exact inverse of decompressBC1's decode bit-replication
// (value<<shift | value>>(bits-shift)), used to round-trip an endpoint back to
// 8-bit for error measurement during encode.
func unpack565(c uint16) (r, g, b uint8) {
	r5 := (c >> 11) & 0x1F
	g6 := (c >> 5) & 0x3F
	b5 := c & 0x1F
	r = uint8((r5 << 3) | (r5 >> 2))
	g = uint8((g6 << 2) | (g6 >> 4))
	b = uint8((b5 << 3) | (b5 >> 2))
	return
}

// block4x4 is a flattened 16-pixel RGBA8 source block, row-major.
type block4x4 struct {
	r, g, b, a [16]uint8
}

// colorEndpoints finds the two extreme colors along the block's principal
// axis via min/max-per-channel bounding box, the same cheap endpoint-selection
// approach long used by reference BC1 encoders (squish's own "range fit").
func colorEndpoints(b *block4x4) (c0, c1 [3]uint8) {
	var minR, minG, minB uint8 = 255, 255, 255
	var maxR, maxG, maxB uint8
	for i := 0; i < 16; i++ {
		if b.r[i] < minR {
			minR = b.r[i]
		}
		if b.g[i] < minG {
			minG = b.g[i]
		}
		if b.b[i] < minB {
			minB = b.b[i]
		}
		if b.r[i] > maxR {
			maxR = b.r[i]
		}
		if b.g[i] > maxG {
			maxG = b.g[i]
		}
		if b.b[i] > maxB {
			maxB = b.b[i]
		}
	}
	return [3]uint8{minR, minG, minB}, [3]uint8{maxR, maxG, maxB}
}

func colorDistSq(r0, g0, b0, r1, g1, b1 uint8) int {
	dr := int(r0) - int(r1)
	dg := int(g0) - int(g1)
	db := int(b0) - int(b1)
	return dr*dr + dg*dg + db*db
}

// anyTransparent reports whether any texel in the block has alpha below the
// BC1 punch-through threshold, forcing the 1-bit-alpha (c0<=c1) encoding mode.
func anyTransparent(b *block4x4, threshold uint8) bool {
	for i := 0; i < 16; i++ {
		if b.a[i] < threshold {
			return true
		}
	}
	return false
}

// EncodeBC1Block compresses one 4x4 RGBA8 block into 8 bytes. When
// punchThroughAlpha is true, any texel under alphaThreshold forces the
// 2-color + transparent-index palette (c0 <= c1 in the encoded endpoints),
// mirroring the decoder's "c0 <= c1 means colors[3] is transparent" branch.
func EncodeBC1Block(b *block4x4, punchThroughAlpha bool, alphaThreshold uint8) [BC1BlockBytes]byte {
	lo, hi := colorEndpoints(b)
	c0 := rgb565(hi[0], hi[1], hi[2])
	c1 := rgb565(lo[0], lo[1], lo[2])

	usePunchThrough := punchThroughAlpha && anyTransparent(b, alphaThreshold)
	if usePunchThrough && c0 > c1 {
		c0, c1 = c1, c0
	}
	if !usePunchThrough && c0 == c1 {
		// Force a 4-color (non punch-through) palette even for a flat block,
		// since c0==c1 would otherwise collapse to the 3-color mode.
		if c1 > 0 {
			c1--
		} else {
			c0++
		}
	}

	r0, g0, b0 := unpack565(c0)
	r1, g1, b1 := unpack565(c1)

	var palette [4][3]uint8
	palette[0] = [3]uint8{r0, g0, b0}
	palette[1] = [3]uint8{r1, g1, b1}
	if c0 > c1 {
		palette[2] = [3]uint8{uint8((2*int(r0) + int(r1)) / 3), uint8((2*int(g0) + int(g1)) / 3), uint8((2*int(b0) + int(b1)) / 3)}
		palette[3] = [3]uint8{uint8((int(r0) + 2*int(r1)) / 3), uint8((int(g0) + 2*int(g1)) / 3), uint8((int(b0) + 2*int(b1)) / 3)}
	} else {
		palette[2] = [3]uint8{uint8((int(r0) + int(r1)) / 2), uint8((int(g0) + int(g1)) / 2), uint8((int(b0) + int(b1)) / 2)}
		palette[3] = [3]uint8{0, 0, 0}
	}

	var indices uint32
	for i := 0; i < 16; i++ {
		best, bestDist := 0, 1<<30
		limit := 4
		if !usePunchThrough && c0 == c1 {
			limit = 3
		}
		for p := 0; p < limit; p++ {
			if usePunchThrough && p == 3 && b.a[i] < alphaThreshold {
				// Transparent texels always map to the alpha-carrying index.
				best, bestDist = 3, -1
				break
			}
			d := colorDistSq(b.r[i], b.g[i], b.b[i], palette[p][0], palette[p][1], palette[p][2])
			if d < bestDist {
				best, bestDist = p, d
			}
		}
		indices |= uint32(best) << uint(2*i)
	}

	var out [BC1BlockBytes]byte
	out[0] = byte(c0)
	out[1] = byte(c0 >> 8)
	out[2] = byte(c1)
	out[3] = byte(c1 >> 8)
	out[4] = byte(indices)
	out[5] = byte(indices >> 8)
	out[6] = byte(indices >> 16)
	out[7] = byte(indices >> 24)
	return out
}
