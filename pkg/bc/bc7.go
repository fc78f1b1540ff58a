package bc

// EncodeBC7Block compresses one 4x4 RGBA8 block, choosing between three BC7
// modes:
//
//   - Mode 6: a single subset, 7-bit-plus-pbit endpoints for all four
//     channels (each channel within ±1 of its 8-bit value), 4-bit indices.
//     The only mode here that carries alpha, so it is the mandatory choice
//     whenever the block has any texel with alpha != 255. It is also always
//     used for flat blocks (every texel the same color), and otherwise kept
//     whenever partitioning doesn't reduce error.
//   - Modes 1 and 3: two RGB-only subsets over one of bc7Partitions' shapes,
//     6-bit shared-pbit endpoints (mode 1) or 7-bit per-endpoint-pbit
//     endpoints (mode 3). quality selects how many of bc7Partitions to try
//     (at least quality+1, capped at the table size); both modes are built
//     for each candidate partition and the better of the two kept.
//
// The partition shapes in bc7Partitions are a reduced, self-consistent
// catalog (vertical/horizontal/diagonal/corner splits), not the official
// 64-entry BC7 partition table — see DESIGN.md for why. quality also
// controls, as in mode 6, how many Lloyd-style endpoint-refinement passes
// run per subset before quantizing.
func EncodeBC7Block(b *block4x4, quality int) [BC7BlockBytes]byte {
	mode6Enc, mode6SSE := encodeBC7Mode6(b, quality)

	if hasNonOpaqueAlpha(b) {
		return mode6Enc
	}

	flat := true
	for i := 1; i < 16; i++ {
		if b.r[i] != b.r[0] || b.g[i] != b.g[0] || b.b[i] != b.b[0] {
			flat = false
			break
		}
	}
	if flat {
		return mode6Enc
	}

	candidateCount := quality + 1
	if candidateCount > len(bc7Partitions) {
		candidateCount = len(bc7Partitions)
	}
	if candidateCount < 1 {
		candidateCount = 1
	}

	best, bestSSE := mode6Enc, mode6SSE
	for partitionID := 0; partitionID < candidateCount; partitionID++ {
		mask := bc7Partitions[partitionID]
		if enc, sse := encodeBC7Mode1(b, mask, partitionID, quality); sse < bestSSE {
			best, bestSSE = enc, sse
		}
		if enc, sse := encodeBC7Mode3(b, mask, partitionID, quality); sse < bestSSE {
			best, bestSSE = enc, sse
		}
	}
	return best
}

func hasNonOpaqueAlpha(b *block4x4) bool {
	for _, a := range b.a {
		if a != 255 {
			return true
		}
	}
	return false
}

// bc7Partitions is a reduced catalog of 2-subset shapes for modes 1/3: three
// vertical splits, three horizontal splits, a diagonal and anti-diagonal
// split, and three 2x2 corner cutouts. Every shape leaves texel 0 (the
// always-anchor position) in subset 0. This is deliberately smaller and
// simpler than BC7's official 64-entry partition table — see DESIGN.md,
// C6, "BC7 partition search" — but still exercises a genuine multi-candidate
// search scaled by quality, with real two-subset endpoint fitting.
var bc7Partitions = buildBC7Partitions()

func buildBC7Partitions() [][16]uint8 {
	var parts [][16]uint8

	for col := 1; col <= 3; col++ {
		var m [16]uint8
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if x >= col {
					m[y*4+x] = 1
				}
			}
		}
		parts = append(parts, m)
	}

	for row := 1; row <= 3; row++ {
		var m [16]uint8
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if y >= row {
					m[y*4+x] = 1
				}
			}
		}
		parts = append(parts, m)
	}

	var diag [16]uint8
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x > y {
				diag[y*4+x] = 1
			}
		}
	}
	parts = append(parts, diag)

	var antiDiag [16]uint8
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x+y >= 4 {
				antiDiag[y*4+x] = 1
			}
		}
	}
	parts = append(parts, antiDiag)

	// 2x2 corners, excluding the top-left corner that holds texel 0.
	corners := [3][2]int{{1, 0}, {0, 1}, {1, 1}}
	for _, c := range corners {
		var m [16]uint8
		cx, cy := c[0]*2, c[1]*2
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				if x >= cx && x < cx+2 && y >= cy && y < cy+2 {
					m[y*4+x] = 1
				}
			}
		}
		parts = append(parts, m)
	}

	return parts
}

// bc7Weights2 and bc7Weights3 are BC7's standard 2-bit (4-entry) and 3-bit
// (8-entry) interpolation weight tables, scaled to /64 — the same tables
// used by modes 3 and 1 respectively in the official format.
var (
	bc7Weights2 = [4]int{0, 21, 43, 64}
	bc7Weights3 = [8]int{0, 9, 18, 27, 37, 46, 55, 64}
)

func subsetTexels(mask [16]uint8, subset uint8) []int {
	var idxs []int
	for i, s := range mask {
		if s == subset {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

func rgbBounds(b *block4x4, idxs []int) (lo, hi [3]uint8) {
	lo = [3]uint8{255, 255, 255}
	for _, i := range idxs {
		px := [3]uint8{b.r[i], b.g[i], b.b[i]}
		for ch := 0; ch < 3; ch++ {
			if px[ch] < lo[ch] {
				lo[ch] = px[ch]
			}
			if px[ch] > hi[ch] {
				hi[ch] = px[ch]
			}
		}
	}
	return
}

func rgbDistSq(a, b [3]uint8) int {
	sum := 0
	for ch := 0; ch < 3; ch++ {
		d := int(a[ch]) - int(b[ch])
		sum += d * d
	}
	return sum
}

// refineRGB is bc7RefineEndpoints restricted to a subset's texels and to the
// three color channels, one Lloyd-style relaxation step.
func refineRGB(b *block4x4, idxs []int, c0, c1 [3]uint8) (newC0, newC1 [3]uint8) {
	var sum0, sum1 [3]int
	var n0, n1 int
	for _, i := range idxs {
		px := [3]uint8{b.r[i], b.g[i], b.b[i]}
		if rgbDistSq(px, c0) <= rgbDistSq(px, c1) {
			for ch := 0; ch < 3; ch++ {
				sum0[ch] += int(px[ch])
			}
			n0++
		} else {
			for ch := 0; ch < 3; ch++ {
				sum1[ch] += int(px[ch])
			}
			n1++
		}
	}
	newC0, newC1 = c0, c1
	if n0 > 0 {
		for ch := 0; ch < 3; ch++ {
			newC0[ch] = uint8(sum0[ch] / n0)
		}
	}
	if n1 > 0 {
		for ch := 0; ch < 3; ch++ {
			newC1[ch] = uint8(sum1[ch] / n1)
		}
	}
	return
}

// bc7QuantizeSharedPBit is mode 1's endpoint quantizer: a single pbit shared
// by both endpoints of a subset, voted by LSB majority across all six color
// components.
func bc7QuantizeSharedPBit(c0, c1 [3]uint8, bits int) (pbit uint8, base0, base1 [3]uint8) {
	votes := 0
	for ch := 0; ch < 3; ch++ {
		if c0[ch]&1 != 0 {
			votes++
		}
		if c1[ch]&1 != 0 {
			votes++
		}
	}
	if votes >= 3 {
		pbit = 1
	}
	maxVal := uint8((1 << uint(bits)) - 1)
	quant := func(c [3]uint8) (out [3]uint8) {
		for ch := 0; ch < 3; ch++ {
			v := int(c[ch]) - int(pbit)
			if v < 0 {
				v = 0
			}
			out[ch] = uint8(v >> 1)
			if out[ch] > maxVal {
				out[ch] = maxVal
			}
		}
		return
	}
	return pbit, quant(c0), quant(c1)
}

// bc7QuantizeRGB is mode 3's endpoint quantizer: one pbit per endpoint.
func bc7QuantizeRGB(c [3]uint8, bits int) (pbit uint8, base [3]uint8) {
	votes := 0
	for ch := 0; ch < 3; ch++ {
		if c[ch]&1 != 0 {
			votes++
		}
	}
	if votes >= 2 {
		pbit = 1
	}
	maxVal := uint8((1 << uint(bits)) - 1)
	for ch := 0; ch < 3; ch++ {
		v := int(c[ch]) - int(pbit)
		if v < 0 {
			v = 0
		}
		base[ch] = uint8(v >> 1)
		if base[ch] > maxVal {
			base[ch] = maxVal
		}
	}
	return
}

func rgbPalette(base0 [3]uint8, p0 uint8, base1 [3]uint8, p1 uint8, weights []int) [][3]uint8 {
	c0 := [3]uint8{base0[0]<<1 | p0, base0[1]<<1 | p0, base0[2]<<1 | p0}
	c1 := [3]uint8{base1[0]<<1 | p1, base1[1]<<1 | p1, base1[2]<<1 | p1}
	palette := make([][3]uint8, len(weights))
	for i, w := range weights {
		for ch := 0; ch < 3; ch++ {
			v := (int(c0[ch])*(64-w) + int(c1[ch])*w + 32) >> 6
			palette[i][ch] = uint8(v)
		}
	}
	return palette
}

func assignRGBIndices(b *block4x4, idxs []int, palette [][3]uint8) (indices map[int]uint8, sse int) {
	indices = make(map[int]uint8, len(idxs))
	for _, i := range idxs {
		px := [3]uint8{b.r[i], b.g[i], b.b[i]}
		best, bestDist := 0, 1<<30
		for p, entry := range palette {
			d := rgbDistSq(px, entry)
			if d < bestDist {
				best, bestDist = p, d
			}
		}
		indices[i] = uint8(best)
		sse += bestDist
	}
	return
}

// encodeBC7Mode1 builds mode 1 (2 subsets, 6-bit shared-pbit endpoints,
// 3-bit indices) for the given partition. Field widths add up to the full
// 128-bit block: 2 (mode) + 6 (partition) + 72 (color) + 2 (pbits) + 46
// (indices, two anchors at 2 bits instead of 3).
func encodeBC7Mode1(b *block4x4, mask [16]uint8, partitionID int, quality int) (enc [BC7BlockBytes]byte, sse int) {
	idxs0 := subsetTexels(mask, 0)
	idxs1 := subsetTexels(mask, 1)
	if len(idxs0) == 0 || len(idxs1) == 0 {
		return enc, 1 << 30
	}

	lo0, hi0 := rgbBounds(b, idxs0)
	lo1, hi1 := rgbBounds(b, idxs1)
	c00, c01 := hi0, lo0
	c10, c11 := hi1, lo1

	iterations := quality
	if iterations > 4 {
		iterations = 4
	}
	for i := 0; i < iterations; i++ {
		c00, c01 = refineRGB(b, idxs0, c00, c01)
		c10, c11 = refineRGB(b, idxs1, c10, c11)
	}

	pbit0, base00, base01 := bc7QuantizeSharedPBit(c00, c01, 6)
	pbit1, base10, base11 := bc7QuantizeSharedPBit(c10, c11, 6)

	palette0 := rgbPalette(base00, pbit0, base01, pbit0, bc7Weights3[:])
	palette1 := rgbPalette(base10, pbit1, base11, pbit1, bc7Weights3[:])

	idx0, sse0 := assignRGBIndices(b, idxs0, palette0)
	idx1, sse1 := assignRGBIndices(b, idxs1, palette1)
	sse = sse0 + sse1

	anchor0, anchor1 := idxs0[0], idxs1[0]
	if idx0[anchor0] >= 4 {
		base00, base01 = base01, base00
		for i, v := range idx0 {
			idx0[i] = 7 - v
		}
	}
	if idx1[anchor1] >= 4 {
		base10, base11 = base11, base10
		for i, v := range idx1 {
			idx1[i] = 7 - v
		}
	}

	w := &bitWriter{}
	w.WriteBits(1<<1, 2) // mode 1: "0 1".
	w.WriteBits(uint32(partitionID), 6)
	for ch := 0; ch < 3; ch++ {
		w.WriteBits(uint32(base00[ch]), 6)
	}
	for ch := 0; ch < 3; ch++ {
		w.WriteBits(uint32(base10[ch]), 6)
	}
	for ch := 0; ch < 3; ch++ {
		w.WriteBits(uint32(base01[ch]), 6)
	}
	for ch := 0; ch < 3; ch++ {
		w.WriteBits(uint32(base11[ch]), 6)
	}
	w.WriteBits(uint32(pbit0), 1)
	w.WriteBits(uint32(pbit1), 1)
	for i := 0; i < 16; i++ {
		var v uint8
		if mask[i] == 0 {
			v = idx0[i]
		} else {
			v = idx1[i]
		}
		if i == anchor0 || i == anchor1 {
			w.WriteBits(uint32(v), 2)
		} else {
			w.WriteBits(uint32(v), 3)
		}
	}
	return w.buf, sse
}

// encodeBC7Mode3 builds mode 3 (2 subsets, 7-bit per-endpoint-pbit
// endpoints, 2-bit indices): 4 (mode) + 6 (partition) + 84 (color) + 4
// (pbits) + 30 (indices, two anchors at 1 bit instead of 2) = 128 bits.
func encodeBC7Mode3(b *block4x4, mask [16]uint8, partitionID int, quality int) (enc [BC7BlockBytes]byte, sse int) {
	idxs0 := subsetTexels(mask, 0)
	idxs1 := subsetTexels(mask, 1)
	if len(idxs0) == 0 || len(idxs1) == 0 {
		return enc, 1 << 30
	}

	lo0, hi0 := rgbBounds(b, idxs0)
	lo1, hi1 := rgbBounds(b, idxs1)
	c00, c01 := hi0, lo0
	c10, c11 := hi1, lo1

	iterations := quality
	if iterations > 4 {
		iterations = 4
	}
	for i := 0; i < iterations; i++ {
		c00, c01 = refineRGB(b, idxs0, c00, c01)
		c10, c11 = refineRGB(b, idxs1, c10, c11)
	}

	p00, base00 := bc7QuantizeRGB(c00, 7)
	p01, base01 := bc7QuantizeRGB(c01, 7)
	p10, base10 := bc7QuantizeRGB(c10, 7)
	p11, base11 := bc7QuantizeRGB(c11, 7)

	palette0 := rgbPalette(base00, p00, base01, p01, bc7Weights2[:])
	palette1 := rgbPalette(base10, p10, base11, p11, bc7Weights2[:])

	idx0, sse0 := assignRGBIndices(b, idxs0, palette0)
	idx1, sse1 := assignRGBIndices(b, idxs1, palette1)
	sse = sse0 + sse1

	anchor0, anchor1 := idxs0[0], idxs1[0]
	if idx0[anchor0] >= 2 {
		base00, base01 = base01, base00
		p00, p01 = p01, p00
		for i, v := range idx0 {
			idx0[i] = 3 - v
		}
	}
	if idx1[anchor1] >= 2 {
		base10, base11 = base11, base10
		p10, p11 = p11, p10
		for i, v := range idx1 {
			idx1[i] = 3 - v
		}
	}

	w := &bitWriter{}
	w.WriteBits(1<<3, 4) // mode 3: "0 0 0 1".
	w.WriteBits(uint32(partitionID), 6)
	for ch := 0; ch < 3; ch++ {
		w.WriteBits(uint32(base00[ch]), 7)
	}
	for ch := 0; ch < 3; ch++ {
		w.WriteBits(uint32(base10[ch]), 7)
	}
	for ch := 0; ch < 3; ch++ {
		w.WriteBits(uint32(base01[ch]), 7)
	}
	for ch := 0; ch < 3; ch++ {
		w.WriteBits(uint32(base11[ch]), 7)
	}
	w.WriteBits(uint32(p00), 1)
	w.WriteBits(uint32(p10), 1)
	w.WriteBits(uint32(p01), 1)
	w.WriteBits(uint32(p11), 1)
	for i := 0; i < 16; i++ {
		var v uint8
		if mask[i] == 0 {
			v = idx0[i]
		} else {
			v = idx1[i]
		}
		if i == anchor0 || i == anchor1 {
			w.WriteBits(uint32(v), 1)
		} else {
			w.WriteBits(uint32(v), 2)
		}
	}
	return w.buf, sse
}

// bc7InitialEndpoints seeds the two endpoints from the per-channel
// bounding box, the same cheap range-fit used by EncodeBC1Block.
func bc7InitialEndpoints(b *block4x4) (lo, hi [4]uint8) {
	lo = [4]uint8{255, 255, 255, 255}
	hi = [4]uint8{0, 0, 0, 0}
	for i := 0; i < 16; i++ {
		px := [4]uint8{b.r[i], b.g[i], b.b[i], b.a[i]}
		for ch := 0; ch < 4; ch++ {
			if px[ch] < lo[ch] {
				lo[ch] = px[ch]
			}
			if px[ch] > hi[ch] {
				hi[ch] = px[ch]
			}
		}
	}
	return lo, hi
}

// bc7RefineEndpoints reassigns each texel to its nearer endpoint and recenters
// both endpoints on the mean of their assigned texels, one Lloyd-style
// relaxation step.
func bc7RefineEndpoints(b *block4x4, c0, c1 [4]uint8) (newC0, newC1 [4]uint8) {
	var sum0, sum1 [4]int
	var n0, n1 int
	for i := 0; i < 16; i++ {
		px := [4]uint8{b.r[i], b.g[i], b.b[i], b.a[i]}
		d0 := rgbaDistSq(px, c0)
		d1 := rgbaDistSq(px, c1)
		if d0 <= d1 {
			for ch := 0; ch < 4; ch++ {
				sum0[ch] += int(px[ch])
			}
			n0++
		} else {
			for ch := 0; ch < 4; ch++ {
				sum1[ch] += int(px[ch])
			}
			n1++
		}
	}
	newC0, newC1 = c0, c1
	if n0 > 0 {
		for ch := 0; ch < 4; ch++ {
			newC0[ch] = uint8(sum0[ch] / n0)
		}
	}
	if n1 > 0 {
		for ch := 0; ch < 4; ch++ {
			newC1[ch] = uint8(sum1[ch] / n1)
		}
	}
	return
}

func rgbaDistSq(a, b [4]uint8) int {
	sum := 0
	for ch := 0; ch < 4; ch++ {
		d := int(a[ch]) - int(b[ch])
		sum += d * d
	}
	return sum
}

// bc7Quantize splits an 8-bit-per-channel endpoint into a shared 1-bit pbit
// (voted by LSB majority across channels) and the four 7-bit bases such that
// (base<<1)|pbit reconstructs each channel exactly or within ±1.
func bc7Quantize(c [4]uint8) (pbit uint8, base [4]uint8) {
	votes := 0
	for ch := 0; ch < 4; ch++ {
		if c[ch]&1 != 0 {
			votes++
		}
	}
	if votes >= 2 {
		pbit = 1
	}
	for ch := 0; ch < 4; ch++ {
		v := int(c[ch]) - int(pbit)
		if v < 0 {
			v = 0
		}
		base[ch] = uint8(v >> 1)
		if base[ch] > 127 {
			base[ch] = 127
		}
	}
	return
}

// bc7Weights are the standard 4-bit (16-entry) BC7 interpolation weights,
// scaled to /64.
var bc7Weights = [16]int{0, 4, 9, 13, 17, 21, 26, 30, 34, 38, 43, 47, 51, 55, 60, 64}

func bc7InterpolatedPalette(base0 [4]uint8, p0 uint8, base1 [4]uint8, p1 uint8) (palette [16][4]uint8) {
	c0 := [4]uint8{base0[0]<<1 | p0, base0[1]<<1 | p0, base0[2]<<1 | p0, base0[3]<<1 | p0}
	c1 := [4]uint8{base1[0]<<1 | p1, base1[1]<<1 | p1, base1[2]<<1 | p1, base1[3]<<1 | p1}
	for i, w := range bc7Weights {
		for ch := 0; ch < 4; ch++ {
			v := (int(c0[ch])*(64-w) + int(c1[ch])*w + 32) >> 6
			palette[i][ch] = uint8(v)
		}
	}
	return
}

func bc7AssignIndices(b *block4x4, palette [16][4]uint8) [16]uint8 {
	var indices [16]uint8
	for i := 0; i < 16; i++ {
		px := [4]uint8{b.r[i], b.g[i], b.b[i], b.a[i]}
		best, bestDist := 0, 1<<30
		for p := 0; p < 16; p++ {
			d := rgbaDistSq(px, palette[p])
			if d < bestDist {
				best, bestDist = p, d
			}
		}
		indices[i] = uint8(best)
	}
	return indices
}

func paletteSSE(b *block4x4, indices [16]uint8, palette [16][4]uint8) int {
	sse := 0
	for i, idx := range indices {
		px := [4]uint8{b.r[i], b.g[i], b.b[i], b.a[i]}
		sse += rgbaDistSq(px, palette[idx])
	}
	return sse
}

// encodeBC7Mode6 builds mode 6 — a single subset, 8-bit-precision RGBA
// endpoints, 4-bit indices — quality refinement passes scaled the same way
// as the mode 1/3 subset fits.
func encodeBC7Mode6(b *block4x4, quality int) (enc [BC7BlockBytes]byte, sse int) {
	c0, c1 := bc7InitialEndpoints(b)
	iterations := quality
	if iterations > 4 {
		iterations = 4
	}
	for i := 0; i < iterations; i++ {
		c0, c1 = bc7RefineEndpoints(b, c0, c1)
	}

	p0, base0 := bc7Quantize(c0)
	p1, base1 := bc7Quantize(c1)

	palette := bc7InterpolatedPalette(base0, p0, base1, p1)
	indices := bc7AssignIndices(b, palette)
	sse = paletteSSE(b, indices, palette)

	if indices[0] >= 8 {
		base0, base1 = base1, base0
		p0, p1 = p1, p0
		for i := range indices {
			indices[i] = 15 - indices[i]
		}
	}

	w := &bitWriter{}
	w.WriteBits(1<<6, 7) // mode 6: six zero bits then a one bit.
	for ch := 0; ch < 4; ch++ {
		w.WriteBits(uint32(base0[ch]), 7)
		w.WriteBits(uint32(base1[ch]), 7)
	}
	w.WriteBits(uint32(p0), 1)
	w.WriteBits(uint32(p1), 1)
	for i, idx := range indices {
		if i == 0 {
			w.WriteBits(uint32(idx), 3) // anchor index: MSB is implicit.
		} else {
			w.WriteBits(uint32(idx), 4)
		}
	}
	return w.buf, sse
}

// bitWriter packs bits LSB-first into a fixed 16-byte BC7 block, the bit
// ordering the format's mode/endpoint/index fields are defined in.
type bitWriter struct {
	buf [BC7BlockBytes]byte
	pos int
}

func (w *bitWriter) WriteBits(value uint32, nbits int) {
	for i := 0; i < nbits; i++ {
		if (value>>uint(i))&1 != 0 {
			w.buf[w.pos/8] |= 1 << uint(w.pos%8)
		}
		w.pos++
	}
}
