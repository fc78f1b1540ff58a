package bc

import (
	"testing"

	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/imaging"
)

func solidBlock(r, g, b, a uint8) *block4x4 {
	blk := &block4x4{}
	for i := 0; i < 16; i++ {
		blk.r[i], blk.g[i], blk.b[i], blk.a[i] = r, g, b, a
	}
	return blk
}

func TestEncodeBC1BlockSize(t *testing.T) {
	blk := solidBlock(200, 100, 50, 255)
	enc := EncodeBC1Block(blk, true, 128)
	if len(enc) != BC1BlockBytes {
		t.Fatalf("got %d bytes, want %d", len(enc), BC1BlockBytes)
	}
}

func TestEncodeBC1SolidColorRoundTrips(t *testing.T) {
	blk := solidBlock(200, 100, 50, 255)
	enc := EncodeBC1Block(blk, false, 128)

	c0 := uint16(enc[0]) | uint16(enc[1])<<8
	c1 := uint16(enc[2]) | uint16(enc[3])<<8
	r0, g0, b0 := unpack565(c0)
	r1, g1, b1 := unpack565(c1)

	// A flat block should decode to (approximately) the same color from
	// either endpoint, within RGB565 quantization error.
	if absDiff(r0, 200) > 8 && absDiff(r1, 200) > 8 {
		t.Errorf("red endpoint too far from source: got %d/%d want ~200", r0, r1)
	}
	if absDiff(g0, 100) > 8 && absDiff(g1, 100) > 8 {
		t.Errorf("green endpoint too far from source: got %d/%d want ~100", g0, g1)
	}
	if absDiff(b0, 50) > 8 && absDiff(b1, 50) > 8 {
		t.Errorf("blue endpoint too far from source: got %d/%d want ~50", b0, b1)
	}
}

func TestEncodeBC1PunchThroughForcesTransparentIndex(t *testing.T) {
	blk := &block4x4{}
	for i := 0; i < 16; i++ {
		blk.r[i], blk.g[i], blk.b[i] = 255, 0, 0
		blk.a[i] = 255
	}
	blk.a[5] = 0 // one fully transparent texel

	enc := EncodeBC1Block(blk, true, 128)
	c0 := uint16(enc[0]) | uint16(enc[1])<<8
	c1 := uint16(enc[2]) | uint16(enc[3])<<8
	if c0 > c1 {
		t.Fatalf("punch-through alpha requires c0 <= c1, got c0=%d c1=%d", c0, c1)
	}

	indices := uint32(enc[4]) | uint32(enc[5])<<8 | uint32(enc[6])<<16 | uint32(enc[7])<<24
	idx5 := (indices >> (2 * 5)) & 3
	if idx5 != 3 {
		t.Fatalf("expected transparent texel to map to palette index 3, got %d", idx5)
	}
}

func TestEncodeBC7BlockSize(t *testing.T) {
	blk := solidBlock(10, 20, 30, 128)
	enc := EncodeBC7Block(blk, 4)
	if len(enc) != BC7BlockBytes {
		t.Fatalf("got %d bytes, want %d", len(enc), BC7BlockBytes)
	}
}

func bc7Mode(enc [BC7BlockBytes]byte) int {
	for bit := 0; bit < 8; bit++ {
		if enc[0]&(1<<uint(bit)) != 0 {
			return bit
		}
	}
	return -1
}

func TestEncodeBC7ModeHeaderBit(t *testing.T) {
	// Non-opaque alpha (a=128) can only be represented by mode 6 here: modes
	// 1/3 carry no alpha channel at all, so the alpha gate must force mode 6
	// regardless of quality.
	blk := solidBlock(10, 20, 30, 128)
	enc := EncodeBC7Block(blk, 2)
	if mode := bc7Mode(enc); mode != 6 {
		t.Fatalf("expected mode 6 for a block with non-opaque alpha, got mode %d", mode)
	}
}

func TestEncodeBC7SmoothOpaqueBlockFallsBackToMode6(t *testing.T) {
	blk := solidBlock(10, 20, 30, 255)
	enc := EncodeBC7Block(blk, 4)
	if mode := bc7Mode(enc); mode != 6 {
		t.Fatalf("expected mode 6 for a flat opaque block, got mode %d", mode)
	}
}

func TestEncodeBC7EdgeBlockUsesPartitionedMode(t *testing.T) {
	blk := &block4x4{}
	for i := 0; i < 16; i++ {
		blk.a[i] = 255
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			i := y*4 + x
			if x < 2 {
				blk.r[i], blk.g[i], blk.b[i] = 255, 0, 0
			} else {
				blk.r[i], blk.g[i], blk.b[i] = 0, 0, 255
			}
		}
	}

	enc := EncodeBC7Block(blk, 4)
	mode := bc7Mode(enc)
	if mode != 1 && mode != 3 {
		t.Fatalf("expected a partitioned mode (1 or 3) for a hard two-color edge block, got mode %d", mode)
	}
}

func TestEncodeBC7QualityRangeProducesValidBlocks(t *testing.T) {
	blk := solidBlock(5, 250, 128, 255)
	for q := 0; q <= 4; q++ {
		enc := EncodeBC7Block(blk, q)
		if len(enc) != BC7BlockBytes {
			t.Fatalf("quality %d: got %d bytes, want %d", q, len(enc), BC7BlockBytes)
		}
	}
}

func TestLinearSizeMatchesBlockGrid(t *testing.T) {
	chain := imaging.NewMipmapChain(8, 8, false)
	size, err := LinearSize(chain.Base(), config.FormatBC1)
	if err != nil {
		t.Fatalf("LinearSize: %v", err)
	}
	// 8x8 = 2x2 blocks, BC1 = 8 bytes/block.
	if size != 2*2*BC1BlockBytes {
		t.Fatalf("got %d, want %d", size, 2*2*BC1BlockBytes)
	}
}

func TestEncodeImageProducesExpectedLength(t *testing.T) {
	chain := imaging.NewMipmapChain(8, 8, false)
	base := chain.Base()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			base.Set(x, y, uint8(x*16), uint8(y*16), 128, 255)
		}
	}
	out, err := EncodeImage(base, config.FormatBC3, 3, false, 0)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	if len(out) != 2*2*BC3BlockBytes {
		t.Fatalf("got %d bytes, want %d", len(out), 2*2*BC3BlockBytes)
	}
}

func TestEncodeImageBC7UsesBlockwisePath(t *testing.T) {
	chain := imaging.NewMipmapChain(8, 8, false)
	base := chain.Base()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			base.Set(x, y, uint8(x*16), uint8(y*16), 128, 255)
		}
	}
	out, err := EncodeImage(base, config.FormatBC7, 2, false, 0)
	if err != nil {
		t.Fatalf("EncodeImage: %v", err)
	}
	if len(out) != 2*2*BC7BlockBytes {
		t.Fatalf("got %d bytes, want %d", len(out), 2*2*BC7BlockBytes)
	}
}

func absDiff(a uint8, b int) int {
	d := int(a) - b
	if d < 0 {
		return -d
	}
	return d
}
