package imaging

import "testing"

func TestPad4(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8, 8: 8}
	for in, want := range cases {
		if got := Pad4(in); got != want {
			t.Errorf("Pad4(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestMipDims(t *testing.T) {
	w, h := MipDims(8, 8)
	if w != 4 || h != 4 {
		t.Fatalf("got %dx%d, want 4x4", w, h)
	}
	w, h = MipDims(1, 1)
	if w != 1 || h != 1 {
		t.Fatalf("MipDims(1,1) should clamp at 1x1, got %dx%d", w, h)
	}
	w, h = MipDims(1, 8)
	if w != 1 || h != 4 {
		t.Fatalf("got %dx%d, want 1x4", w, h)
	}
}

func TestNewMipmapChainNoMipmaps(t *testing.T) {
	mi := NewMipmapChain(8, 8, false)
	if mi.Count() != 1 {
		t.Fatalf("expected 1 level without mipmaps, got %d", mi.Count())
	}
	if err := mi.Validate(8, 8); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNewMipmapChainFullChain(t *testing.T) {
	mi := NewMipmapChain(8, 8, true)
	// 8x8 -> 4x4 -> 2x2 -> 1x1 : 4 levels.
	if mi.Count() != 4 {
		t.Fatalf("expected 4 levels for 8x8, got %d", mi.Count())
	}
	last := mi.Mip(mi.Count() - 1)
	if last.Width() != 1 || last.Height() != 1 {
		t.Fatalf("expected final level 1x1, got %dx%d", last.Width(), last.Height())
	}
	if err := mi.Validate(8, 8); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNewMipmapChainNonSquareOneByN(t *testing.T) {
	// 1xN inputs have exactly one mipmap level.
	mi := NewMipmapChain(1, 8, true)
	if mi.Count() != 1 {
		t.Fatalf("expected single-level chain for 1x8 input, got %d", mi.Count())
	}
}

func TestMipmapImageSetAt(t *testing.T) {
	mi := NewMipmapChain(3, 3, false)
	base := mi.Base()
	if base.PaddedWidth() != 4 || base.PaddedHeight() != 4 {
		t.Fatalf("expected padded 4x4, got %dx%d", base.PaddedWidth(), base.PaddedHeight())
	}
	base.Set(1, 1, 10, 20, 30, 255)
	r, g, b, a := base.At(1, 1)
	if r != 10 || g != 20 || b != 30 || a != 255 {
		t.Fatalf("roundtrip mismatch: got (%d,%d,%d,%d)", r, g, b, a)
	}
}

func TestAllocationSizeMatchesSumOfLevels(t *testing.T) {
	mi := NewMipmapChain(17, 9, true)
	sum := 0
	for _, m := range mi.Mips() {
		sum += m.Size()
	}
	if sum != mi.AllocationSize() {
		t.Fatalf("sum %d != allocation %d", sum, mi.AllocationSize())
	}
}
