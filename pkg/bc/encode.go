package bc

import (
	"fmt"
	"image"

	"github.com/woozymasta/bcn"

	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/imaging"
)

// extractBlock reads the 4x4 texel neighborhood at (bx, by) (in block
// coordinates) from a padded Image; reads past the logical width/height fall
// within the don't-care padding region and are included verbatim, matching
// the block-granular decode loop in cmd/texconv/main.go.
func extractBlock(im *imaging.Image, bx, by int) *block4x4 {
	var blk block4x4
	for py := 0; py < BlockSize; py++ {
		for px := 0; px < BlockSize; px++ {
			x := bx*BlockSize + px
			y := by*BlockSize + py
			r, g, b, a := im.At(x, y)
			i := py*BlockSize + px
			blk.r[i], blk.g[i], blk.b[i], blk.a[i] = r, g, b, a
		}
	}
	return &blk
}

// asRGBAView wraps im's padded buffer as an *image.RGBA for bcn's
// image.Image-based API, mirroring pkg/filter's asRGBA adapter but over the
// padded (x4-aligned) extent rather than the logical one — bcn's own block
// grid must cover exactly the padding pkg/imaging already allocated.
func asRGBAView(im *imaging.Image) *image.RGBA {
	return &image.RGBA{
		Pix:    im.Buffer(),
		Stride: im.PaddedWidth() * imaging.BytesPerPixel,
		Rect:   image.Rect(0, 0, im.PaddedWidth(), im.PaddedHeight()),
	}
}

// BlockBytes returns the encoded size in bytes of one 4x4 block for format.
func BlockBytes(format config.Format) (int, error) {
	switch format {
	case config.FormatBC1:
		return BC1BlockBytes, nil
	case config.FormatBC3:
		return BC3BlockBytes, nil
	case config.FormatBC7:
		return BC7BlockBytes, nil
	default:
		return 0, fmt.Errorf("format %s has no block encoding", format)
	}
}

// LinearSize returns the total encoded byte length of im under format. BC1
// and BC3 ask github.com/woozymasta/bcn directly, the same library that
// performs the encode, so the reported size always matches what
// encodeWithBCN actually produces. BC7 has no bcn.Format counterpart (see
// EncodeBC7Block's doc comment), so it falls back to the fixed block-grid
// arithmetic shared with the other hand-rolled format.
func LinearSize(im *imaging.Image, format config.Format) (int, error) {
	switch format {
	case config.FormatBC1:
		return bcn.ExpectedDataLength(bcn.FormatDXT1, im.Width(), im.Height()), nil
	case config.FormatBC3:
		return bcn.ExpectedDataLength(bcn.FormatDXT5, im.Width(), im.Height()), nil
	case config.FormatBC7:
		blockBytes, err := BlockBytes(format)
		if err != nil {
			return 0, err
		}
		return (im.PaddedWidth() / BlockSize) * (im.PaddedHeight() / BlockSize) * blockBytes, nil
	default:
		return 0, fmt.Errorf("format %s has no block encoding", format)
	}
}

// EncodeImage compresses a single surface into a contiguous buffer under
// format. BC3 and the common (non-punch-through) BC1 case delegate whole-image
// to github.com/woozymasta/bcn, the pure-Go BC encoder also used by
// WoozyMasta-edds, WoozyMasta-paa and WoozyMasta-imageset-packer in the
// retrieved pack. Two paths stay hand-rolled block-by-block, each for a
// reason bcn's API can't cover:
//
//   - BC1 with punchThroughAlpha: the alpha-black heuristic (any texel under
//     alphaThreshold forces the 1-bit-alpha palette) is a per-pixel decision
//     specific to this project's config.AlphaBlack option, not a knob bcn
//     exposes.
//   - BC7: no bcn.Format constant for BC7 appears anywhere in the retrieved
//     pack (bcn.Format only ever shows FormatDXT1/FormatDXT5/FormatBGRA8 in
//     the example call sites), and BC7 additionally needs the quality-scaled
//     mode 1/3 partition search EncodeBC7Block implements.
func EncodeImage(im *imaging.Image, format config.Format, quality int, punchThroughAlpha bool, alphaThreshold uint8) ([]byte, error) {
	switch format {
	case config.FormatBC1:
		if punchThroughAlpha {
			return encodeBlockwise(im, format, quality, punchThroughAlpha, alphaThreshold)
		}
		return encodeWithBCN(im, bcn.FormatDXT1, quality)
	case config.FormatBC3:
		return encodeWithBCN(im, bcn.FormatDXT5, quality)
	case config.FormatBC7:
		return encodeBlockwise(im, format, quality, punchThroughAlpha, alphaThreshold)
	default:
		return nil, fmt.Errorf("format %s has no block encoding", format)
	}
}

// encodeWithBCN delegates an entire surface to bcn.EncodeImageWithOptions,
// translating this project's quality level (0-4) to bcn's own Quality knob.
func encodeWithBCN(im *imaging.Image, format bcn.Format, quality int) ([]byte, error) {
	data, _, _, err := bcn.EncodeImageWithOptions(asRGBAView(im), format, &bcn.EncodeOptions{
		Quality: quality,
	})
	if err != nil {
		return nil, fmt.Errorf("bcn encode: %w", err)
	}
	return data, nil
}

// encodeBlockwise runs the hand-rolled per-block encoders (BC1 alpha-black
// path, BC7) over every 4x4 block of im's padded extent.
func encodeBlockwise(im *imaging.Image, format config.Format, quality int, punchThroughAlpha bool, alphaThreshold uint8) ([]byte, error) {
	blockBytes, err := BlockBytes(format)
	if err != nil {
		return nil, err
	}
	blocksX := im.PaddedWidth() / BlockSize
	blocksY := im.PaddedHeight() / BlockSize
	out := make([]byte, 0, blocksX*blocksY*blockBytes)

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			blk := extractBlock(im, bx, by)
			switch format {
			case config.FormatBC1:
				enc := EncodeBC1Block(blk, punchThroughAlpha, alphaThreshold)
				out = append(out, enc[:]...)
			case config.FormatBC7:
				enc := EncodeBC7Block(blk, quality)
				out = append(out, enc[:]...)
			}
		}
	}
	return out, nil
}
