// Package filter implements the resampling kernels used by the Scale and
// Mipmap stages: nearest, linear and cubic filters are
// built on golang.org/x/image/draw's Scaler implementations (the same
// package the pack's dicomforge reference file reaches for when resizing
// raster images), while area averaging, Lanczos and the Gaussian mipmap
// pre-blur are from-scratch weighted-kernel convolutions grounded on
// rklaeser-studyguide.parallel/pkg/blur's GenerateGaussianKernel /
// ApplyBlurToTile accumulation style (see DESIGN.md).
//
// Filter choice is a tagged variant dispatched once per image, never per pixel.
package filter

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/imaging"
)

// DefaultMipmapBlur is the pre-filter blur factor applied during mipmap
// generation unless overridden.
const DefaultMipmapBlur = 0.55

// asRGBA wraps an imaging.Image's padded buffer as an *image.RGBA limited to
// its logical (unpadded) bounds, so x/image/draw scalers read/write only the
// meaningful pixels and never touch the don't-care padding region.
func asRGBA(im *imaging.Image) *image.RGBA {
	return &image.RGBA{
		Pix:    im.Buffer(),
		Stride: im.PaddedWidth() * imaging.BytesPerPixel,
		Rect:   image.Rect(0, 0, im.Width(), im.Height()),
	}
}

func scalerFor(ft config.FilterType) draw.Scaler {
	switch ft {
	case config.FilterNearest:
		return draw.NearestNeighbor
	case config.FilterLinear:
		return draw.ApproxBiLinear
	case config.FilterCubic:
		return draw.CatmullRom
	default:
		return nil // area and lanczos are handled by hand-written kernels below.
	}
}

// Resample fills dst (already allocated at the target dimensions) from src
// using the named filter. RGB and alpha are resampled together when the
// underlying implementation is x/image/draw (which treats RGBA uniformly),
// and as explicitly separate passes for the hand-written area/lanczos paths,
// which resample the alpha channel independently from RGB.
func Resample(dst, src *imaging.Image, ft config.FilterType) {
	if s := scalerFor(ft); s != nil {
		dstImg := asRGBA(dst)
		s.Scale(dstImg, dstImg.Bounds(), asRGBA(src), image.Rect(0, 0, src.Width(), src.Height()), draw.Src, nil)
		return
	}

	switch ft {
	case config.FilterArea:
		resampleArea(dst, src)
	case config.FilterLanczos:
		resampleLanczos(dst, src, 3)
	default:
		resampleArea(dst, src)
	}
}

// resampleArea implements box-filter area averaging: each destination pixel
// is the average of the source pixels whose footprint it covers. Grounded on
// the box-filter accumulation loop in heisthecat31-evrFileTools's
// cmd/texconv/encoder.go resizeImage, generalized to treat alpha as an
// independent channel pass.
func resampleArea(dst, src *imaging.Image) {
	sw, sh := src.Width(), src.Height()
	dw, dh := dst.Width(), dst.Height()
	if dw == 0 || dh == 0 {
		return
	}
	scaleX := float64(sw) / float64(dw)
	scaleY := float64(sh) / float64(dh)

	for dy := 0; dy < dh; dy++ {
		sy0 := int(float64(dy) * scaleY)
		sy1 := int(float64(dy+1) * scaleY)
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		if sy1 > sh {
			sy1 = sh
		}
		for dx := 0; dx < dw; dx++ {
			sx0 := int(float64(dx) * scaleX)
			sx1 := int(float64(dx+1) * scaleX)
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}
			if sx1 > sw {
				sx1 = sw
			}

			var rSum, gSum, bSum, aSum, n float64
			for sy := sy0; sy < sy1; sy++ {
				for sx := sx0; sx < sx1; sx++ {
					r, g, b, a := src.At(sx, sy)
					rSum += float64(r)
					gSum += float64(g)
					bSum += float64(b)
					aSum += float64(a)
					n++
				}
			}
			if n == 0 {
				continue
			}
			dst.Set(dx, dy,
				uint8(rSum/n+0.5), uint8(gSum/n+0.5), uint8(bSum/n+0.5), uint8(aSum/n+0.5))
		}
	}
}

// lanczosKernel evaluates the normalized sinc windowed by a second sinc of
// support `a` lobes (3-lobe Lanczos).
func lanczosKernel(x float64, a int) float64 {
	if x == 0 {
		return 1
	}
	fa := float64(a)
	if x < -fa || x > fa {
		return 0
	}
	piX := math.Pi * x
	return fa * math.Sin(piX) * math.Sin(piX/fa) / (piX * piX)
}

// resampleLanczos implements a separable-in-spirit (computed per destination
// pixel, not two-pass) Lanczos resampler with `a` lobes of support, with
// alpha resampled independently from RGB.
func resampleLanczos(dst, src *imaging.Image, a int) {
	sw, sh := src.Width(), src.Height()
	dw, dh := dst.Width(), dst.Height()
	if dw == 0 || dh == 0 || sw == 0 || sh == 0 {
		return
	}
	scaleX := float64(sw) / float64(dw)
	scaleY := float64(sh) / float64(dh)
	// When downsampling, widen the kernel support proportionally to avoid
	// aliasing, matching the usual Lanczos-resize convention.
	supportX := math.Max(1, scaleX) * float64(a)
	supportY := math.Max(1, scaleY) * float64(a)

	for dy := 0; dy < dh; dy++ {
		srcY := (float64(dy) + 0.5) * scaleY - 0.5
		y0 := int(math.Floor(srcY - supportY))
		y1 := int(math.Ceil(srcY + supportY))
		for dx := 0; dx < dw; dx++ {
			srcX := (float64(dx) + 0.5) * scaleX - 0.5
			x0 := int(math.Floor(srcX - supportX))
			x1 := int(math.Ceil(srcX + supportX))

			var rSum, gSum, bSum, aSum, wSum float64
			for sy := y0; sy <= y1; sy++ {
				cy := clampInt(sy, 0, sh-1)
				wy := lanczosKernel((float64(sy)-srcY)/math.Max(1, scaleY), a)
				if wy == 0 {
					continue
				}
				for sx := x0; sx <= x1; sx++ {
					cx := clampInt(sx, 0, sw-1)
					wx := lanczosKernel((float64(sx)-srcX)/math.Max(1, scaleX), a)
					w := wx * wy
					if w == 0 {
						continue
					}
					r, g, b, al := src.At(cx, cy)
					rSum += float64(r) * w
					gSum += float64(g) * w
					bSum += float64(b) * w
					aSum += float64(al) * w
					wSum += w
				}
			}
			if wSum == 0 {
				continue
			}
			dst.Set(dx, dy,
				clampByte(rSum/wSum), clampByte(gSum/wSum), clampByte(bSum/wSum), clampByte(aSum/wSum))
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
