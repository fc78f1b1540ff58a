package filter

import (
	"math"

	"github.com/goopsie/pngtodds/pkg/imaging"
)

// GaussianKernel returns a normalized, size x size 2D Gaussian kernel with
// sigma derived from size (sigma = size/3, center = size/2), the exact
// formula used by rklaeser-studyguide.parallel/pkg/blur.GenerateGaussianKernel.
func GaussianKernel(size int) [][]float64 {
	kernel := make([][]float64, size)
	sigma := float64(size) / 3.0
	center := size / 2
	sum := 0.0

	for i := 0; i < size; i++ {
		kernel[i] = make([]float64, size)
		for j := 0; j < size; j++ {
			x := float64(i - center)
			y := float64(j - center)
			kernel[i][j] = math.Exp(-(x*x+y*y)/(2*sigma*sigma)) / (2 * math.Pi * sigma * sigma)
			sum += kernel[i][j]
		}
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			kernel[i][j] /= sum
		}
	}
	return kernel
}

// kernelSizeForBlur maps the blur factor (default 0.55) to an odd kernel
// width: a wider kernel for a larger blur factor, always at least 3x3 so the
// pre-filter has some effect even at the smallest useful setting.
func kernelSizeForBlur(blur float64) int {
	if blur <= 0 {
		return 0
	}
	size := int(math.Round(blur*6)) | 1 // force odd
	if size < 3 {
		size = 3
	}
	return size
}

// Blur applies a 2D Gaussian convolution to src, writing into dst (same
// logical dimensions), with RGB and alpha accumulated as independent weighted
// sums — the same clamp-to-edge boundary handling and weighted-accumulation
// loop shape as ApplyBlurToTile, adapted from tile-local [][]color.RGBA
// slices to the padded Image buffer this package operates on directly.
func Blur(dst, src *imaging.Image, blurFactor float64) {
	size := kernelSizeForBlur(blurFactor)
	if size == 0 {
		copyImage(dst, src)
		return
	}
	kernel := GaussianKernel(size)
	offset := size / 2

	w, h := src.Width(), src.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var rSum, gSum, bSum, aSum float64
			for ky := 0; ky < size; ky++ {
				for kx := 0; kx < size; kx++ {
					sx := clampInt(x+kx-offset, 0, w-1)
					sy := clampInt(y+ky-offset, 0, h-1)
					r, g, b, a := src.At(sx, sy)
					weight := kernel[ky][kx]
					rSum += float64(r) * weight
					gSum += float64(g) * weight
					bSum += float64(b) * weight
					aSum += float64(a) * weight
				}
			}
			dst.Set(x, y, clampByte(rSum), clampByte(gSum), clampByte(bSum), clampByte(aSum))
		}
	}
}

func copyImage(dst, src *imaging.Image) {
	w, h := src.Width(), src.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := src.At(x, y)
			dst.Set(x, y, r, g, b, a)
		}
	}
}
