package imaging

import (
	"bytes"
	"image"
	"image/png"
)

// EncodePNG serializes an Image's logical (unpadded) region to PNG bytes, the
// inverse of Decode's copyPixels, used for the format=png passthrough path
// where no block compression runs — mirroring cmd/texconv's own
// png.Encode(outFile, img) write-out step.
func EncodePNG(im *Image) ([]byte, error) {
	rgba := image.NewRGBA(image.Rect(0, 0, im.Width(), im.Height()))
	for y := 0; y < im.Height(); y++ {
		for x := 0; x < im.Width(); x++ {
			r, g, b, a := im.At(x, y)
			o := rgba.PixOffset(x, y)
			rgba.Pix[o], rgba.Pix[o+1], rgba.Pix[o+2], rgba.Pix[o+3] = r, g, b, a
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
