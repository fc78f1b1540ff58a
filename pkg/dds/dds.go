// Package dds serializes compressed mip chains into the DDS container format.
// BC1 and BC3 headers are assembled by github.com/woozymasta/bcn — the same
// pure-Go library pkg/bc delegates block encoding to — since bcn already
// knows how to emit a standards-compliant legacy-FourCC DDS_HEADER for the
// formats it supports. BC7 has no bcn.Format counterpart in the retrieved
// pack, so its DX10-extended header is still hand-assembled here, grounded
// on heisthecat31-evrFileTools's pkg/texture.createDDSHeader/
// calculateLinearSize.
package dds

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/woozymasta/bcn"

	"github.com/goopsie/pngtodds/pkg/config"
	"github.com/goopsie/pngtodds/pkg/imaging"
)

const (
	ddsMagic        = 0x20534444 // "DDS "
	ddsHeaderSize   = 124
	pixelFormatSize = 32

	headerFlagsCaps        = 0x1
	headerFlagsHeight      = 0x2
	headerFlagsWidth       = 0x4
	headerFlagsPixelFormat = 0x1000
	headerFlagsMipmapCount = 0x20000
	headerFlagsLinearSize  = 0x80000

	surfaceFlagsTexture = 0x1000
	surfaceFlagsMipmap  = 0x400000

	pixelFormatFourCC = 0x4

	fourCCDXT1 = 0x31545844 // "DXT1"
	fourCCDXT5 = 0x35545844 // "DXT5"
	fourCCDX10 = 0x30315844 // "DX10"

	dxgiFormatBC7Unorm     = 98
	resourceDimensionTex2D = 3
)

// blockBytesPerFormat mirrors pkg/bc's block sizes, duplicated here (rather
// than imported) because dds must remain decodable from just width/height/
// format/mipCount without constructing an encoded Image.
func blockBytesPerFormat(format config.Format) (int, error) {
	switch format {
	case config.FormatBC1:
		return 8, nil
	case config.FormatBC3, config.FormatBC7:
		return 16, nil
	default:
		return 0, fmt.Errorf("format %s has no DDS block encoding", format)
	}
}

// bcnFormatFor maps the formats bcn itself knows how to encode. BC7 has no
// entry: bcn.Format only ever appears as FormatDXT1/FormatDXT5/FormatBGRA8
// across the retrieved pack's call sites, with no FormatBC7 anywhere.
func bcnFormatFor(format config.Format) (bcn.Format, error) {
	switch format {
	case config.FormatBC1:
		return bcn.FormatDXT1, nil
	case config.FormatBC3:
		return bcn.FormatDXT5, nil
	default:
		return bcn.FormatUnknown, fmt.Errorf("format %s has no bcn mapping", format)
	}
}

// linearSize is the dwPitchOrLinearSize field: total bytes of the base
// level. BC1/BC3 ask bcn for the figure it will itself produce; BC7 uses the
// fixed block-grid arithmetic its hand-rolled encoder follows.
func linearSize(width, height int, format config.Format) (int, error) {
	switch format {
	case config.FormatBC1:
		return bcn.ExpectedDataLength(bcn.FormatDXT1, width, height), nil
	case config.FormatBC3:
		return bcn.ExpectedDataLength(bcn.FormatDXT5, width, height), nil
	case config.FormatBC7:
		blockBytes, err := blockBytesPerFormat(format)
		if err != nil {
			return 0, err
		}
		blocksWide := (width + 3) / 4
		blocksHigh := (height + 3) / 4
		return blocksWide * blocksHigh * blockBytes, nil
	default:
		return 0, fmt.Errorf("format %s has no DDS block encoding", format)
	}
}

// WriteHeader appends a complete DDS header (plus DX10 extension when format
// is BC7) for a mip chain of the given base dimensions and level count to dst,
// returning the extended slice.
func WriteHeader(dst []byte, width, height, mipCount int, format config.Format) ([]byte, error) {
	switch format {
	case config.FormatBC1, config.FormatBC3:
		return writeHeaderViaBCN(dst, width, height, mipCount, format)
	case config.FormatBC7:
		return writeHeaderDX10(dst, width, height, mipCount)
	default:
		return nil, fmt.Errorf("PNG passthrough output has no DDS header")
	}
}

// writeHeaderViaBCN builds the magic + DDS_HEADER for BC1/BC3 through bcn's
// own writer, rather than hand-assembling the legacy FourCC layout a second
// time.
func writeHeaderViaBCN(dst []byte, width, height, mipCount int, format config.Format) ([]byte, error) {
	bcnFormat, err := bcnFormatFor(format)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := bcn.WriteDDSMagic(&buf); err != nil {
		return nil, fmt.Errorf("write DDS magic: %w", err)
	}
	header := &bcn.Header{
		Width:       uint32(width),
		Height:      uint32(height),
		MipMapCount: uint32(mipCount),
		Format:      bcnFormat,
	}
	if err := bcn.WriteDDSHeader(&buf, header); err != nil {
		return nil, fmt.Errorf("write DDS header: %w", err)
	}
	return append(dst, buf.Bytes()...), nil
}

// writeHeaderDX10 hand-assembles the magic + DDS_HEADER + DX10 extension for
// BC7, the one format bcn can't write a header for.
func writeHeaderDX10(dst []byte, width, height, mipCount int) ([]byte, error) {
	format := config.FormatBC7
	lsize, err := linearSize(width, height, format)
	if err != nil {
		return nil, err
	}

	headerLen := 4 + ddsHeaderSize + 20 // +20 for the DX10 extension.
	header := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(header[0:4], ddsMagic)
	off := 4

	binary.LittleEndian.PutUint32(header[off:off+4], ddsHeaderSize)
	off += 4

	flags := uint32(headerFlagsCaps | headerFlagsHeight | headerFlagsWidth |
		headerFlagsPixelFormat | headerFlagsLinearSize)
	if mipCount > 1 {
		flags |= headerFlagsMipmapCount
	}
	binary.LittleEndian.PutUint32(header[off:off+4], flags)
	off += 4

	binary.LittleEndian.PutUint32(header[off:off+4], uint32(height))
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], uint32(width))
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], uint32(lsize))
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], 0) // dwDepth, unused.
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], uint32(mipCount))
	off += 4
	off += 44 // dwReserved1[11]

	binary.LittleEndian.PutUint32(header[off:off+4], pixelFormatSize)
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], pixelFormatFourCC)
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], fourCCDX10)
	off += 4
	off += 20 // dwRGBBitCount + 4 bitmasks, all zero for a FourCC pixel format.

	caps := uint32(surfaceFlagsTexture)
	if mipCount > 1 {
		caps |= surfaceFlagsMipmap
	}
	binary.LittleEndian.PutUint32(header[off:off+4], caps)
	off += 4
	off += 12 // dwCaps2/3/4
	off += 4  // dwReserved2

	binary.LittleEndian.PutUint32(header[off:off+4], dxgiFormatBC7Unorm)
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], resourceDimensionTex2D)
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], 0) // miscFlag
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], 1) // arraySize
	off += 4
	binary.LittleEndian.PutUint32(header[off:off+4], 0) // miscFlags2

	return append(dst, header...), nil
}

// Encode builds a complete .dds file: header followed by every level's
// encoded block data, base level first, matching the mip chain's own
// ordering.
func Encode(chain *imaging.MipmapImage, format config.Format, encodedLevels [][]byte) ([]byte, error) {
	if len(encodedLevels) != chain.Count() {
		return nil, fmt.Errorf("encoded level count %d does not match chain level count %d", len(encodedLevels), chain.Count())
	}
	out, err := WriteHeader(nil, chain.Base().Width(), chain.Base().Height(), chain.Count(), format)
	if err != nil {
		return nil, err
	}
	for _, lvl := range encodedLevels {
		out = append(out, lvl...)
	}
	return out, nil
}
