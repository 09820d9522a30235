package uiauto

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math/bits"
)

// CF_DIB clipboard data is a BITMAPINFO block: an info header, an optional
// palette or channel masks, then the pixel rows, bottom-up unless the
// height is negative. PACS viewers hand over 8-bit palettized or 24/32-bit
// BI_RGB bitmaps; those plus 32-bit BI_BITFIELDS are what DecodeDIB
// accepts.

const (
	compressionRGB       = 0
	compressionBitfields = 3
)

// DecodeDIB decodes a CF_DIB clipboard payload into an image.
func DecodeDIB(data []byte) (image.Image, error) {
	if len(data) < 40 {
		return nil, fmt.Errorf("dib: %d bytes is too short for an info header", len(data))
	}
	hdrSize := int(binary.LittleEndian.Uint32(data[0:4]))
	if hdrSize < 40 || hdrSize > len(data) {
		return nil, fmt.Errorf("dib: implausible header size %d", hdrSize)
	}
	width := int(int32(binary.LittleEndian.Uint32(data[4:8])))
	rawHeight := int(int32(binary.LittleEndian.Uint32(data[8:12])))
	bpp := int(binary.LittleEndian.Uint16(data[14:16]))
	compression := binary.LittleEndian.Uint32(data[16:20])
	clrUsed := int(binary.LittleEndian.Uint32(data[32:36]))

	height := rawHeight
	bottomUp := true
	if height < 0 {
		height = -height
		bottomUp = false
	}
	if width <= 0 || height == 0 {
		return nil, fmt.Errorf("dib: bad dimensions %dx%d", width, rawHeight)
	}

	switch {
	case bpp == 8 && compression == compressionRGB:
	case bpp == 24 && compression == compressionRGB:
	case bpp == 32 && (compression == compressionRGB || compression == compressionBitfields):
	default:
		return nil, fmt.Errorf("dib: unsupported format (%d bpp, compression %d)", bpp, compression)
	}

	offset := hdrSize
	redMask, greenMask, blueMask := uint32(0x00FF0000), uint32(0x0000FF00), uint32(0x000000FF)
	if compression == compressionBitfields {
		// A plain BITMAPINFOHEADER carries the three masks after the
		// header; the V4/V5 headers embed them at the same offset inside.
		maskAt := hdrSize
		if hdrSize == 40 {
			offset += 12
		} else {
			maskAt = 40
		}
		if maskAt+12 > len(data) {
			return nil, fmt.Errorf("dib: truncated before channel masks")
		}
		redMask = binary.LittleEndian.Uint32(data[maskAt : maskAt+4])
		greenMask = binary.LittleEndian.Uint32(data[maskAt+4 : maskAt+8])
		blueMask = binary.LittleEndian.Uint32(data[maskAt+8 : maskAt+12])
	}

	var palette []color.NRGBA
	if bpp == 8 {
		n := clrUsed
		if n == 0 || n > 256 {
			n = 256
		}
		if offset+n*4 > len(data) {
			return nil, fmt.Errorf("dib: truncated before palette (%d entries)", n)
		}
		palette = make([]color.NRGBA, n)
		for i := range palette {
			q := data[offset+i*4:]
			palette[i] = color.NRGBA{R: q[2], G: q[1], B: q[0], A: 0xFF}
		}
		offset += n * 4
	}

	stride := ((width*bpp + 31) / 32) * 4
	if offset+stride*height > len(data) {
		return nil, fmt.Errorf("dib: %d pixel bytes needed, %d present", stride*height, len(data)-offset)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcY := y
		if bottomUp {
			srcY = height - 1 - y
		}
		row := data[offset+srcY*stride:]
		for x := 0; x < width; x++ {
			var c color.NRGBA
			switch bpp {
			case 8:
				idx := int(row[x])
				if idx >= len(palette) {
					return nil, fmt.Errorf("dib: pixel references palette entry %d of %d", idx, len(palette))
				}
				c = palette[idx]
			case 24:
				c = color.NRGBA{R: row[x*3+2], G: row[x*3+1], B: row[x*3], A: 0xFF}
			case 32:
				v := binary.LittleEndian.Uint32(row[x*4 : x*4+4])
				// The fourth byte is reserved in BI_RGB and unreliable in
				// practice, so the result is always opaque.
				c = color.NRGBA{
					R: maskChannel(v, redMask),
					G: maskChannel(v, greenMask),
					B: maskChannel(v, blueMask),
					A: 0xFF,
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

// maskChannel extracts one color channel from a pixel value and scales it
// to 8 bits.
func maskChannel(v, mask uint32) uint8 {
	if mask == 0 {
		return 0
	}
	shift := bits.TrailingZeros32(mask)
	size := bits.OnesCount32(mask)
	c := (v & mask) >> shift
	switch {
	case size < 8:
		c <<= 8 - size
		c |= c >> size
	case size > 8:
		c >>= size - 8
	}
	return uint8(c)
}
