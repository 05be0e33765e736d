package gpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// texelSizes gives the size in bytes of one texel for the formats this package handles.
var texelSizes = map[wgpu.TextureFormat]uint32{
	wgpu.TextureFormatR8Unorm:        1,
	wgpu.TextureFormatRGBA8Unorm:     4,
	wgpu.TextureFormatRGBA8UnormSrgb: 4,
	wgpu.TextureFormatBGRA8Unorm:     4,
	wgpu.TextureFormatBGRA8UnormSrgb: 4,
	wgpu.TextureFormatR32Float:       4,
	wgpu.TextureFormatRG32Float:      8,
	wgpu.TextureFormatRGBA32Float:    16,
}

// BytesPerTexel returns the size in bytes of one texel of format.
//
// Parameters:
//   - format: the texel format
//
// Returns:
//   - uint32: bytes per texel
//   - error: ErrUnsupportedFormat for formats this package does not handle
func BytesPerTexel(format wgpu.TextureFormat) (uint32, error) {
	n, ok := texelSizes[format]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	return n, nil
}

// Float32Pixel packs RGBA float components into the byte layout of an
// RGBA32Float texel.
//
// Parameters:
//   - r, g, b, a: the color components
//
// Returns:
//   - []byte: 16 little-endian bytes
func Float32Pixel(r, g, b, a float32) []byte {
	out := make([]byte, 16)
	for i, v := range [4]float32{r, g, b, a} {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// PutFloat32Pixel writes RGBA float components as one RGBA32Float texel into dst.
// dst must hold at least 16 bytes.
//
// Parameters:
//   - dst: the destination bytes
//   - r, g, b, a: the color components
func PutFloat32Pixel(dst []byte, r, g, b, a float32) {
	putF32(dst[0:], r)
	putF32(dst[4:], g)
	putF32(dst[8:], b)
	putF32(dst[12:], a)
}

// DecodeImage converts tightly packed texels into a 16-bit non-premultiplied
// image. Float channels are clamped to [0, 1]; sRGB formats keep their encoding.
//
// Parameters:
//   - format: the texel format of data
//   - width, height: the image size in texels
//   - data: the texels, row by row
//
// Returns:
//   - *image.NRGBA64: the decoded image
//   - error: if the format is unsupported or data has the wrong length
func DecodeImage(format wgpu.TextureFormat, width, height uint32, data []byte) (*image.NRGBA64, error) {
	bpt, err := BytesPerTexel(format)
	if err != nil {
		return nil, err
	}
	if want := int(width) * int(height) * int(bpt); len(data) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrDataSizeMismatch, len(data), want)
	}

	srgb := format == wgpu.TextureFormatRGBA8UnormSrgb || format == wgpu.TextureFormatBGRA8UnormSrgb
	img := image.NewNRGBA64(image.Rect(0, 0, int(width), int(height)))
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			off := (y*int(width) + x) * int(bpt)
			c := decodeTexel(format, data[off:off+int(bpt)])
			if srgb {
				c[0], c[1], c[2] = linearToSrgb(c[0]), linearToSrgb(c[1]), linearToSrgb(c[2])
			}
			img.SetNRGBA64(x, y, color.NRGBA64{R: unorm16(c[0]), G: unorm16(c[1]), B: unorm16(c[2]), A: unorm16(c[3])})
		}
	}
	return img, nil
}

// decodeTexel converts one texel of format into linear RGBA.
// Missing channels decode as 0 and missing alpha as 1.
func decodeTexel(format wgpu.TextureFormat, b []byte) [4]float32 {
	switch format {
	case wgpu.TextureFormatR8Unorm:
		return [4]float32{unorm8(b[0]), 0, 0, 1}
	case wgpu.TextureFormatRGBA8Unorm:
		return [4]float32{unorm8(b[0]), unorm8(b[1]), unorm8(b[2]), unorm8(b[3])}
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return [4]float32{srgbToLinear(unorm8(b[0])), srgbToLinear(unorm8(b[1])), srgbToLinear(unorm8(b[2])), unorm8(b[3])}
	case wgpu.TextureFormatBGRA8Unorm:
		return [4]float32{unorm8(b[2]), unorm8(b[1]), unorm8(b[0]), unorm8(b[3])}
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return [4]float32{srgbToLinear(unorm8(b[2])), srgbToLinear(unorm8(b[1])), srgbToLinear(unorm8(b[0])), unorm8(b[3])}
	case wgpu.TextureFormatR32Float:
		return [4]float32{f32(b[0:]), 0, 0, 1}
	case wgpu.TextureFormatRG32Float:
		return [4]float32{f32(b[0:]), f32(b[4:]), 0, 1}
	case wgpu.TextureFormatRGBA32Float:
		return [4]float32{f32(b[0:]), f32(b[4:]), f32(b[8:]), f32(b[12:])}
	}
	return [4]float32{}
}

// encodeTexel writes linear RGBA c as one texel of format into b.
func encodeTexel(format wgpu.TextureFormat, c [4]float32, b []byte) {
	switch format {
	case wgpu.TextureFormatR8Unorm:
		b[0] = toUnorm8(c[0])
	case wgpu.TextureFormatRGBA8Unorm:
		b[0], b[1], b[2], b[3] = toUnorm8(c[0]), toUnorm8(c[1]), toUnorm8(c[2]), toUnorm8(c[3])
	case wgpu.TextureFormatRGBA8UnormSrgb:
		b[0], b[1], b[2], b[3] = toUnorm8(linearToSrgb(c[0])), toUnorm8(linearToSrgb(c[1])), toUnorm8(linearToSrgb(c[2])), toUnorm8(c[3])
	case wgpu.TextureFormatBGRA8Unorm:
		b[0], b[1], b[2], b[3] = toUnorm8(c[2]), toUnorm8(c[1]), toUnorm8(c[0]), toUnorm8(c[3])
	case wgpu.TextureFormatBGRA8UnormSrgb:
		b[0], b[1], b[2], b[3] = toUnorm8(linearToSrgb(c[2])), toUnorm8(linearToSrgb(c[1])), toUnorm8(linearToSrgb(c[0])), toUnorm8(c[3])
	case wgpu.TextureFormatR32Float:
		putF32(b[0:], c[0])
	case wgpu.TextureFormatRG32Float:
		putF32(b[0:], c[0])
		putF32(b[4:], c[1])
	case wgpu.TextureFormatRGBA32Float:
		for i := 0; i < 4; i++ {
			putF32(b[i*4:], c[i])
		}
	}
}

func unorm8(v byte) float32 {
	return float32(v) / 255
}

func toUnorm8(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

func unorm16(v float32) uint16 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 1 {
		return math.MaxUint16
	}
	return uint16(v*math.MaxUint16 + 0.5)
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func srgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow(float64(v+0.055)/1.055, 2.4))
}

func linearToSrgb(v float32) float32 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return float32(1.055*math.Pow(float64(v), 1/2.4) - 0.055)
}
