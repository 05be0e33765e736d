package asset

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultImageUsage is the GPU usage given to an image's backing texture when
// the Image does not specify one. It allows sampling the image in the UI pass
// and copying into or out of it.
const DefaultImageUsage = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc

// Image is a CPU-side image asset. The render sub-app uploads it into a GPU
// texture the first frame after it is added or modified.
type Image struct {
	// Label is an optional debug name forwarded to the GPU texture.
	Label string
	// Size is the image extent. DepthOrArrayLayers is 1 for 2D images.
	Size wgpu.Extent3D
	// Format is the texel format of Data and of the backing texture.
	Format wgpu.TextureFormat
	// Data holds tightly packed texels, row by row.
	Data []byte
	// Usage is the GPU usage of the backing texture. Zero means DefaultImageUsage.
	Usage wgpu.TextureUsage
}

// NewImageFill creates an image of the given size whose every texel equals pixel.
// pixel must hold a whole number of texels of format.
//
// Parameters:
//   - size: the image extent
//   - format: the texel format
//   - pixel: the bytes of one (or a repeating group of) texel(s)
//
// Returns:
//   - Image: the filled image
//   - error: if the format is unknown or pixel does not fit the format
func NewImageFill(size wgpu.Extent3D, format wgpu.TextureFormat, pixel []byte) (Image, error) {
	bpt, err := gpu.BytesPerTexel(format)
	if err != nil {
		return Image{}, err
	}
	if len(pixel) == 0 || len(pixel)%int(bpt) != 0 {
		return Image{}, fmt.Errorf("asset: fill pixel of %d bytes does not match %d-byte texels", len(pixel), bpt)
	}

	if size.DepthOrArrayLayers == 0 {
		size.DepthOrArrayLayers = 1
	}
	total := int(size.Width) * int(size.Height) * int(size.DepthOrArrayLayers) * int(bpt)
	if total%len(pixel) != 0 {
		return Image{}, fmt.Errorf("asset: image of %d bytes is not a multiple of the %d-byte fill", total, len(pixel))
	}

	data := make([]byte, total)
	for off := 0; off < total; off += len(pixel) {
		copy(data[off:], pixel)
	}

	return Image{
		Size:   size,
		Format: format,
		Data:   data,
	}, nil
}

// TextureDescriptor returns the descriptor used to allocate the image's backing texture.
//
// Returns:
//   - gpu.TextureDescriptor: a single-mip, single-sample 2D texture descriptor
func (img *Image) TextureDescriptor() gpu.TextureDescriptor {
	usage := img.Usage
	if usage == 0 {
		usage = DefaultImageUsage
	}
	return gpu.TextureDescriptor{
		Label:         img.Label,
		Size:          img.Size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        img.Format,
		Usage:         usage,
	}
}
