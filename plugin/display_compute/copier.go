package display_compute

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// SourceUsage is the usage given to source textures created by NewTextureCopier.
// A compute pass writes the texture as a storage binding and the copy node reads it as a copy source.
const SourceUsage = wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst

// TextureCopier requests a copy of Source into the texture backing Target on every frame.
// Attach it to a main-world entity; the copy stops once the entity is despawned.
type TextureCopier struct {
	// Source is the texture written by the compute pass. The copier does not own it.
	Source gpu.Texture
	// Target is the image whose GPU texture receives the copy.
	Target asset.Handle
}

// NewTextureCopier allocates a source texture and a destination image of the
// same size and format, both filled with pixel, and returns them wired together.
//
// Parameters:
//   - device: the device that allocates the source texture
//   - images: the image store receiving the destination image
//   - format: the texel format of both textures
//   - width, height: the size in pixels
//   - pixel: the bytes of one texel used to fill both textures
//
// Returns:
//   - TextureCopier: the copy request
//   - error: if the image cannot be filled or the device fails to allocate or write the texture
func NewTextureCopier(device gpu.Device, images asset.Assets, format wgpu.TextureFormat, width, height uint32, pixel []byte) (TextureCopier, error) {
	size := wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}

	img, err := asset.NewImageFill(size, format, pixel)
	if err != nil {
		return TextureCopier{}, err
	}
	img.Label = "Compute Display Target"

	source, err := device.CreateTexture(&gpu.TextureDescriptor{
		Label:         "Compute Display Source",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         SourceUsage,
	})
	if err != nil {
		return TextureCopier{}, err
	}
	if err := device.WriteTexture(&gpu.ImageCopyTexture{Texture: source, Aspect: wgpu.TextureAspectAll}, img.Data, &size); err != nil {
		source.Release()
		return TextureCopier{}, fmt.Errorf("display_compute: fill source texture: %w", err)
	}

	return TextureCopier{
		Source: source,
		Target: images.Add(img),
	}, nil
}
