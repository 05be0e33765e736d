package gpu

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute-display/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// mipExtent returns the extent of mip level level of a texture whose level 0 is size.
// 2D array layers are not reduced.
func mipExtent(size wgpu.Extent3D, level uint32) wgpu.Extent3D {
	return wgpu.Extent3D{
		Width:              max(size.Width>>level, 1),
		Height:             max(size.Height>>level, 1),
		DepthOrArrayLayers: max(size.DepthOrArrayLayers, 1),
	}
}

// validateDescriptor checks a texture descriptor and fills defaulted fields.
func validateDescriptor(desc *TextureDescriptor) (TextureDescriptor, error) {
	d := *desc
	d.MipLevelCount = common.Coalesce(d.MipLevelCount, 1)
	d.SampleCount = common.Coalesce(d.SampleCount, 1)
	d.Size.DepthOrArrayLayers = common.Coalesce(d.Size.DepthOrArrayLayers, 1)
	if d.Size.Width == 0 || d.Size.Height == 0 {
		return d, fmt.Errorf("%w: %dx%d", ErrInvalidTextureSize, d.Size.Width, d.Size.Height)
	}
	if _, err := BytesPerTexel(d.Format); err != nil {
		return d, err
	}
	return d, nil
}

// validateRegion checks that a size region at side's origin and mip level fits inside side's texture.
func validateRegion(side *ImageCopyTexture, size *wgpu.Extent3D) error {
	if side == nil || side.Texture == nil {
		return ErrNilTexture
	}
	t := side.Texture
	if side.MipLevel >= t.MipLevelCount() {
		return fmt.Errorf("%w: level %d of %d in %q", ErrMipLevelOutOfRange, side.MipLevel, t.MipLevelCount(), t.Label())
	}

	ext := mipExtent(t.Size(), side.MipLevel)
	o := side.Origin
	depth := max(size.DepthOrArrayLayers, 1)
	if uint64(o.X)+uint64(size.Width) > uint64(ext.Width) ||
		uint64(o.Y)+uint64(size.Height) > uint64(ext.Height) ||
		uint64(o.Z)+uint64(depth) > uint64(ext.DepthOrArrayLayers) {
		return fmt.Errorf("%w: %dx%dx%d at (%d,%d,%d) in %q of %dx%dx%d",
			ErrCopyOutOfBounds,
			size.Width, size.Height, depth, o.X, o.Y, o.Z,
			t.Label(), ext.Width, ext.Height, ext.DepthOrArrayLayers)
	}
	return nil
}

// validateCopy applies the WebGPU texture-to-texture copy rules that both backends share.
func validateCopy(src, dst *ImageCopyTexture, size *wgpu.Extent3D) error {
	if size == nil {
		return fmt.Errorf("%w: nil copy size", ErrCopyOutOfBounds)
	}
	if err := validateRegion(src, size); err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	if err := validateRegion(dst, size); err != nil {
		return fmt.Errorf("copy destination: %w", err)
	}
	if src.Texture.Usage()&wgpu.TextureUsageCopySrc == 0 {
		return fmt.Errorf("%w: %q", ErrMissingCopySrcUsage, src.Texture.Label())
	}
	if dst.Texture.Usage()&wgpu.TextureUsageCopyDst == 0 {
		return fmt.Errorf("%w: %q", ErrMissingCopyDstUsage, dst.Texture.Label())
	}
	if src.Texture.Format() != dst.Texture.Format() {
		return fmt.Errorf("%w: %v to %v", ErrFormatMismatch, src.Texture.Format(), dst.Texture.Format())
	}
	return nil
}
