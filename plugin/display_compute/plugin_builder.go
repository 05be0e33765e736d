package display_compute

import "github.com/cogentcore/webgpu/wgpu"

// PluginBuilderOption is a functional option applied to the plugin during construction via NewPlugin.
type PluginBuilderOption func(*plugin)

// WithPinnedExtent restricts every copy to the top-left width×height region.
// The rest of each target keeps its previous contents. Zero values keep the
// default full-extent copy.
//
// Parameters:
//   - width: the copy width in pixels
//   - height: the copy height in pixels
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithPinnedExtent(width, height uint32) PluginBuilderOption {
	return func(p *plugin) {
		if width == 0 || height == 0 {
			p.pinned = nil
			return
		}
		p.pinned = &wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	}
}
