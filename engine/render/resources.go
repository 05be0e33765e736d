package render

import (
	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// RenderDevice is the world resource exposing the GPU device. The render app
// inserts it into its own world; the app inserts it into the main world so
// setup code can allocate textures.
type RenderDevice struct {
	gpu.Device
}

// ViewTarget is the render-world resource holding the texture the current
// frame is drawn into. It is absent on frames without a surface.
type ViewTarget struct {
	Texture gpu.Texture
}

// Camera2d marks a main-world entity as a 2D view drawn into the surface.
type Camera2d struct {
	// ClearColor fills the view target at the start of the main pass.
	ClearColor wgpu.Color
	// Order sorts views; lower orders render first.
	Order int
}

// ExtractedView is the render-world copy of a Camera2d.
type ExtractedView struct {
	ClearColor wgpu.Color
	Order      int
}

// ExtractedUiImage is one image to draw, centred in the view target.
type ExtractedUiImage struct {
	// Entity is the main-world entity owning the UI node.
	Entity ecs.Entity
	// Image is the handle of the image to draw.
	Image asset.Handle
	// Width and Height are the node size in pixels. Zero uses the image size.
	Width, Height uint32
}

// ExtractedUiImages is the render-world list of UI images for the current frame.
type ExtractedUiImages struct {
	Items []ExtractedUiImage
}

// ExtractedImage carries an added or modified image into the render world.
type ExtractedImage struct {
	Handle asset.Handle
	Image  asset.Image
}

// ExtractedImages is the render-world list of image changes for the current frame.
type ExtractedImages struct {
	Changed []ExtractedImage
	Removed []asset.Handle
}

// GpuImage is the GPU-resident copy of an image asset.
type GpuImage struct {
	Texture       gpu.Texture
	Size          wgpu.Extent3D
	MipLevelCount uint32
	Format        wgpu.TextureFormat
}

// RenderAssets maps image handles to their uploaded GPU textures.
type RenderAssets struct {
	images map[asset.Handle]*GpuImage
}

// NewRenderAssets creates an empty table.
//
// Returns:
//   - *RenderAssets: the table
func NewRenderAssets() *RenderAssets {
	return &RenderAssets{images: map[asset.Handle]*GpuImage{}}
}

// Get resolves h to its GPU image.
//
// Parameters:
//   - h: the image handle
//
// Returns:
//   - *GpuImage: the GPU image, or nil
//   - bool: true if h has been uploaded
func (r *RenderAssets) Get(h asset.Handle) (*GpuImage, bool) {
	img, ok := r.images[h]
	return img, ok
}

// Len returns the number of uploaded images.
func (r *RenderAssets) Len() int {
	return len(r.images)
}

func (r *RenderAssets) set(h asset.Handle, img *GpuImage) {
	r.images[h] = img
}

func (r *RenderAssets) remove(h asset.Handle) (*GpuImage, bool) {
	img, ok := r.images[h]
	if ok {
		delete(r.images, h)
	}
	return img, ok
}
