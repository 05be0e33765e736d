package gpu

import (
	"errors"

	"github.com/cogentcore/webgpu/wgpu"
)

// BackendType identifies the device implementation behind a Device.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU device (hardware or fallback adapter).
	BackendTypeWGPU BackendType = iota

	// BackendTypeSoftware selects the CPU device. Textures live in host memory,
	// recorded commands execute on Submit and every texture can be read back.
	BackendTypeSoftware
)

// String returns the backend name as used in configuration.
func (b BackendType) String() string {
	switch b {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// Device and command errors.
var (
	// ErrNilTexture is returned when a copy or draw references a nil texture.
	ErrNilTexture = errors.New("gpu: texture is nil")

	// ErrTextureReleased is returned when a released texture is used.
	ErrTextureReleased = errors.New("gpu: texture has been released")

	// ErrForeignTexture is returned when a texture created by another device is used.
	ErrForeignTexture = errors.New("gpu: texture belongs to a different device")

	// ErrInvalidTextureSize is returned when a descriptor has a zero dimension or mip count.
	ErrInvalidTextureSize = errors.New("gpu: invalid texture size")

	// ErrUnsupportedFormat is returned for texel formats the device cannot handle.
	ErrUnsupportedFormat = errors.New("gpu: unsupported texture format")

	// ErrMissingCopySrcUsage is returned when a copy source lacks TextureUsageCopySrc.
	ErrMissingCopySrcUsage = errors.New("gpu: copy source lacks CopySrc usage")

	// ErrMissingCopyDstUsage is returned when a copy destination lacks TextureUsageCopyDst.
	ErrMissingCopyDstUsage = errors.New("gpu: copy destination lacks CopyDst usage")

	// ErrFormatMismatch is returned when copying between textures of different formats.
	ErrFormatMismatch = errors.New("gpu: copy between different texture formats")

	// ErrMipLevelOutOfRange is returned when a copy names a mip level the texture does not have.
	ErrMipLevelOutOfRange = errors.New("gpu: mip level out of range")

	// ErrCopyOutOfBounds is returned when a copy region exceeds a texture's mip level extent.
	ErrCopyOutOfBounds = errors.New("gpu: copy region out of bounds")

	// ErrDataSizeMismatch is returned when WriteTexture data does not match the region.
	ErrDataSizeMismatch = errors.New("gpu: data size does not match region")

	// ErrEncoderFinished is returned when recording on a finished encoder.
	ErrEncoderFinished = errors.New("gpu: encoder already finished")

	// ErrPassInProgress is returned when recording on an encoder while a render pass is open.
	ErrPassInProgress = errors.New("gpu: render pass in progress")

	// ErrPassEnded is returned when recording into an ended render pass.
	ErrPassEnded = errors.New("gpu: render pass already ended")

	// ErrCommandBufferConsumed is returned when a command buffer is submitted twice.
	ErrCommandBufferConsumed = errors.New("gpu: command buffer already submitted")

	// ErrNoSurface is returned when surface operations are requested from a headless device.
	ErrNoSurface = errors.New("gpu: device has no surface")

	// ErrReadbackUnsupported is returned by devices that cannot read textures back to the host.
	ErrReadbackUnsupported = errors.New("gpu: texture readback not supported by this device")
)

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label is an optional debug name.
	Label string
	// Size is the extent of mip level 0.
	Size wgpu.Extent3D
	// MipLevelCount is the number of mip levels. Zero is treated as 1.
	MipLevelCount uint32
	// SampleCount is the MSAA sample count. Zero is treated as 1.
	SampleCount uint32
	// Dimension is the texture dimensionality.
	Dimension wgpu.TextureDimension
	// Format is the texel format.
	Format wgpu.TextureFormat
	// Usage is the set of allowed usages.
	Usage wgpu.TextureUsage
}

// Texture is GPU-resident image memory owned by a Device.
type Texture interface {
	// Label returns the debug label given at creation.
	Label() string

	// Size returns the extent of mip level 0.
	Size() wgpu.Extent3D

	// MipLevelCount returns the number of mip levels.
	MipLevelCount() uint32

	// Format returns the texel format.
	Format() wgpu.TextureFormat

	// Usage returns the allowed usages.
	Usage() wgpu.TextureUsage

	// Release frees the underlying memory. Further use of the texture fails.
	Release()
}

// ImageCopyTexture names one side of a texture copy: a texture, one of its mip
// levels, an origin inside that level and the aspect to copy.
type ImageCopyTexture struct {
	Texture  Texture
	MipLevel uint32
	Origin   wgpu.Origin3D
	Aspect   wgpu.TextureAspect
}

// Rect is an axis-aligned rectangle in texels.
type Rect struct {
	X, Y          int32
	Width, Height uint32
}

// RenderPassDescriptor describes a render pass with one color attachment.
type RenderPassDescriptor struct {
	// Label is an optional debug name.
	Label string
	// Target is the color attachment.
	Target Texture
	// ClearColor is written to the whole target when the pass begins.
	ClearColor wgpu.Color
}

// RenderPass records draw commands into a color attachment.
type RenderPass interface {
	// DrawTexture draws tex scaled into dst on the pass target.
	// Parts of dst outside the target are clipped.
	//
	// Parameters:
	//   - tex: the texture to draw (must allow TextureBinding)
	//   - dst: the destination rectangle in target texels
	//
	// Returns:
	//   - error: if the pass has ended or tex is unusable
	DrawTexture(tex Texture, dst Rect) error

	// End closes the pass, returning the encoder to the recording state.
	//
	// Returns:
	//   - error: if the pass was already ended
	End() error
}

// CommandEncoder records GPU commands for later submission.
// A CommandEncoder is not safe for concurrent use.
type CommandEncoder interface {
	// CopyTextureToTexture records a copy of a size region from src to dst.
	// The copy is validated against both textures before it is recorded.
	//
	// Parameters:
	//   - src: the source texture, mip level and origin
	//   - dst: the destination texture, mip level and origin
	//   - size: the extent of the region to copy
	//
	// Returns:
	//   - error: a validation error; nothing is recorded on error
	CopyTextureToTexture(src, dst *ImageCopyTexture, size *wgpu.Extent3D) error

	// BeginRenderPass opens a render pass. The encoder is locked until the pass ends.
	//
	// Parameters:
	//   - desc: the pass descriptor
	//
	// Returns:
	//   - RenderPass: the open pass
	//   - error: if the encoder is not recording or the target is unusable
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPass, error)

	// Finish ends recording and returns the command buffer.
	//
	// Returns:
	//   - CommandBuffer: the recorded commands
	//   - error: if a pass is still open or the encoder is already finished
	Finish() (CommandBuffer, error)

	// Release discards the encoder and anything recorded but not finished.
	Release()
}

// CommandBuffer is a finished, submittable list of commands.
type CommandBuffer interface {
	// Release discards the command buffer.
	Release()
}

// Surface is the presentable target of a Device.
type Surface interface {
	// Configure (re)creates the surface backing at the given size in pixels.
	Configure(width, height uint32)

	// Size returns the configured width and height in pixels.
	Size() (width, height uint32)

	// Format returns the texel format of acquired textures.
	Format() wgpu.TextureFormat

	// AcquireTexture returns the texture to render the current frame into.
	//
	// Returns:
	//   - Texture: the frame texture
	//   - error: if no texture can be acquired
	AcquireTexture() (Texture, error)

	// Present shows the acquired texture and releases it.
	//
	// Returns:
	//   - error: if nothing was acquired
	Present() error
}

// Device creates GPU resources and executes command buffers.
type Device interface {
	// Backend returns the backend type of this device.
	Backend() BackendType

	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture descriptor
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: if the descriptor is invalid or allocation fails
	CreateTexture(desc *TextureDescriptor) (Texture, error)

	// WriteTexture uploads tightly packed texels into a region of a texture.
	//
	// Parameters:
	//   - dst: the destination texture, mip level and origin
	//   - data: texel rows for the region, without padding
	//   - size: the extent of the region
	//
	// Returns:
	//   - error: if the region is invalid or data has the wrong length
	WriteTexture(dst *ImageCopyTexture, data []byte, size *wgpu.Extent3D) error

	// ReadTexture returns the tightly packed texels of mip level 0.
	//
	// Parameters:
	//   - tex: the texture to read
	//
	// Returns:
	//   - []byte: a copy of the texel data
	//   - error: ErrReadbackUnsupported on devices without readback
	ReadTexture(tex Texture) ([]byte, error)

	// CreateCommandEncoder creates an encoder in the recording state.
	//
	// Parameters:
	//   - label: optional debug label
	//
	// Returns:
	//   - CommandEncoder: the encoder
	//   - error: if the device cannot create one
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Submit queues command buffers for execution in order.
	//
	// Parameters:
	//   - buffers: the command buffers to execute
	//
	// Returns:
	//   - error: if a buffer is foreign or was already submitted
	Submit(buffers ...CommandBuffer) error

	// Surface returns the presentable surface, or nil for a headless device.
	Surface() Surface

	// Release frees the device and its surface.
	Release()
}

// NewDevice creates a Device for the selected backend.
// The WGPU backend panics if no adapter or device can be obtained, mirroring
// the renderer bring-up of the engine.
//
// Parameters:
//   - backendType: the backend to create
//   - options: functional options for device configuration
//
// Returns:
//   - Device: the new device
func NewDevice(backendType BackendType, options ...DeviceBuilderOption) Device {
	cfg := &deviceConfig{
		surfaceWidth:  1280,
		surfaceHeight: 720,
		presentMode:   wgpu.PresentModeFifo,
	}
	for _, opt := range options {
		opt(cfg)
	}

	switch backendType {
	case BackendTypeSoftware:
		return newSoftwareDevice(cfg)
	case BackendTypeWGPU:
		return newWGPUDevice(cfg)
	default:
		panic("gpu: unknown backend type")
	}
}

// ParseBackendType converts a configuration string into a BackendType.
//
// Parameters:
//   - s: "wgpu" or "software"
//
// Returns:
//   - BackendType: the parsed backend
//   - bool: false if s names no backend
func ParseBackendType(s string) (BackendType, bool) {
	switch s {
	case "wgpu", "":
		return BackendTypeWGPU, true
	case "software":
		return BackendTypeSoftware, true
	default:
		return 0, false
	}
}
