package gpu

import "github.com/cogentcore/webgpu/wgpu"

// deviceConfig collects pre-creation settings from builder options.
type deviceConfig struct {
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	headlessSurface      bool
	surfaceWidth         uint32
	surfaceHeight        uint32
	presentMode          wgpu.PresentMode
	forceFallbackAdapter bool
}

// DeviceBuilderOption is a functional option applied to a device during construction via NewDevice.
type DeviceBuilderOption func(*deviceConfig)

// WithSurfaceDescriptor creates the device with a presentable surface for the
// given window. Only used by the WGPU backend.
//
// Parameters:
//   - desc: the platform surface descriptor (see window.Window.SurfaceDescriptor)
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.surfaceDescriptor = desc
	}
}

// WithOffscreenSurface gives the software backend an offscreen surface that can
// be read back after each frame.
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithOffscreenSurface() DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.headlessSurface = true
	}
}

// WithSurfaceSize sets the initial surface size in pixels.
//
// Parameters:
//   - width: surface width in pixels
//   - height: surface height in pixels
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithSurfaceSize(width, height uint32) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if width > 0 {
			c.surfaceWidth = width
		}
		if height > 0 {
			c.surfaceHeight = height
		}
	}
}

// WithVSync selects FIFO presentation when true and immediate presentation otherwise.
//
// Parameters:
//   - enabled: true to wait for vertical blank
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithVSync(enabled bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		if enabled {
			c.presentMode = wgpu.PresentModeFifo
		} else {
			c.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: option function to apply
func WithForceFallbackAdapter(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}
