package snapshot

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func newTexture(t *testing.T, device gpu.Device, data []byte) gpu.Texture {
	t.Helper()
	size := wgpu.Extent3D{Width: 2, Height: 1, DepthOrArrayLayers: 1}
	tex, err := device.CreateTexture(&gpu.TextureDescriptor{
		Label:  "snapshot test",
		Size:   size,
		Format: wgpu.TextureFormatRGBA32Float,
		Usage:  wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
	})
	require.NoError(t, err)
	require.NoError(t, device.WriteTexture(&gpu.ImageCopyTexture{Texture: tex}, data, &size))
	return tex
}

func TestEncodeRoundTrip(t *testing.T) {
	device := gpu.NewSoftwareDevice()
	tex := newTexture(t, device, append(gpu.Float32Pixel(1, 0, 0.5, 1), gpu.Float32Pixel(0, 1, 0, 1)...))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, device, tex))

	img, err := tiff.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
	assert.Equal(t, color.NRGBA64{R: 0xffff, B: 0x8000, A: 0xffff}, color.NRGBA64Model.Convert(img.At(0, 0)))
	assert.Equal(t, color.NRGBA64{G: 0xffff, A: 0xffff}, color.NRGBA64Model.Convert(img.At(1, 0)))
}

func TestEncodeReleasedTexture(t *testing.T) {
	device := gpu.NewSoftwareDevice()
	tex := newTexture(t, device, make([]byte, 32))
	tex.Release()

	assert.ErrorIs(t, Encode(&bytes.Buffer{}, device, tex), gpu.ErrTextureReleased)
}

func TestSave(t *testing.T) {
	device := gpu.NewSoftwareDevice()
	tex := newTexture(t, device, append(gpu.Float32Pixel(1, 1, 1, 1), gpu.Float32Pixel(0, 0, 0, 1)...))
	path := filepath.Join(t.TempDir(), "out.tiff")

	require.NoError(t, Save(path, device, tex))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	cfg, err := tiff.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Width)
	assert.Equal(t, 1, cfg.Height)

	assert.Error(t, Save(filepath.Join(t.TempDir(), "missing", "out.tiff"), device, tex))
}
