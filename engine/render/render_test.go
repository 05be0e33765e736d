package render

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render_graph"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	device gpu.SoftwareDevice
	app    RenderApp
	main   *ecs.World
	images asset.Assets
}

func newFixture(t *testing.T, options ...gpu.DeviceBuilderOption) *fixture {
	t.Helper()
	device := gpu.NewSoftwareDevice(options...)
	main := ecs.NewWorld()
	images := asset.NewAssets()
	ecs.InsertResource(main, &asset.Images{Assets: images})
	return &fixture{
		device: device,
		app:    NewRenderApp(device, WithPrepareWorkers(2)),
		main:   main,
		images: images,
	}
}

func (f *fixture) addImage(t *testing.T, w, h uint32, pixel []byte, format wgpu.TextureFormat) asset.Handle {
	t.Helper()
	img, err := asset.NewImageFill(wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}, format, pixel)
	require.NoError(t, err)
	return f.images.Add(img)
}

// uiImages registers an extract system that draws each handle at its native size.
func (f *fixture) uiImages(handles ...asset.Handle) {
	f.app.AddExtractSystem(func(_, renderWorld *ecs.World) {
		ui := ecs.Resource[ExtractedUiImages](renderWorld)
		ui.Items = ui.Items[:0]
		for _, h := range handles {
			ui.Items = append(ui.Items, ExtractedUiImage{Image: h})
		}
	})
}

func TestCore2dGraphOrder(t *testing.T) {
	f := newFixture(t)
	core2d, ok := f.app.Graph().SubGraph(Core2d)
	require.True(t, ok)

	order, err := core2d.Order()
	require.NoError(t, err)
	assert.Equal(t, []render_graph.Label{Node2dStartMainPass, Node2dMainPass, Node2dEndMainPass}, order)

	_, ok = f.app.Graph().Node(CameraDriverLabel)
	assert.True(t, ok)
}

func TestFrameUploadsImagesAndDrawsCentered(t *testing.T) {
	f := newFixture(t, gpu.WithOffscreenSurface(), gpu.WithSurfaceSize(4, 4))
	h := f.addImage(t, 2, 2, []byte{255, 0, 0, 255}, wgpu.TextureFormatRGBA8Unorm)
	f.uiImages(h)

	cam := f.main.Spawn()
	ecs.Insert(f.main, cam, Camera2d{ClearColor: wgpu.Color{B: 1, A: 1}})

	require.NoError(t, f.app.Frame(f.main))

	table := ecs.Resource[RenderAssets](f.app.World())
	gpuImage, ok := table.Get(h)
	require.True(t, ok)
	assert.Equal(t, uint32(2), gpuImage.Size.Width)
	assert.Equal(t, uint32(1), gpuImage.MipLevelCount)

	surface, err := f.device.Surface().AcquireTexture()
	require.NoError(t, err)
	require.NoError(t, f.device.Surface().Present())
	pixels, err := f.device.ReadTexture(surface)
	require.NoError(t, err)

	at := func(x, y int) []byte { off := (y*4 + x) * 4; return pixels[off : off+4] }
	assert.Equal(t, []byte{0, 0, 255, 255}, at(0, 0))
	assert.Equal(t, []byte{255, 0, 0, 255}, at(1, 1))
	assert.Equal(t, []byte{255, 0, 0, 255}, at(2, 2))
	assert.Equal(t, []byte{0, 0, 255, 255}, at(3, 3))

	kinds := []gpu.CommandKind{}
	for _, c := range f.device.SubmittedCommands() {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []gpu.CommandKind{gpu.CommandBeginRenderPass, gpu.CommandDrawTexture, gpu.CommandEndRenderPass}, kinds)
}

func TestRenderWorldClearedAfterFrame(t *testing.T) {
	f := newFixture(t)
	cam := f.main.Spawn()
	ecs.Insert(f.main, cam, Camera2d{})

	var seen int
	f.app.AddExtractSystem(func(_, renderWorld *ecs.World) {
		seen = renderWorld.Len()
	})

	require.NoError(t, f.app.Frame(f.main))
	assert.Equal(t, 1, seen)
	assert.Equal(t, 0, f.app.World().Len())
	assert.Equal(t, uint64(1), f.app.Frames())

	require.NoError(t, f.app.Frame(f.main))
	assert.Equal(t, 1, seen)
	assert.Equal(t, 0, f.app.World().Len())
}

func TestNoViewsRecordsNothing(t *testing.T) {
	f := newFixture(t, gpu.WithOffscreenSurface(), gpu.WithSurfaceSize(4, 4))
	require.NoError(t, f.app.Frame(f.main))
	assert.Empty(t, f.device.SubmittedCommands())
}

func TestHeadlessDeviceSkipsMainPass(t *testing.T) {
	f := newFixture(t)
	cam := f.main.Spawn()
	ecs.Insert(f.main, cam, Camera2d{})
	f.uiImages(f.addImage(t, 1, 1, []byte{1, 2, 3, 4}, wgpu.TextureFormatRGBA8Unorm))

	require.NoError(t, f.app.Frame(f.main))
	assert.Empty(t, f.device.SubmittedCommands())
	assert.Equal(t, 1, ecs.Resource[RenderAssets](f.app.World()).Len())
}

func TestModifiedImageIsReuploadedIntoSameTexture(t *testing.T) {
	f := newFixture(t)
	h := f.addImage(t, 1, 1, []byte{1, 1, 1, 1}, wgpu.TextureFormatRGBA8Unorm)
	require.NoError(t, f.app.Frame(f.main))

	table := ecs.Resource[RenderAssets](f.app.World())
	first, ok := table.Get(h)
	require.True(t, ok)

	img, ok := f.images.GetMut(h)
	require.True(t, ok)
	img.Data = []byte{9, 9, 9, 9}
	require.NoError(t, f.app.Frame(f.main))

	second, ok := table.Get(h)
	require.True(t, ok)
	assert.Same(t, first.Texture, second.Texture)

	data, err := f.device.ReadTexture(second.Texture)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9, 9}, data)
}

func TestRemovedImageIsReleased(t *testing.T) {
	f := newFixture(t)
	h := f.addImage(t, 1, 1, []byte{1, 1, 1, 1}, wgpu.TextureFormatRGBA8Unorm)
	require.NoError(t, f.app.Frame(f.main))

	table := ecs.Resource[RenderAssets](f.app.World())
	gpuImage, ok := table.Get(h)
	require.True(t, ok)

	require.True(t, f.images.Remove(h))
	require.NoError(t, f.app.Frame(f.main))

	_, ok = table.Get(h)
	assert.False(t, ok)
	_, err := f.device.ReadTexture(gpuImage.Texture)
	assert.ErrorIs(t, err, gpu.ErrTextureReleased)
}

func TestPrepareReportsUploadErrors(t *testing.T) {
	f := newFixture(t)
	f.images.Add(asset.Image{
		Label:  "broken",
		Size:   wgpu.Extent3D{Width: 2, Height: 2, DepthOrArrayLayers: 1},
		Format: wgpu.TextureFormatRGBA8Unorm,
		Data:   []byte{1, 2, 3},
	})

	err := f.app.Frame(f.main)
	assert.ErrorIs(t, err, gpu.ErrDataSizeMismatch)
	assert.Equal(t, 0, f.app.World().Len())
}

func TestCenteredRect(t *testing.T) {
	assert.Equal(t, gpu.Rect{X: 384, Y: 104, Width: 512, Height: 512}, CenteredRect(1280, 720, 512, 512))
	assert.Equal(t, gpu.Rect{X: -2, Y: -2, Width: 8, Height: 8}, CenteredRect(4, 4, 8, 8))
}
