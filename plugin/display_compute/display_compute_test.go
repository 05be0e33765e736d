package display_compute

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/app"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render_graph"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pink  = gpu.Float32Pixel(1, 0, 0.5, 1)
	cyan  = gpu.Float32Pixel(0, 1, 1, 1)
	black = gpu.Float32Pixel(0, 0, 0, 1)
)

type fixture struct {
	device gpu.SoftwareDevice
	app    app.App
}

func newFixture(t *testing.T, options ...PluginBuilderOption) *fixture {
	t.Helper()
	device := gpu.NewSoftwareDevice()
	a := app.NewApp(app.WithRenderApp(render.NewRenderApp(device, render.WithPrepareWorkers(2))))
	require.NoError(t, a.AddPlugins(NewPlugin(options...)))
	ecs.Insert(a.World(), a.World().Spawn(), render.Camera2d{})
	return &fixture{device: device, app: a}
}

func (f *fixture) images() asset.Assets {
	return ecs.Resource[asset.Images](f.app.World()).Assets
}

// spawnCopier creates a w×h RGBA32Float copier filled with fill and attaches it to a new entity.
func (f *fixture) spawnCopier(t *testing.T, w, h uint32, fill []byte) (ecs.Entity, TextureCopier) {
	t.Helper()
	copier, err := NewTextureCopier(f.device, f.images(), wgpu.TextureFormatRGBA32Float, w, h, fill)
	require.NoError(t, err)
	e := f.app.World().Spawn()
	ecs.Insert(f.app.World(), e, copier)
	return e, copier
}

func (f *fixture) copies() []gpu.CommandRecord {
	var out []gpu.CommandRecord
	for _, c := range f.device.SubmittedCommands() {
		if c.Kind == gpu.CommandCopyTextureToTexture {
			out = append(out, c)
		}
	}
	return out
}

func (f *fixture) targetPixels(t *testing.T, copier TextureCopier) []byte {
	t.Helper()
	gpuImage, ok := ecs.Resource[render.RenderAssets](f.app.RenderApp().World()).Get(copier.Target)
	require.True(t, ok)
	pixels, err := f.device.ReadTexture(gpuImage.Texture)
	require.NoError(t, err)
	return pixels
}

// fillBytes repeats pixel n times.
func fillBytes(pixel []byte, n int) []byte {
	out := make([]byte, 0, len(pixel)*n)
	for i := 0; i < n; i++ {
		out = append(out, pixel...)
	}
	return out
}

// mipless reports zero mip levels for a real texture.
type mipless struct {
	gpu.Texture
}

func (mipless) MipLevelCount() uint32 { return 0 }

func TestNewTextureCopier(t *testing.T) {
	device := gpu.NewSoftwareDevice()
	images := asset.NewAssets()

	copier, err := NewTextureCopier(device, images, wgpu.TextureFormatRGBA32Float, 4, 2, pink)
	require.NoError(t, err)

	assert.Equal(t, wgpu.Extent3D{Width: 4, Height: 2, DepthOrArrayLayers: 1}, copier.Source.Size())
	assert.Equal(t, wgpu.TextureFormatRGBA32Float, copier.Source.Format())
	assert.NotZero(t, copier.Source.Usage()&wgpu.TextureUsageStorageBinding)
	assert.NotZero(t, copier.Source.Usage()&wgpu.TextureUsageCopySrc)

	img, ok := images.Get(copier.Target)
	require.True(t, ok)
	assert.Equal(t, copier.Source.Size(), img.Size)
	assert.Equal(t, wgpu.TextureFormatRGBA32Float, img.Format)
	assert.Equal(t, fillBytes(pink, 8), img.Data)

	pixels, err := device.ReadTexture(copier.Source)
	require.NoError(t, err)
	assert.Equal(t, img.Data, pixels)
}

func TestNewTextureCopierPropagatesDeviceErrors(t *testing.T) {
	device := gpu.NewSoftwareDevice()
	images := asset.NewAssets()

	_, err := NewTextureCopier(device, images, wgpu.TextureFormatRGBA32Float, 0, 0, pink)
	assert.ErrorIs(t, err, gpu.ErrInvalidTextureSize)
	assert.Equal(t, 0, images.Len())

	_, err = NewTextureCopier(device, images, wgpu.TextureFormatRGBA32Float, 2, 2, []byte{1, 2, 3})
	assert.Error(t, err)
	assert.Equal(t, 0, images.Len())
}

func TestCopyNodeRunsBeforeStartMainPass(t *testing.T) {
	f := newFixture(t)
	core2d, ok := f.app.RenderApp().Graph().SubGraph(render.Core2d)
	require.True(t, ok)

	order, err := core2d.Order()
	require.NoError(t, err)
	assert.Equal(t, []render_graph.Label{
		CopyTextureFromComputeLabel,
		render.Node2dStartMainPass,
		render.Node2dMainPass,
		render.Node2dEndMainPass,
	}, order)
}

func TestCopyPrecedesMainPassInCommandLog(t *testing.T) {
	device := gpu.NewSoftwareDevice(gpu.WithOffscreenSurface(), gpu.WithSurfaceSize(4, 4))
	a := app.NewApp(app.WithRenderApp(render.NewRenderApp(device)))
	require.NoError(t, a.AddPlugins(NewPlugin()))
	ecs.Insert(a.World(), a.World().Spawn(), render.Camera2d{})

	copier, err := NewTextureCopier(device, ecs.Resource[asset.Images](a.World()), wgpu.TextureFormatRGBA32Float, 2, 2, pink)
	require.NoError(t, err)
	ecs.Insert(a.World(), a.World().Spawn(), copier)

	require.NoError(t, a.Update())

	var kinds []gpu.CommandKind
	for _, c := range device.SubmittedCommands() {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []gpu.CommandKind{
		gpu.CommandCopyTextureToTexture,
		gpu.CommandBeginRenderPass,
		gpu.CommandEndRenderPass,
	}, kinds)
}

func TestFullExtentCopyEveryFrame(t *testing.T) {
	f := newFixture(t)
	_, copier := f.spawnCopier(t, 512, 512, pink)

	for frame := 0; frame < 3; frame++ {
		require.NoError(t, f.app.Update())
	}

	copies := f.copies()
	require.Len(t, copies, 3)
	for i, c := range copies {
		assert.Equal(t, "Compute Display Source", c.Source)
		assert.Equal(t, "Compute Display Target", c.Destination)
		assert.Equal(t, wgpu.Extent3D{Width: 512, Height: 512, DepthOrArrayLayers: 1}, c.Size)
		assert.Equal(t, uint64(i+1), c.Submission)
	}
	assert.Equal(t, fillBytes(pink, 512*512), f.targetPixels(t, copier))
}

func TestCopyShowsSourceContents(t *testing.T) {
	f := newFixture(t)
	_, copier := f.spawnCopier(t, 8, 8, pink)

	size := copier.Source.Size()
	require.NoError(t, f.device.WriteTexture(&gpu.ImageCopyTexture{Texture: copier.Source}, fillBytes(cyan, 64), &size))
	require.NoError(t, f.app.Update())

	assert.Equal(t, fillBytes(cyan, 64), f.targetPixels(t, copier))
}

func TestCopyRunsOncePerView(t *testing.T) {
	f := newFixture(t)
	ecs.Insert(f.app.World(), f.app.World().Spawn(), render.Camera2d{})
	f.spawnCopier(t, 4, 4, pink)

	require.NoError(t, f.app.Update())
	assert.Len(t, f.copies(), 2)
}

func TestPinnedExtentLeavesRestOfTarget(t *testing.T) {
	f := newFixture(t, WithPinnedExtent(300, 200))
	_, copier := f.spawnCopier(t, 512, 512, pink)

	size := copier.Source.Size()
	require.NoError(t, f.device.WriteTexture(&gpu.ImageCopyTexture{Texture: copier.Source}, fillBytes(cyan, 512*512), &size))
	require.NoError(t, f.app.Update())

	copies := f.copies()
	require.Len(t, copies, 1)
	assert.Equal(t, wgpu.Extent3D{Width: 300, Height: 200, DepthOrArrayLayers: 1}, copies[0].Size)

	pixels := f.targetPixels(t, copier)
	stride := 512 * len(pink)
	copied := fillBytes(cyan, 300)
	kept := fillBytes(pink, 212)
	for y := 0; y < 512; y++ {
		row := pixels[y*stride : (y+1)*stride]
		if y < 200 {
			assert.Equal(t, copied, row[:300*len(pink)], "row %d copied region", y)
			assert.Equal(t, kept, row[300*len(pink):], "row %d right of region", y)
			continue
		}
		assert.Equal(t, fillBytes(pink, 512), row, "row %d below region", y)
	}
}

func TestPinnedExtentLargerThanTextureFails(t *testing.T) {
	f := newFixture(t, WithPinnedExtent(300, 200))
	f.spawnCopier(t, 64, 64, pink)

	assert.ErrorIs(t, f.app.Update(), gpu.ErrCopyOutOfBounds)
	assert.Empty(t, f.copies())
}

func TestWithPinnedExtentZeroKeepsFullExtent(t *testing.T) {
	p := NewPlugin(WithPinnedExtent(300, 200), WithPinnedExtent(0, 200)).(*plugin)
	assert.Nil(t, p.pinned)
}

func TestSizeMismatchAbortsBeforeAnyCopy(t *testing.T) {
	f := newFixture(t)
	f.spawnCopier(t, 4, 4, pink)

	_, bad := f.spawnCopier(t, 4, 4, pink)
	small, err := f.device.CreateTexture(&gpu.TextureDescriptor{
		Size:   wgpu.Extent3D{Width: 2, Height: 2},
		Format: wgpu.TextureFormatRGBA32Float,
		Usage:  SourceUsage,
	})
	require.NoError(t, err)
	bad.Source = small
	ecs.Insert(f.app.World(), f.app.World().Spawn(), bad)

	err = f.app.Update()
	assert.ErrorIs(t, err, ErrTextureSizeMismatch)
	assert.Empty(t, f.copies())
}

func TestLayerCountMismatchAborts(t *testing.T) {
	f := newFixture(t)
	e, copier := f.spawnCopier(t, 4, 4, pink)
	layered, err := f.device.CreateTexture(&gpu.TextureDescriptor{
		Size:   wgpu.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 3},
		Format: wgpu.TextureFormatRGBA32Float,
		Usage:  SourceUsage,
	})
	require.NoError(t, err)
	copier.Source = layered
	ecs.Insert(f.app.World(), e, copier)

	err = f.app.Update()
	assert.ErrorIs(t, err, ErrTextureSizeMismatch)
	assert.Empty(t, f.copies())
}

func TestMissingMipLevelsAborts(t *testing.T) {
	f := newFixture(t)
	e, copier := f.spawnCopier(t, 4, 4, pink)
	copier.Source = mipless{Texture: copier.Source}
	ecs.Insert(f.app.World(), e, copier)

	assert.ErrorIs(t, f.app.Update(), ErrMissingMipLevels)
	assert.Empty(t, f.copies())
}

func TestTargetNotPreparedAborts(t *testing.T) {
	f := newFixture(t)
	e, copier := f.spawnCopier(t, 4, 4, pink)
	require.True(t, f.images().Remove(copier.Target))
	ecs.Insert(f.app.World(), e, copier)

	assert.ErrorIs(t, f.app.Update(), ErrTargetNotPrepared)
	assert.Empty(t, f.copies())
}

func TestDespawnedCopierStopsCopying(t *testing.T) {
	f := newFixture(t)
	e, _ := f.spawnCopier(t, 4, 4, pink)

	require.NoError(t, f.app.Update())
	require.Len(t, f.copies(), 1)

	f.app.World().Despawn(e)
	require.NoError(t, f.app.Update())
	require.NoError(t, f.app.Update())
	assert.Len(t, f.copies(), 1)
	assert.Empty(t, ecs.Resource[TextureCopiers](f.app.RenderApp().World()).Entities)
}

func TestCopierAddedAfterExtractionWaitsOneFrame(t *testing.T) {
	f := newFixture(t)
	var late ecs.Entity
	added := false
	f.app.RenderApp().AddExtractSystem(func(main, renderWorld *ecs.World) {
		if added {
			return
		}
		added = true
		copier, err := NewTextureCopier(f.device, ecs.Resource[asset.Images](main), wgpu.TextureFormatRGBA32Float, 4, 4, black)
		require.NoError(t, err)
		late = main.Spawn()
		ecs.Insert(main, late, copier)

		assert.NotContains(t, ecs.Resource[TextureCopiers](renderWorld).Entities, late)
	})

	require.NoError(t, f.app.Update())
	assert.Empty(t, f.copies())

	var mirrored []ecs.Entity
	f.app.RenderApp().AddExtractSystem(func(_, renderWorld *ecs.World) {
		mirrored = append([]ecs.Entity(nil), ecs.Resource[TextureCopiers](renderWorld).Entities...)
	})
	require.NoError(t, f.app.Update())
	assert.Equal(t, []ecs.Entity{late}, mirrored)
	assert.Len(t, f.copies(), 1)
}

func TestExtractRebuildsMirror(t *testing.T) {
	main := ecs.NewWorld()
	renderWorld := ecs.NewWorld()
	ecs.InsertResource(renderWorld, &TextureCopiers{})

	a := main.Spawn()
	b := main.Spawn()
	ecs.Insert(main, a, TextureCopier{Target: asset.Handle{Index: 0, Generation: 1}})
	ecs.Insert(main, b, TextureCopier{Target: asset.Handle{Index: 1, Generation: 1}})

	ExtractTextureCopiers(main, renderWorld)
	assert.Equal(t, []ecs.Entity{a, b}, ecs.Resource[TextureCopiers](renderWorld).Entities)
	got, ok := ecs.Get[TextureCopier](renderWorld, b)
	require.True(t, ok)
	assert.Equal(t, asset.Handle{Index: 1, Generation: 1}, got.Target)

	main.Despawn(a)
	ExtractTextureCopiers(main, renderWorld)
	assert.Equal(t, []ecs.Entity{b}, ecs.Resource[TextureCopiers](renderWorld).Entities)
}

func TestNodeSkipsEntitiesMissingFromRenderWorld(t *testing.T) {
	device := gpu.NewSoftwareDevice()
	world := ecs.NewWorld()
	ecs.InsertResource(world, render.NewRenderAssets())
	gone := world.Spawn()
	ecs.Insert(world, gone, TextureCopier{Target: asset.Handle{Index: 9, Generation: 1}})
	world.Despawn(gone)
	ecs.InsertResource(world, &TextureCopiers{Entities: []ecs.Entity{gone}})

	node := NewCopyTextureFromComputeNode(world, nil)
	node.Update(world)

	renderCtx := render_graph.NewRenderContext(device)
	require.NoError(t, node.Run(nil, renderCtx, world))
	buffers, err := renderCtx.Finish()
	require.NoError(t, err)
	assert.Empty(t, buffers)
}

func TestPluginRequiresRenderApp(t *testing.T) {
	assert.ErrorIs(t, app.NewApp().AddPlugins(NewPlugin()), app.ErrNoRenderApp)
}
