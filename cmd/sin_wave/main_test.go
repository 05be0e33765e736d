package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-compute-display/engine"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/app"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ui"
	"github.com/Carmen-Shannon/oxy-compute-display/plugin/display_compute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func TestWaveRender(t *testing.T) {
	w := newWave(64)
	data := w.render(0)
	require.Len(t, data, 64*64*16)

	// At t=0 the wave crosses the vertical center at x=0.
	at := func(x, y int) []byte {
		off := (y*64 + x) * 16
		return data[off : off+16]
	}
	assert.Equal(t, gpu.Float32Pixel(0, 1, 1, 1), at(0, 32))
	assert.Equal(t, gpu.Float32Pixel(1, 0, 0.5, 1), at(0, 0))

	again := w.render(time.Second)
	assert.NotEqual(t, gpu.Float32Pixel(0, 1, 1, 1), again[(32*64)*16:(32*64)*16+16])
}

func TestSinWaveHeadless(t *testing.T) {
	device := gpu.NewSoftwareDevice(gpu.WithOffscreenSurface(), gpu.WithSurfaceSize(96, 96))
	a := app.NewApp(app.WithRenderApp(render.NewRenderApp(device)))
	require.NoError(t, a.AddPlugins(ui.Plugin{}, display_compute.NewPlugin()))

	var target asset.Handle
	a.AddSystems(app.Startup, func(world *ecs.World) error {
		h, err := setup(world, 64)
		target = h
		return err
	})
	w := newWave(64)
	a.AddSystems(app.Update, animate(w))

	require.NoError(t, engine.NewEngine(a, engine.WithMaxFrames(2)).Run())

	gpuImage, ok := ecs.Resource[render.RenderAssets](a.RenderApp().World()).Get(target)
	require.True(t, ok)
	pixels, err := device.ReadTexture(gpuImage.Texture)
	require.NoError(t, err)
	assert.Equal(t, w.data, pixels)

	path := filepath.Join(t.TempDir(), "wave.tiff")
	require.NoError(t, saveSnapshot(path, a.RenderApp(), target))
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	cfg, err := tiff.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
}
