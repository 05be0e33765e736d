package app

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedPlugin struct {
	name  string
	built int
	err   error
}

func (p *namedPlugin) Name() string { return p.name }

func (p *namedPlugin) Build(App) error {
	p.built++
	return p.err
}

func TestStartupRunsOnceBeforeUpdate(t *testing.T) {
	a := NewApp()
	var trace []string
	a.AddSystems(Startup, func(*ecs.World) error { trace = append(trace, "startup"); return nil })
	a.AddSystems(Update, func(*ecs.World) error { trace = append(trace, "update"); return nil })

	require.NoError(t, a.Update())
	require.NoError(t, a.Update())
	assert.Equal(t, []string{"startup", "update", "update"}, trace)
}

func TestSystemErrorStopsFrame(t *testing.T) {
	a := NewApp()
	boom := errors.New("boom")
	ran := false
	a.AddSystems(Update,
		func(*ecs.World) error { return boom },
		func(*ecs.World) error { ran = true; return nil },
	)

	err := a.Update()
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
	assert.Equal(t, uint64(0), ecs.Resource[Time](a.World()).Frame)
}

func TestAddPlugins(t *testing.T) {
	a := NewApp()
	p := &namedPlugin{name: "p"}
	require.NoError(t, a.AddPlugins(p))
	assert.Equal(t, 1, p.built)

	assert.ErrorIs(t, a.AddPlugins(&namedPlugin{name: "p"}), ErrDuplicatePlugin)

	boom := errors.New("boom")
	assert.ErrorIs(t, a.AddPlugins(&namedPlugin{name: "q", err: boom}), boom)
}

func TestTimeAdvances(t *testing.T) {
	now := time.Unix(100, 0)
	a := NewApp(WithClock(func() time.Time { return now }))

	require.NoError(t, a.Update())
	tm := ecs.Resource[Time](a.World())
	assert.Equal(t, time.Duration(0), tm.Delta)
	assert.Equal(t, uint64(1), tm.Frame)

	now = now.Add(16 * time.Millisecond)
	require.NoError(t, a.Update())
	assert.Equal(t, 16*time.Millisecond, tm.Delta)
	assert.Equal(t, 16*time.Millisecond, tm.Elapsed)
	assert.Equal(t, uint64(2), tm.Frame)
}

func TestMainWorldResources(t *testing.T) {
	a := NewApp()
	_, ok := ecs.ResourceOk[asset.Images](a.World())
	assert.True(t, ok)
	_, ok = ecs.ResourceOk[render.RenderDevice](a.World())
	assert.False(t, ok)
	assert.Nil(t, a.RenderApp())

	device := gpu.NewSoftwareDevice()
	a = NewApp(WithRenderApp(render.NewRenderApp(device)))
	rd, ok := ecs.ResourceOk[render.RenderDevice](a.World())
	require.True(t, ok)
	assert.Equal(t, gpu.BackendTypeSoftware, rd.Backend())
}

func TestRenderFrameErrorIsReturned(t *testing.T) {
	device := gpu.NewSoftwareDevice()
	a := NewApp(WithRenderApp(render.NewRenderApp(device)))
	a.AddSystems(Startup, func(world *ecs.World) error {
		ecs.Resource[asset.Images](world).Add(asset.Image{
			Size:   wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
			Format: wgpu.TextureFormatRGBA8Unorm,
			Data:   []byte{1},
		})
		return nil
	})

	assert.ErrorIs(t, a.Update(), gpu.ErrDataSizeMismatch)
}
