package main

import (
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-compute-display/common"
	"github.com/Carmen-Shannon/oxy-compute-display/engine"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/app"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/config"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/snapshot"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ui"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/window"
	"github.com/Carmen-Shannon/oxy-compute-display/plugin/display_compute"
	"github.com/cogentcore/webgpu/wgpu"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	cfg.ConfigureLogging()
	log.WithFields(cfg.Fields()).Info("SINWAVE")

	// ── Window + Device ─────────────────────────────────────────────────
	var win window.Window
	deviceOptions := []gpu.DeviceBuilderOption{gpu.WithSurfaceSize(cfg.Width, cfg.Height)}
	switch cfg.Backend {
	case gpu.BackendTypeWGPU:
		win = window.NewWindow(
			window.WithTitle("Sin Wave"),
			window.WithSize(int(cfg.Width), int(cfg.Height)),
		)
		deviceOptions = append(deviceOptions,
			gpu.WithSurfaceDescriptor(win.SurfaceDescriptor()),
			gpu.WithSurfaceSize(uint32(win.Width()), uint32(win.Height())),
		)
	case gpu.BackendTypeSoftware:
		deviceOptions = append(deviceOptions, gpu.WithOffscreenSurface())
	}
	device := gpu.NewDevice(cfg.Backend, deviceOptions...)

	// ── App + Plugins ───────────────────────────────────────────────────
	a := app.NewApp(app.WithRenderApp(render.NewRenderApp(device)))

	var pluginOptions []display_compute.PluginBuilderOption
	if cfg.PinnedWidth > 0 {
		pluginOptions = append(pluginOptions, display_compute.WithPinnedExtent(cfg.PinnedWidth, cfg.PinnedHeight))
	}
	if err := a.AddPlugins(ui.Plugin{}, display_compute.NewPlugin(pluginOptions...)); err != nil {
		log.WithError(err).Fatal("failed to add plugins")
	}

	// ── Systems ─────────────────────────────────────────────────────────
	var target asset.Handle
	a.AddSystems(app.Startup, func(world *ecs.World) error {
		h, err := setup(world, cfg.TextureSize)
		target = h
		return err
	})
	w := newWave(cfg.TextureSize)
	a.AddSystems(app.Update, animate(w))

	// ── Engine ──────────────────────────────────────────────────────────
	engineOptions := []engine.EngineBuilderOption{
		engine.WithProfiling(cfg.Profile),
		engine.WithRenderFrameLimit(cfg.FrameLimit),
		engine.WithMaxFrames(cfg.MaxFrames),
	}
	if win != nil {
		engineOptions = append(engineOptions, engine.WithWindow(win))
	}
	eng := engine.NewEngine(a, engineOptions...)

	profiling := cfg.Profile
	if win != nil {
		win.SetKeyDownCallback(func(keyCode uint32) {
			switch keyCode {
			case common.KeyQ:
				eng.Quit()
			case common.KeySpace:
				w.paused = !w.paused
			case common.KeyP:
				profiling = !profiling
				if profiling {
					eng.EnableProfiler()
				} else {
					eng.DisableProfiler()
				}
			}
		})
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		log.Info("interrupted")
		eng.Quit()
	}()

	runErr := eng.Run()

	if cfg.Snapshot != "" {
		if err := saveSnapshot(cfg.Snapshot, a.RenderApp(), target); err != nil {
			log.WithError(err).Error("failed to save snapshot")
		}
	}
	if win != nil {
		_ = win.Close()
	}
	device.Release()

	if runErr != nil {
		log.WithError(runErr).Fatal("engine stopped")
	}
}

// setup spawns the 2D view, the copier with its source texture and the UI node showing the target.
func setup(world *ecs.World, size uint32) (asset.Handle, error) {
	ecs.Insert(world, world.Spawn(), render.Camera2d{ClearColor: wgpu.Color{A: 1}})

	device := ecs.Resource[render.RenderDevice](world)
	copier, err := display_compute.NewTextureCopier(
		device,
		ecs.Resource[asset.Images](world),
		wgpu.TextureFormatRGBA32Float,
		size, size,
		gpu.Float32Pixel(backgroundColor[0], backgroundColor[1], backgroundColor[2], backgroundColor[3]),
	)
	if err != nil {
		return asset.Handle{}, err
	}
	ecs.Insert(world, world.Spawn(), copier)
	ecs.Insert(world, world.Spawn(), ui.ImageNode{Image: copier.Target, Width: size, Height: size})
	return copier.Target, nil
}

// animate writes the wave into every copier source each frame.
func animate(w *wave) app.System {
	return func(world *ecs.World) error {
		if w.paused {
			return nil
		}
		elapsed := ecs.Resource[app.Time](world).Elapsed
		device := ecs.Resource[render.RenderDevice](world)
		for _, copier := range ecs.Query[display_compute.TextureCopier](world) {
			size := copier.Source.Size()
			if size.Width != w.size || size.Height != w.size {
				continue
			}
			err := device.WriteTexture(&gpu.ImageCopyTexture{Texture: copier.Source, Aspect: wgpu.TextureAspectAll}, w.render(elapsed), &size)
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// saveSnapshot writes the GPU texture of the target image to path.
func saveSnapshot(path string, r render.RenderApp, target asset.Handle) error {
	gpuImage, ok := ecs.Resource[render.RenderAssets](r.World()).Get(target)
	if !ok {
		return display_compute.ErrTargetNotPrepared
	}
	return snapshot.Save(path, r.Device(), gpuImage.Texture)
}
