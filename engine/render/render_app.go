package render

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render_graph"
	log "github.com/sirupsen/logrus"
)

// ExtractSystem copies what the render world needs for the next frame out of the main world.
type ExtractSystem func(main, renderWorld *ecs.World)

// renderApp implements the RenderApp interface.
type renderApp struct {
	mu             *sync.Mutex
	device         gpu.Device
	world          *ecs.World
	graph          render_graph.RenderGraph
	extractSystems []ExtractSystem
	pool           worker.DynamicWorkerPool
	prepareWorkers int
	frames         uint64
}

// RenderApp owns the render world and runs the per-frame phases against it:
// extract, prepare, render and cleanup. The phases of one frame run strictly
// one after another.
type RenderApp interface {
	// World returns the render world.
	World() *ecs.World

	// Graph returns the root render graph. Its Core2d sub-graph renders each 2D view.
	Graph() render_graph.RenderGraph

	// Device returns the GPU device.
	Device() gpu.Device

	// AddExtractSystem appends systems that run during Extract, in registration order.
	//
	// Parameters:
	//   - systems: the extract systems
	AddExtractSystem(systems ...ExtractSystem)

	// Extract runs every extract system against main.
	//
	// Parameters:
	//   - main: the main world
	Extract(main *ecs.World)

	// Prepare uploads the images extracted this frame and waits for all uploads.
	//
	// Returns:
	//   - error: the joined upload errors
	Prepare() error

	// Render updates and runs the render graph, submits the recorded commands
	// and presents the surface.
	//
	// Returns:
	//   - error: a node, submission or present error
	Render() error

	// Cleanup despawns every render-world entity.
	Cleanup()

	// Frame runs Extract, Prepare, Render and Cleanup. Cleanup runs even when
	// an earlier phase fails.
	//
	// Parameters:
	//   - main: the main world
	//
	// Returns:
	//   - error: the first phase error
	Frame(main *ecs.World) error

	// Frames returns the number of completed frames.
	Frames() uint64
}

var _ RenderApp = &renderApp{}

// NewRenderApp creates a render app for device. The render world starts with
// the RenderDevice, RenderAssets and extraction resources, and the graph with
// the camera driver and the Core2d sub-graph.
//
// Parameters:
//   - device: the GPU device
//   - options: functional options applied to the render app
//
// Returns:
//   - RenderApp: the new render app
func NewRenderApp(device gpu.Device, options ...RenderAppBuilderOption) RenderApp {
	if device == nil {
		panic("render: device is nil")
	}
	r := &renderApp{
		mu:             &sync.Mutex{},
		device:         device,
		world:          ecs.NewWorld(),
		graph:          render_graph.NewRenderGraph(),
		prepareWorkers: 4,
	}
	for _, opt := range options {
		opt(r)
	}

	r.pool = worker.NewDynamicWorkerPool(r.prepareWorkers, 256, 1*time.Second)

	ecs.InsertResource(r.world, &RenderDevice{Device: device})
	ecs.InsertResource(r.world, NewRenderAssets())
	ecs.InsertResource(r.world, &ExtractedImages{})
	ecs.InsertResource(r.world, &ExtractedUiImages{})

	if err := r.buildGraph(); err != nil {
		panic(fmt.Sprintf("render: failed to build render graph: %v", err))
	}
	r.extractSystems = append(r.extractSystems, extractCameras, extractImages)

	return r
}

func (r *renderApp) buildGraph() error {
	core2d := render_graph.NewRenderGraph(render_graph.WithName(string(Core2d)))
	if err := core2d.AddNode(Node2dStartMainPass, render_graph.EmptyNode{}); err != nil {
		return err
	}
	if err := core2d.AddNode(Node2dMainPass, newMainPass2dNode(r.world)); err != nil {
		return err
	}
	if err := core2d.AddNode(Node2dEndMainPass, render_graph.EmptyNode{}); err != nil {
		return err
	}
	if err := core2d.AddNodeEdge(Node2dStartMainPass, Node2dMainPass); err != nil {
		return err
	}
	if err := core2d.AddNodeEdge(Node2dMainPass, Node2dEndMainPass); err != nil {
		return err
	}
	if err := r.graph.AddSubGraph(Core2d, core2d); err != nil {
		return err
	}
	return r.graph.AddNode(CameraDriverLabel, &cameraDriverNode{})
}

func (r *renderApp) World() *ecs.World {
	return r.world
}

func (r *renderApp) Graph() render_graph.RenderGraph {
	return r.graph
}

func (r *renderApp) Device() gpu.Device {
	return r.device
}

func (r *renderApp) AddExtractSystem(systems ...ExtractSystem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractSystems = append(r.extractSystems, systems...)
}

func (r *renderApp) Extract(main *ecs.World) {
	r.mu.Lock()
	systems := r.extractSystems
	r.mu.Unlock()

	for _, sys := range systems {
		sys(main, r.world)
	}
}

func (r *renderApp) Prepare() error {
	return prepareImages(r.device, r.pool, r.world)
}

func (r *renderApp) Render() (err error) {
	r.graph.Update(r.world)

	if surface := r.device.Surface(); surface != nil {
		target, acquireErr := surface.AcquireTexture()
		if acquireErr != nil {
			return fmt.Errorf("render: acquire surface texture: %w", acquireErr)
		}
		ecs.InsertResource(r.world, &ViewTarget{Texture: target})
		defer func() {
			ecs.RemoveResource[ViewTarget](r.world)
			err = errors.Join(err, surface.Present())
		}()
	}

	renderCtx := render_graph.NewRenderContext(r.device)
	if err := r.graph.Run(renderCtx, r.world); err != nil {
		renderCtx.Release()
		return err
	}

	buffers, err := renderCtx.Finish()
	if err != nil {
		renderCtx.Release()
		return fmt.Errorf("render: finish commands: %w", err)
	}
	if len(buffers) == 0 {
		return nil
	}
	if err := r.device.Submit(buffers...); err != nil {
		return fmt.Errorf("render: submit: %w", err)
	}
	return nil
}

func (r *renderApp) Cleanup() {
	r.world.ClearEntities()
	r.frames++
}

func (r *renderApp) Frame(main *ecs.World) error {
	defer r.Cleanup()

	r.Extract(main)
	if err := r.Prepare(); err != nil {
		return err
	}
	if err := r.Render(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"component": "render",
		"frame":     r.frames,
	}).Trace("frame rendered")
	return nil
}

func (r *renderApp) Frames() uint64 {
	return r.frames
}
