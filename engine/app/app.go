package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
	log "github.com/sirupsen/logrus"
)

// Schedule selects when a system runs.
type Schedule int

const (
	// Startup systems run once, before the first Update systems.
	Startup Schedule = iota
	// Update systems run every frame before extraction.
	Update
)

// String returns the schedule name.
func (s Schedule) String() string {
	switch s {
	case Startup:
		return "startup"
	case Update:
		return "update"
	default:
		return "unknown"
	}
}

// App errors.
var (
	// ErrDuplicatePlugin is returned when a plugin with the same name is added twice.
	ErrDuplicatePlugin = errors.New("app: plugin already added")

	// ErrNoRenderApp is returned by plugins that need a render app when the app has none.
	ErrNoRenderApp = errors.New("app: no render app")
)

// System is a main-world system.
type System func(world *ecs.World) error

// Plugin bundles resources, systems and render-app registrations.
type Plugin interface {
	// Name returns a unique plugin name.
	Name() string

	// Build registers the plugin with a.
	//
	// Parameters:
	//   - a: the app being built
	//
	// Returns:
	//   - error: if registration fails
	Build(a App) error
}

// Time is the main-world resource describing frame timing.
type Time struct {
	// Delta is the time since the previous Update.
	Delta time.Duration
	// Elapsed is the time since the first Update.
	Elapsed time.Duration
	// Frame is the number of the frame being updated, starting at 0.
	Frame uint64
}

// app implements the App interface.
type app struct {
	mu        *sync.Mutex
	world     *ecs.World
	renderApp render.RenderApp
	plugins   map[string]struct{}
	systems   map[Schedule][]System
	started   bool
	start     time.Time
	last      time.Time
	now       func() time.Time
}

// App owns the main world, its systems and an optional render app. Update
// runs one frame: startup systems on the first call, then the update systems
// and then the render app's frame.
type App interface {
	// World returns the main world.
	World() *ecs.World

	// RenderApp returns the render app, or nil when the app does not render.
	RenderApp() render.RenderApp

	// AddPlugins builds plugins in order.
	//
	// Parameters:
	//   - plugins: the plugins to add
	//
	// Returns:
	//   - error: ErrDuplicatePlugin or the first Build error
	AddPlugins(plugins ...Plugin) error

	// AddSystems appends systems to schedule.
	//
	// Parameters:
	//   - schedule: Startup or Update
	//   - systems: the systems, run in order
	AddSystems(schedule Schedule, systems ...System)

	// Update runs one frame.
	//
	// Returns:
	//   - error: the first system error or the render frame error
	Update() error
}

var _ App = &app{}

// NewApp creates an app whose main world holds the Images and Time resources,
// and the RenderDevice when a render app is configured.
//
// Parameters:
//   - options: functional options applied to the app
//
// Returns:
//   - App: the new app
func NewApp(options ...AppBuilderOption) App {
	a := &app{
		mu:      &sync.Mutex{},
		world:   ecs.NewWorld(),
		plugins: map[string]struct{}{},
		systems: map[Schedule][]System{},
		now:     time.Now,
	}
	for _, opt := range options {
		opt(a)
	}

	ecs.InsertResource(a.world, &asset.Images{Assets: asset.NewAssets()})
	ecs.InsertResource(a.world, &Time{})
	if a.renderApp != nil {
		ecs.InsertResource(a.world, &render.RenderDevice{Device: a.renderApp.Device()})
	}
	return a
}

func (a *app) World() *ecs.World {
	return a.world
}

func (a *app) RenderApp() render.RenderApp {
	return a.renderApp
}

func (a *app) AddPlugins(plugins ...Plugin) error {
	for _, p := range plugins {
		a.mu.Lock()
		_, dup := a.plugins[p.Name()]
		if !dup {
			a.plugins[p.Name()] = struct{}{}
		}
		a.mu.Unlock()
		if dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name())
		}

		if err := p.Build(a); err != nil {
			return fmt.Errorf("app: build plugin %s: %w", p.Name(), err)
		}
		log.WithFields(log.Fields{
			"component": "app",
			"plugin":    p.Name(),
		}).Info("plugin added")
	}
	return nil
}

func (a *app) AddSystems(schedule Schedule, systems ...System) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.systems[schedule] = append(a.systems[schedule], systems...)
}

func (a *app) Update() error {
	a.mu.Lock()
	startup := !a.started
	a.started = true
	startupSystems := a.systems[Startup]
	updateSystems := a.systems[Update]
	a.mu.Unlock()

	a.tick(startup)

	if startup {
		if err := runSystems(a.world, Startup, startupSystems); err != nil {
			return err
		}
	}
	if err := runSystems(a.world, Update, updateSystems); err != nil {
		return err
	}

	if a.renderApp != nil {
		if err := a.renderApp.Frame(a.world); err != nil {
			return err
		}
	}

	ecs.Resource[Time](a.world).Frame++
	return nil
}

func (a *app) tick(first bool) {
	now := a.now()
	t := ecs.Resource[Time](a.world)
	if first {
		a.start, a.last = now, now
	}
	t.Delta = now.Sub(a.last)
	t.Elapsed = now.Sub(a.start)
	a.last = now
}

func runSystems(world *ecs.World, schedule Schedule, systems []System) error {
	for i, sys := range systems {
		if err := sys(world); err != nil {
			return fmt.Errorf("app: %s system %d: %w", schedule, i, err)
		}
	}
	return nil
}
