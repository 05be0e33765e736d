package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/app"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/profiler"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/window"
	log "github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned by Run when the engine is already running.
var ErrAlreadyRunning = errors.New("engine: already running")

// engine implements the Engine interface.
// Drives the app one frame at a time from the window message loop or, without
// a window, from a plain frame loop.
type engine struct {
	mu      *sync.Mutex
	running bool

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	app    app.App
	window window.Window

	profiler         *profiler.Profiler
	profilingEnabled bool

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // 0 = run until quit
	frames           uint64
	err              error
}

// Engine is the main entry point for the engine.
// It owns the frame loop, frame limiting and profiling of one App.
type Engine interface {
	// App returns the app driven by the engine.
	//
	// Returns:
	//   - app.App: the app instance
	App() app.App

	// Window returns the underlying window, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the frame loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frames returns the number of frames completed so far.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// Run runs frames until the window closes, Quit is called, the frame
	// budget is spent or a frame fails. Blocks the calling goroutine, which
	// must be the main thread when a window is used.
	//
	// Returns:
	//   - error: the error of the failing frame, or nil
	Run() error

	// Quit signals the frame loop to stop after the current frame.
	// Safe to call multiple times and from any goroutine; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine driving a.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - a: the app to drive
//   - options: functional options for engine configuration (profiling, frame limit, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(a app.App, options ...EngineBuilderOption) Engine {
	if a == nil {
		panic("engine: app is nil")
	}
	e := &engine{
		mu:               &sync.Mutex{},
		quitChannel:      make(chan struct{}),
		app:              a,
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			r := e.app.RenderApp()
			if r == nil || width <= 0 || height <= 0 {
				return
			}
			if surface := r.Device().Surface(); surface != nil {
				surface.Configure(uint32(width), uint32(height))
			}
		})
	}

	return e
}

func (e *engine) App() app.App {
	return e.app
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *engine) Run() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	entry := log.WithField("component", "engine")
	entry.WithFields(log.Fields{
		"windowed":   e.window != nil,
		"max_frames": e.maxFrames,
	}).Info("engine started")

	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			if !e.frame() {
				e.window.RequestClose()
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		for e.frame() {
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	entry.WithField("frames", e.frames).Info("engine stopped")
	return e.err
}

// Quit signals the frame loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil {
		e.window.RequestClose()
	}
}

// signalQuit closes the quit channel to signal the frame loop to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// frame runs one app update, then profiles and limits the frame rate.
// Returns false once the loop should stop.
func (e *engine) frame() bool {
	select {
	case <-e.quitChannel:
		return false
	default:
	}

	start := time.Now()
	if err := e.app.Update(); err != nil {
		log.WithField("component", "engine").WithError(err).Error("frame failed")
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		e.signalQuit()
		return false
	}

	e.mu.Lock()
	e.frames++
	done := e.maxFrames > 0 && e.frames >= e.maxFrames
	profiling := e.profilingEnabled
	limit := e.renderFrameLimit
	e.mu.Unlock()

	if profiling && e.profiler != nil {
		e.profiler.Tick(time.Since(start))
	}
	if done {
		e.signalQuit()
		return false
	}

	// Frame rate limiting
	if limit > 0 {
		if remaining := limit - time.Since(start); remaining > 0 {
			select {
			case <-e.quitChannel:
				return false
			case <-time.After(remaining):
			}
		}
	}
	return true
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

// SetRenderFrameLimit sets an optional frame rate cap.
// Pass 0 to uncap the frame loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.renderFrameLimit = frameDuration(fps)
}

// frameDuration converts a frame rate to the minimum frame duration. 0 is uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
