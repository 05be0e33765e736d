package app

import (
	"time"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
)

// AppBuilderOption is a functional option applied to an app during construction via NewApp.
type AppBuilderOption func(*app)

// WithRenderApp attaches a render app. Without one the app only runs main-world systems.
//
// Parameters:
//   - r: the render app
//
// Returns:
//   - AppBuilderOption: option function to apply
func WithRenderApp(r render.RenderApp) AppBuilderOption {
	return func(a *app) {
		a.renderApp = r
	}
}

// WithClock replaces the clock used to fill the Time resource.
//
// Parameters:
//   - now: returns the current time
//
// Returns:
//   - AppBuilderOption: option function to apply
func WithClock(now func() time.Time) AppBuilderOption {
	return func(a *app) {
		if now != nil {
			a.now = now
		}
	}
}
