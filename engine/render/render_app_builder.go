package render

// RenderAppBuilderOption is a functional option applied to a render app during construction via NewRenderApp.
type RenderAppBuilderOption func(*renderApp)

// WithPrepareWorkers sets the number of workers uploading images during Prepare.
// Values <= 0 keep the default of 4.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - RenderAppBuilderOption: option function to apply
func WithPrepareWorkers(n int) RenderAppBuilderOption {
	return func(r *renderApp) {
		if n > 0 {
			r.prepareWorkers = n
		}
	}
}
