package render_graph

// RenderGraphBuilderOption is a functional option applied to a graph during construction via NewRenderGraph.
type RenderGraphBuilderOption func(*renderGraph)

// WithName sets the graph name used in logs and errors.
//
// Parameters:
//   - name: the graph name
//
// Returns:
//   - RenderGraphBuilderOption: option function to apply
func WithName(name string) RenderGraphBuilderOption {
	return func(g *renderGraph) {
		g.name = name
	}
}
