package render

import "github.com/Carmen-Shannon/oxy-compute-display/engine/render_graph"

// Root graph nodes.
const (
	// CameraDriverLabel runs the view sub-graph once per extracted camera.
	CameraDriverLabel render_graph.Label = "camera_driver"
)

// Core2d is the sub-graph that renders one 2D view.
const Core2d render_graph.Label = "core_2d"

// Core2d nodes, in execution order. Plugins order their own nodes against these.
const (
	Node2dStartMainPass render_graph.Label = "start_main_pass"
	Node2dMainPass      render_graph.Label = "main_pass"
	Node2dEndMainPass   render_graph.Label = "end_main_pass"
)
