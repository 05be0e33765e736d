package render_graph

import (
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
)

type subGraphRun struct {
	label   Label
	view    ecs.Entity
	hasView bool
}

// Context is handed to a running node. It carries the view entity the graph
// runs for, if any, and lets the node queue sub-graphs to run right after it.
type Context struct {
	node    Label
	view    ecs.Entity
	hasView bool
	queued  []subGraphRun
}

// Node returns the label of the running node.
func (c *Context) Node() Label {
	return c.node
}

// View returns the view entity the current graph runs for.
//
// Returns:
//   - ecs.Entity: the view entity
//   - bool: false when the graph runs without a view
func (c *Context) View() (ecs.Entity, bool) {
	return c.view, c.hasView
}

// RunSubGraph queues the sub-graph registered under label to run after the
// current node, for the same view as the current graph.
//
// Parameters:
//   - label: the sub-graph label
func (c *Context) RunSubGraph(label Label) {
	c.queued = append(c.queued, subGraphRun{label: label, view: c.view, hasView: c.hasView})
}

// RunSubGraphForView queues the sub-graph registered under label to run after
// the current node for view.
//
// Parameters:
//   - label: the sub-graph label
//   - view: the render-world view entity
func (c *Context) RunSubGraphForView(label Label, view ecs.Entity) {
	c.queued = append(c.queued, subGraphRun{label: label, view: view, hasView: true})
}

// RenderContext carries the device through one graph run and collects the
// command buffers the run produces.
type RenderContext struct {
	device  gpu.Device
	encoder gpu.CommandEncoder
	buffers []gpu.CommandBuffer
}

// NewRenderContext creates a render context for one frame.
//
// Parameters:
//   - device: the device commands are recorded for
//
// Returns:
//   - *RenderContext: the render context
func NewRenderContext(device gpu.Device) *RenderContext {
	return &RenderContext{device: device}
}

// Device returns the device of this frame.
func (r *RenderContext) Device() gpu.Device {
	return r.device
}

// CommandEncoder returns the frame's shared command encoder, creating it on first use.
//
// Returns:
//   - gpu.CommandEncoder: the encoder
//   - error: if the device fails to create one
func (r *RenderContext) CommandEncoder() (gpu.CommandEncoder, error) {
	if r.encoder != nil {
		return r.encoder, nil
	}
	enc, err := r.device.CreateCommandEncoder("Frame Encoder")
	if err != nil {
		return nil, err
	}
	r.encoder = enc
	return enc, nil
}

// AddCommandBuffer appends a buffer recorded outside the shared encoder. Work
// already recorded in the shared encoder is flushed first so order is kept.
//
// Parameters:
//   - buffer: the command buffer
//
// Returns:
//   - error: if flushing the shared encoder fails
func (r *RenderContext) AddCommandBuffer(buffer gpu.CommandBuffer) error {
	if err := r.flush(); err != nil {
		return err
	}
	r.buffers = append(r.buffers, buffer)
	return nil
}

// Finish flushes the shared encoder and returns every buffer of the frame in recording order.
//
// Returns:
//   - []gpu.CommandBuffer: the buffers to submit
//   - error: if the shared encoder cannot be finished
func (r *RenderContext) Finish() ([]gpu.CommandBuffer, error) {
	if err := r.flush(); err != nil {
		return nil, err
	}
	out := r.buffers
	r.buffers = nil
	return out, nil
}

// Release drops the shared encoder and any unsubmitted buffers.
func (r *RenderContext) Release() {
	if r.encoder != nil {
		r.encoder.Release()
		r.encoder = nil
	}
	for _, b := range r.buffers {
		b.Release()
	}
	r.buffers = nil
}

func (r *RenderContext) flush() error {
	if r.encoder == nil {
		return nil
	}
	enc := r.encoder
	r.encoder = nil
	cb, err := enc.Finish()
	if err != nil {
		enc.Release()
		return err
	}
	r.buffers = append(r.buffers, cb)
	return nil
}
