package display_compute

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/app"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render_graph"
	"github.com/cogentcore/webgpu/wgpu"
	log "github.com/sirupsen/logrus"
)

// CopyTextureFromComputeLabel is the label of the copy node in the Core2d sub-graph.
const CopyTextureFromComputeLabel render_graph.Label = "copy_texture_from_compute"

// plugin implements app.Plugin for displaying compute results.
type plugin struct {
	pinned *wgpu.Extent3D
}

var _ app.Plugin = &plugin{}

// NewPlugin creates the plugin that copies TextureCopier sources into their
// target images every frame, before the 2D main pass. The copy node lives in
// the Core2d sub-graph, so the copy runs once per 2D view: with two Camera2d
// entities every copier is copied twice per frame.
//
// Parameters:
//   - options: functional options applied to the plugin
//
// Returns:
//   - app.Plugin: the plugin
func NewPlugin(options ...PluginBuilderOption) app.Plugin {
	p := &plugin{}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *plugin) Name() string {
	return "display_compute"
}

func (p *plugin) Build(a app.App) error {
	r := a.RenderApp()
	if r == nil {
		return fmt.Errorf("%w: %s", app.ErrNoRenderApp, p.Name())
	}

	core2d, ok := r.Graph().SubGraph(render.Core2d)
	if !ok {
		return fmt.Errorf("%w: %s", render_graph.ErrUnknownSubGraph, render.Core2d)
	}
	ecs.InsertResource(r.World(), &TextureCopiers{})
	r.AddExtractSystem(ExtractTextureCopiers)

	if err := core2d.AddNode(CopyTextureFromComputeLabel, NewCopyTextureFromComputeNode(r.World(), p.pinned)); err != nil {
		return err
	}
	if err := core2d.AddNodeEdge(CopyTextureFromComputeLabel, render.Node2dStartMainPass); err != nil {
		return err
	}

	fields := log.Fields{"component": "display_compute", "extent": "full"}
	if p.pinned != nil {
		fields["extent"] = fmt.Sprintf("%dx%d", p.pinned.Width, p.pinned.Height)
	}
	log.WithFields(fields).Info("display compute plugin registered")
	return nil
}
