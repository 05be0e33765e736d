package render

import (
	"cmp"
	"errors"
	"slices"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render_graph"
	log "github.com/sirupsen/logrus"
)

// extractCameras mirrors every main-world Camera2d into the render world under the same entity.
func extractCameras(main, renderWorld *ecs.World) {
	for e, cam := range ecs.Query[Camera2d](main) {
		re := renderWorld.GetOrSpawn(e)
		ecs.Insert(renderWorld, re, ExtractedView{ClearColor: cam.ClearColor, Order: cam.Order})
	}
}

// cameraDriverNode queues the Core2d sub-graph once per extracted view, in view order.
type cameraDriverNode struct{}

var _ render_graph.Node = &cameraDriverNode{}

func (n *cameraDriverNode) Update(*ecs.World) {}

func (n *cameraDriverNode) Run(graphCtx *render_graph.Context, _ *render_graph.RenderContext, world *ecs.World) error {
	type view struct {
		entity ecs.Entity
		order  int
	}
	var views []view
	for e, v := range ecs.Query[ExtractedView](world) {
		views = append(views, view{entity: e, order: v.Order})
	}
	slices.SortStableFunc(views, func(a, b view) int { return cmp.Compare(a.order, b.order) })

	for _, v := range views {
		graphCtx.RunSubGraphForView(Core2d, v.entity)
	}
	return nil
}

// mainPass2dNode clears the view target and draws the extracted UI images centred on it.
type mainPass2dNode struct {
	views *ecs.QueryState[ExtractedView]
}

var _ render_graph.Node = &mainPass2dNode{}

func newMainPass2dNode(world *ecs.World) *mainPass2dNode {
	return &mainPass2dNode{views: ecs.NewQueryState[ExtractedView](world)}
}

func (n *mainPass2dNode) Update(world *ecs.World) {
	n.views.UpdateArchetypes(world)
}

func (n *mainPass2dNode) Run(graphCtx *render_graph.Context, renderCtx *render_graph.RenderContext, world *ecs.World) error {
	viewEntity, ok := graphCtx.View()
	if !ok {
		return nil
	}
	view, ok := n.views.GetManual(world, viewEntity)
	if !ok {
		return nil
	}
	target, ok := ecs.ResourceOk[ViewTarget](world)
	if !ok || target.Texture == nil {
		return nil
	}

	encoder, err := renderCtx.CommandEncoder()
	if err != nil {
		return err
	}
	pass, err := encoder.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label:      "main_pass_2d",
		Target:     target.Texture,
		ClearColor: view.ClearColor,
	})
	if err != nil {
		return err
	}

	images := ecs.Resource[RenderAssets](world)
	size := target.Texture.Size()
	var drawErr error
	for _, item := range ecs.Resource[ExtractedUiImages](world).Items {
		gpuImage, ok := images.Get(item.Image)
		if !ok {
			log.WithFields(log.Fields{
				"component": "render",
				"image":     item.Image,
			}).Trace("ui image not uploaded yet")
			continue
		}
		w, h := item.Width, item.Height
		if w == 0 || h == 0 {
			w, h = gpuImage.Size.Width, gpuImage.Size.Height
		}
		if err := pass.DrawTexture(gpuImage.Texture, CenteredRect(size.Width, size.Height, w, h)); err != nil {
			drawErr = err
			break
		}
	}
	return errors.Join(drawErr, pass.End())
}

// CenteredRect returns a w×h rectangle centred in a targetW×targetH target.
// The rectangle origin is negative when it is larger than the target.
//
// Parameters:
//   - targetW, targetH: the target size in pixels
//   - w, h: the rectangle size in pixels
//
// Returns:
//   - gpu.Rect: the centred rectangle
func CenteredRect(targetW, targetH, w, h uint32) gpu.Rect {
	return gpu.Rect{
		X:      int32((int64(targetW) - int64(w)) / 2),
		Y:      int32((int64(targetH) - int64(h)) / 2),
		Width:  w,
		Height: h,
	}
}
