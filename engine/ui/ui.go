package ui

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/app"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
)

// ImageNode shows an image centred in every 2D view.
type ImageNode struct {
	// Image is the image to show.
	Image asset.Handle
	// Width and Height are the node size in pixels. Zero uses the image size.
	Width, Height uint32
}

// ExtractUiImages rebuilds the render world's ExtractedUiImages from the
// main-world ImageNode components, in main-world iteration order.
//
// Parameters:
//   - main: the main world
//   - renderWorld: the render world
func ExtractUiImages(main, renderWorld *ecs.World) {
	extracted := ecs.Resource[render.ExtractedUiImages](renderWorld)
	extracted.Items = extracted.Items[:0]
	for e, node := range ecs.Query[ImageNode](main) {
		extracted.Items = append(extracted.Items, render.ExtractedUiImage{
			Entity: e,
			Image:  node.Image,
			Width:  node.Width,
			Height: node.Height,
		})
	}
}

// Plugin registers UI image extraction with the render app.
type Plugin struct{}

var _ app.Plugin = Plugin{}

func (Plugin) Name() string {
	return "ui"
}

func (Plugin) Build(a app.App) error {
	r := a.RenderApp()
	if r == nil {
		return fmt.Errorf("%w: ui", app.ErrNoRenderApp)
	}
	r.AddExtractSystem(ExtractUiImages)
	return nil
}
