package display_compute

import (
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
)

// TextureCopiers is the render-world resource listing the entities whose
// TextureCopier was extracted this frame, in main-world iteration order.
type TextureCopiers struct {
	Entities []ecs.Entity
}

// ExtractTextureCopiers rebuilds TextureCopiers from the main world. Each
// TextureCopier is copied into the render world under its main-world entity.
//
// Parameters:
//   - main: the main world
//   - renderWorld: the render world
func ExtractTextureCopiers(main, renderWorld *ecs.World) {
	copiers := ecs.Resource[TextureCopiers](renderWorld)
	copiers.Entities = copiers.Entities[:0]

	for e, copier := range ecs.Query[TextureCopier](main) {
		re := renderWorld.GetOrSpawn(e)
		ecs.Insert(renderWorld, re, *copier)
		copiers.Entities = append(copiers.Entities, re)
	}
}
