package display_compute

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/render_graph"
	"github.com/cogentcore/webgpu/wgpu"
	log "github.com/sirupsen/logrus"
)

// Copy node errors. Each one aborts the frame before any copy is recorded.
var (
	// ErrTargetNotPrepared is returned when a copier's target image has no GPU texture.
	ErrTargetNotPrepared = errors.New("display_compute: target image has no gpu texture")

	// ErrTextureSizeMismatch is returned when the source and target sizes differ.
	ErrTextureSizeMismatch = errors.New("display_compute: source and target sizes differ")

	// ErrMissingMipLevels is returned when the source or the target has no mip level.
	ErrMissingMipLevels = errors.New("display_compute: texture has no mip levels")
)

// copyJob is one validated copy.
type copyJob struct {
	entity ecs.Entity
	source gpu.Texture
	target gpu.Texture
	size   wgpu.Extent3D
}

// CopyTextureFromComputeNode copies every extracted TextureCopier source into
// its target texture at mip level 0.
type CopyTextureFromComputeNode struct {
	copiers *ecs.QueryState[TextureCopier]
	pinned  *wgpu.Extent3D
}

var _ render_graph.Node = &CopyTextureFromComputeNode{}

// NewCopyTextureFromComputeNode creates the node for renderWorld.
//
// Parameters:
//   - renderWorld: the render world the node reads copiers from
//   - pinned: when non-nil, every copy is restricted to the top-left region of that extent
//
// Returns:
//   - *CopyTextureFromComputeNode: the new node
func NewCopyTextureFromComputeNode(renderWorld *ecs.World, pinned *wgpu.Extent3D) *CopyTextureFromComputeNode {
	return &CopyTextureFromComputeNode{
		copiers: ecs.NewQueryState[TextureCopier](renderWorld),
		pinned:  pinned,
	}
}

func (n *CopyTextureFromComputeNode) Update(world *ecs.World) {
	n.copiers.UpdateArchetypes(world)
}

func (n *CopyTextureFromComputeNode) Run(_ *render_graph.Context, renderCtx *render_graph.RenderContext, world *ecs.World) error {
	jobs, err := n.collect(world)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	encoder, err := renderCtx.CommandEncoder()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		err := encoder.CopyTextureToTexture(
			&gpu.ImageCopyTexture{Texture: job.source, Aspect: wgpu.TextureAspectAll},
			&gpu.ImageCopyTexture{Texture: job.target, Aspect: wgpu.TextureAspectAll},
			&job.size,
		)
		if err != nil {
			return fmt.Errorf("display_compute: copy for %v: %w", job.entity, err)
		}
	}

	log.WithFields(log.Fields{
		"component": "display_compute",
		"copies":    len(jobs),
	}).Trace("texture copies recorded")
	return nil
}

// collect resolves and validates every mirrored copier. Entities that are no
// longer in the render world are skipped.
func (n *CopyTextureFromComputeNode) collect(world *ecs.World) ([]copyJob, error) {
	mirror, ok := ecs.ResourceOk[TextureCopiers](world)
	if !ok {
		return nil, nil
	}
	images := ecs.Resource[render.RenderAssets](world)

	jobs := make([]copyJob, 0, len(mirror.Entities))
	for _, e := range mirror.Entities {
		copier, ok := n.copiers.GetManual(world, e)
		if !ok {
			continue
		}
		if copier.Source == nil {
			return nil, fmt.Errorf("%w: %v has no source texture", gpu.ErrNilTexture, e)
		}
		target, ok := images.Get(copier.Target)
		if !ok {
			return nil, fmt.Errorf("%w: %v target %v", ErrTargetNotPrepared, e, copier.Target)
		}

		src := copier.Source.Size()
		srcLayers, dstLayers := max(src.DepthOrArrayLayers, 1), max(target.Size.DepthOrArrayLayers, 1)
		if src.Width != target.Size.Width || src.Height != target.Size.Height || srcLayers != dstLayers {
			return nil, fmt.Errorf("%w: %v source %dx%dx%d, target %dx%dx%d",
				ErrTextureSizeMismatch, e, src.Width, src.Height, srcLayers,
				target.Size.Width, target.Size.Height, dstLayers)
		}
		if copier.Source.MipLevelCount() < 1 || target.MipLevelCount < 1 {
			return nil, fmt.Errorf("%w: %v source %d, target %d",
				ErrMissingMipLevels, e, copier.Source.MipLevelCount(), target.MipLevelCount)
		}

		size := wgpu.Extent3D{Width: src.Width, Height: src.Height, DepthOrArrayLayers: 1}
		if n.pinned != nil {
			if n.pinned.Width > src.Width || n.pinned.Height > src.Height {
				return nil, fmt.Errorf("%w: pinned %dx%d in %v of %dx%d",
					gpu.ErrCopyOutOfBounds, n.pinned.Width, n.pinned.Height, e, src.Width, src.Height)
			}
			size.Width, size.Height = n.pinned.Width, n.pinned.Height
		}

		jobs = append(jobs, copyJob{
			entity: e,
			source: copier.Source,
			target: target.Texture,
			size:   size,
		})
	}
	return jobs, nil
}
