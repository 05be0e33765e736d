package render

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/asset"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/ecs"
	"github.com/Carmen-Shannon/oxy-compute-display/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	log "github.com/sirupsen/logrus"
)

// extractImages moves the image store's change events into the render world.
// Changed images are copied so the main world can keep mutating its own.
func extractImages(main, renderWorld *ecs.World) {
	extracted := ecs.Resource[ExtractedImages](renderWorld)
	extracted.Changed = extracted.Changed[:0]
	extracted.Removed = extracted.Removed[:0]

	images, ok := ecs.ResourceOk[asset.Images](main)
	if !ok || images.Assets == nil {
		return
	}

	seen := map[asset.Handle]int{}
	for _, ev := range images.DrainEvents() {
		switch ev.Kind {
		case asset.EventAdded, asset.EventModified:
			img, ok := images.Get(ev.Handle)
			if !ok {
				continue
			}
			cp := *img
			cp.Data = slices.Clone(img.Data)
			if i, dup := seen[ev.Handle]; dup {
				extracted.Changed[i].Image = cp
				continue
			}
			seen[ev.Handle] = len(extracted.Changed)
			extracted.Changed = append(extracted.Changed, ExtractedImage{Handle: ev.Handle, Image: cp})
		case asset.EventRemoved:
			extracted.Removed = append(extracted.Removed, ev.Handle)
		}
	}
}

// prepareImages uploads extracted images on the worker pool and waits for
// every upload before returning. Removed images are released first.
func prepareImages(device gpu.Device, pool worker.DynamicWorkerPool, renderWorld *ecs.World) error {
	extracted := ecs.Resource[ExtractedImages](renderWorld)
	table := ecs.Resource[RenderAssets](renderWorld)

	for _, h := range extracted.Removed {
		if img, ok := table.remove(h); ok {
			img.Texture.Release()
		}
	}
	if len(extracted.Changed) == 0 {
		return nil
	}

	type upload struct {
		handle   asset.Handle
		image    *GpuImage
		previous *GpuImage
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		uploads []upload
		errs    []error
	)
	for i, ext := range extracted.Changed {
		previous, _ := table.Get(ext.Handle)
		extCap := ext

		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()

				gpuImage, err := uploadImage(device, extCap, previous)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, fmt.Errorf("render: upload %s: %w", extCap.Handle, err))
					return nil, err
				}
				uploads = append(uploads, upload{handle: extCap.Handle, image: gpuImage, previous: previous})
				return gpuImage, nil
			},
		})
	}
	wg.Wait()

	for _, u := range uploads {
		if u.previous != nil && u.previous.Texture != u.image.Texture {
			u.previous.Texture.Release()
		}
		table.set(u.handle, u.image)
	}

	log.WithFields(log.Fields{
		"component": "render",
		"uploaded":  len(uploads),
		"removed":   len(extracted.Removed),
	}).Debug("prepared images")

	return errors.Join(errs...)
}

// uploadImage writes ext into previous' texture when the descriptor is unchanged
// and into a new texture otherwise.
func uploadImage(device gpu.Device, ext ExtractedImage, previous *GpuImage) (*GpuImage, error) {
	desc := ext.Image.TextureDescriptor()
	desc.Usage |= wgpu.TextureUsageCopyDst
	desc.Size.DepthOrArrayLayers = max(desc.Size.DepthOrArrayLayers, 1)
	if desc.Label == "" {
		desc.Label = ext.Handle.String()
	}

	var tex gpu.Texture
	if previous != nil && previous.Size == desc.Size && previous.Format == desc.Format && previous.Texture.Usage() == desc.Usage {
		tex = previous.Texture
	} else {
		created, err := device.CreateTexture(&desc)
		if err != nil {
			return nil, err
		}
		tex = created
	}

	if len(ext.Image.Data) > 0 {
		if err := device.WriteTexture(&gpu.ImageCopyTexture{Texture: tex}, ext.Image.Data, &desc.Size); err != nil {
			if tex != previousTexture(previous) {
				tex.Release()
			}
			return nil, err
		}
	}

	return &GpuImage{
		Texture:       tex,
		Size:          tex.Size(),
		MipLevelCount: tex.MipLevelCount(),
		Format:        tex.Format(),
	}, nil
}

func previousTexture(img *GpuImage) gpu.Texture {
	if img == nil {
		return nil
	}
	return img.Texture
}
