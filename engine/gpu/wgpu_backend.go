package gpu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	log "github.com/sirupsen/logrus"
)

// blitShader draws a texture into the current viewport as a full-viewport quad.
// textureLoad keeps the pipeline usable for unfilterable float formats.
const blitShader = `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    var corners = array<vec2<f32>, 6>(
        vec2<f32>(0.0, 0.0), vec2<f32>(1.0, 0.0), vec2<f32>(0.0, 1.0),
        vec2<f32>(0.0, 1.0), vec2<f32>(1.0, 0.0), vec2<f32>(1.0, 1.0),
    );
    let c = corners[index];
    var out: VertexOutput;
    out.position = vec4<f32>(c.x * 2.0 - 1.0, 1.0 - c.y * 2.0, 0.0, 1.0);
    out.uv = c;
    return out;
}

@group(0) @binding(0) var source: texture_2d<f32>;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let dims = vec2<f32>(textureDimensions(source));
    let texel = vec2<i32>(min(in.uv * dims, dims - vec2<f32>(1.0)));
    return textureLoad(source, texel, 0);
}
`

type wgpuDevice struct {
	mu        *sync.Mutex
	instance  *wgpu.Instance
	adapter   *wgpu.Adapter
	device    *wgpu.Device
	queue     *wgpu.Queue
	surface   *wgpuSurface
	pipelines map[wgpu.TextureFormat]*blitPipeline
}

var _ Device = &wgpuDevice{}

type blitPipeline struct {
	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.RenderPipeline
}

func newWGPUDevice(cfg *deviceConfig) *wgpuDevice {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:        &sync.Mutex{},
		instance:  wgpu.CreateInstance(nil),
		pipelines: map[wgpu.TextureFormat]*blitPipeline{},
	}

	var surface *wgpu.Surface
	if cfg.surfaceDescriptor != nil {
		surface = d.instance.CreateSurface(cfg.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    surface,
	})
	if err != nil {
		panic(err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Display Device",
	})
	if err != nil {
		panic(err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if surface != nil {
		d.surface = &wgpuSurface{device: d, surface: surface, presentMode: cfg.presentMode}
		d.surface.Configure(cfg.surfaceWidth, cfg.surfaceHeight)
	}

	log.WithFields(log.Fields{
		"component": "gpu",
		"backend":   BackendTypeWGPU,
		"surface":   surface != nil,
		"fallback":  cfg.forceFallbackAdapter,
	}).Debug("device created")
	return d
}

func (d *wgpuDevice) Backend() BackendType {
	return BackendTypeWGPU
}

func (d *wgpuDevice) CreateTexture(desc *TextureDescriptor) (Texture, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrInvalidTextureSize)
	}
	vd, err := validateDescriptor(desc)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         vd.Label,
		Usage:         vd.Usage,
		Dimension:     vd.Dimension,
		Size:          vd.Size,
		Format:        vd.Format,
		MipLevelCount: vd.MipLevelCount,
		SampleCount:   vd.SampleCount,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuTexture{device: d, desc: vd, texture: tex}, nil
}

func (d *wgpuDevice) WriteTexture(dst *ImageCopyTexture, data []byte, size *wgpu.Extent3D) error {
	if size == nil {
		return fmt.Errorf("%w: nil write size", ErrCopyOutOfBounds)
	}
	t, err := d.own(dst.Texture)
	if err != nil {
		return err
	}
	if err := validateRegion(dst, size); err != nil {
		return err
	}
	if t.desc.Usage&wgpu.TextureUsageCopyDst == 0 {
		return fmt.Errorf("%w: %q", ErrMissingCopyDstUsage, t.desc.Label)
	}

	bpt, _ := BytesPerTexel(t.desc.Format)
	depth := max(size.DepthOrArrayLayers, 1)
	want := int(size.Width) * int(size.Height) * int(depth) * int(bpt)
	if len(data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrDataSizeMismatch, len(data), want)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: dst.MipLevel,
			Origin:   dst.Origin,
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  size.Width * bpt,
			RowsPerImage: size.Height,
		},
		&wgpu.Extent3D{
			Width:              size.Width,
			Height:             size.Height,
			DepthOrArrayLayers: depth,
		},
	)
	return nil
}

func (d *wgpuDevice) ReadTexture(Texture) ([]byte, error) {
	return nil, ErrReadbackUnsupported
}

func (d *wgpuDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuEncoder{device: d, encoder: encoder}, nil
}

func (d *wgpuDevice) Submit(buffers ...CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		cb, ok := b.(*wgpuCommandBuffer)
		if !ok || cb.device != d {
			return fmt.Errorf("gpu: submit of foreign command buffer")
		}
		if cb.consumed {
			return ErrCommandBufferConsumed
		}
		cb.consumed = true
		raw = append(raw, cb.buffer)
	}
	d.queue.Submit(raw...)
	for _, b := range buffers {
		b.(*wgpuCommandBuffer).releaseAfterSubmit()
	}
	return nil
}

func (d *wgpuDevice) Surface() Surface {
	if d.surface == nil {
		return nil
	}
	return d.surface
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.pipelines {
		p.pipeline.Release()
		p.layout.Release()
	}
	d.pipelines = map[wgpu.TextureFormat]*blitPipeline{}
	if d.surface != nil {
		d.surface.surface.Release()
		d.surface = nil
	}
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}

func (d *wgpuDevice) own(tex Texture) (*wgpuTexture, error) {
	if tex == nil {
		return nil, ErrNilTexture
	}
	t, ok := tex.(*wgpuTexture)
	if !ok || t.device != d {
		return nil, ErrForeignTexture
	}
	if t.texture == nil {
		return nil, fmt.Errorf("%w: %q", ErrTextureReleased, t.desc.Label)
	}
	return t, nil
}

// blitPipelineFor returns the cached blit pipeline for targets of format,
// creating it on first use. Callers must hold d.mu.
func (d *wgpuDevice) blitPipelineFor(format wgpu.TextureFormat) (*blitPipeline, error) {
	if p, ok := d.pipelines[format]; ok {
		return p, nil
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "UI Blit Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: blitShader,
		},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "UI Blit Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blit bind group layout: %w", err)
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "UI Blit Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		layout.Release()
		return nil, err
	}
	defer pipelineLayout.Release()

	pipeline, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "UI Blit Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		layout.Release()
		return nil, err
	}

	p := &blitPipeline{layout: layout, pipeline: pipeline}
	d.pipelines[format] = p
	return p, nil
}

type wgpuTexture struct {
	device  *wgpuDevice
	desc    TextureDescriptor
	texture *wgpu.Texture
	// borrowed is set for surface textures, which Present releases.
	borrowed bool
}

func (t *wgpuTexture) Label() string              { return t.desc.Label }
func (t *wgpuTexture) Size() wgpu.Extent3D        { return t.desc.Size }
func (t *wgpuTexture) MipLevelCount() uint32      { return t.desc.MipLevelCount }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *wgpuTexture) Usage() wgpu.TextureUsage   { return t.desc.Usage }

func (t *wgpuTexture) Release() {
	if t.texture == nil || t.borrowed {
		return
	}
	t.texture.Release()
	t.texture = nil
}

type wgpuEncoder struct {
	device   *wgpuDevice
	encoder  *wgpu.CommandEncoder
	passOpen bool
	finished bool
	// bindGroups and views live until the command buffer has been submitted.
	bindGroups []*wgpu.BindGroup
	views      []*wgpu.TextureView
}

func (e *wgpuEncoder) checkRecording() error {
	if e.finished {
		return ErrEncoderFinished
	}
	if e.passOpen {
		return ErrPassInProgress
	}
	return nil
}

func (e *wgpuEncoder) CopyTextureToTexture(src, dst *ImageCopyTexture, size *wgpu.Extent3D) error {
	if err := e.checkRecording(); err != nil {
		return err
	}
	if src == nil || dst == nil {
		return ErrNilTexture
	}
	s, err := e.device.own(src.Texture)
	if err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	t, err := e.device.own(dst.Texture)
	if err != nil {
		return fmt.Errorf("copy destination: %w", err)
	}
	if err := validateCopy(src, dst, size); err != nil {
		return err
	}

	e.encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture:  s.texture,
			MipLevel: src.MipLevel,
			Origin:   src.Origin,
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyTexture{
			Texture:  t.texture,
			MipLevel: dst.MipLevel,
			Origin:   dst.Origin,
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.Extent3D{
			Width:              size.Width,
			Height:             size.Height,
			DepthOrArrayLayers: max(size.DepthOrArrayLayers, 1),
		},
	)
	return nil
}

func (e *wgpuEncoder) BeginRenderPass(desc *RenderPassDescriptor) (RenderPass, error) {
	if err := e.checkRecording(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, ErrNilTexture
	}
	t, err := e.device.own(desc.Target)
	if err != nil {
		return nil, fmt.Errorf("render pass target: %w", err)
	}

	view, err := t.texture.CreateView(nil)
	if err != nil {
		return nil, err
	}
	e.views = append(e.views, view)

	pass := e.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: desc.ClearColor,
			},
		},
	})
	e.passOpen = true
	return &wgpuPass{encoder: e, pass: pass, target: t}, nil
}

func (e *wgpuEncoder) Finish() (CommandBuffer, error) {
	if err := e.checkRecording(); err != nil {
		return nil, err
	}
	e.finished = true

	buffer, err := e.encoder.Finish(nil)
	if err != nil {
		e.Release()
		return nil, err
	}
	cb := &wgpuCommandBuffer{
		device:     e.device,
		buffer:     buffer,
		encoder:    e.encoder,
		bindGroups: e.bindGroups,
		views:      e.views,
	}
	e.encoder, e.bindGroups, e.views = nil, nil, nil
	return cb, nil
}

func (e *wgpuEncoder) Release() {
	e.finished = true
	for _, bg := range e.bindGroups {
		bg.Release()
	}
	for _, v := range e.views {
		v.Release()
	}
	e.bindGroups, e.views = nil, nil
	if e.encoder != nil {
		e.encoder.Release()
		e.encoder = nil
	}
}

type wgpuPass struct {
	encoder *wgpuEncoder
	pass    *wgpu.RenderPassEncoder
	target  *wgpuTexture
	ended   bool
}

func (p *wgpuPass) DrawTexture(tex Texture, dst Rect) error {
	if p.ended {
		return ErrPassEnded
	}
	d := p.encoder.device
	s, err := d.own(tex)
	if err != nil {
		return fmt.Errorf("draw texture: %w", err)
	}
	if s.desc.Usage&wgpu.TextureUsageTextureBinding == 0 {
		return fmt.Errorf("gpu: draw texture %q lacks TextureBinding usage", s.desc.Label)
	}

	// Viewports must lie inside the attachment.
	size := p.target.desc.Size
	if dst.X < 0 || dst.Y < 0 || dst.Width == 0 || dst.Height == 0 ||
		uint64(dst.X)+uint64(dst.Width) > uint64(size.Width) ||
		uint64(dst.Y)+uint64(dst.Height) > uint64(size.Height) {
		log.WithFields(log.Fields{
			"component": "gpu",
			"texture":   s.desc.Label,
		}).Warnf("skipping draw outside %dx%d target", size.Width, size.Height)
		return nil
	}

	d.mu.Lock()
	blit, err := d.blitPipelineFor(p.target.desc.Format)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	view, err := s.texture.CreateView(nil)
	if err != nil {
		return err
	}
	p.encoder.views = append(p.encoder.views, view)

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  s.desc.Label + " Blit Bind Group",
		Layout: blit.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
		},
	})
	if err != nil {
		return err
	}
	p.encoder.bindGroups = append(p.encoder.bindGroups, bindGroup)

	p.pass.SetPipeline(blit.pipeline)
	p.pass.SetBindGroup(0, bindGroup, nil)
	p.pass.SetViewport(float32(dst.X), float32(dst.Y), float32(dst.Width), float32(dst.Height), 0, 1)
	p.pass.Draw(6, 1, 0, 0)
	return nil
}

func (p *wgpuPass) End() error {
	if p.ended {
		return ErrPassEnded
	}
	p.ended = true
	p.pass.End()
	p.pass.Release()
	p.encoder.passOpen = false
	return nil
}

type wgpuCommandBuffer struct {
	device     *wgpuDevice
	buffer     *wgpu.CommandBuffer
	encoder    *wgpu.CommandEncoder
	bindGroups []*wgpu.BindGroup
	views      []*wgpu.TextureView
	consumed   bool
}

func (b *wgpuCommandBuffer) releaseAfterSubmit() {
	for _, bg := range b.bindGroups {
		bg.Release()
	}
	for _, v := range b.views {
		v.Release()
	}
	b.bindGroups, b.views = nil, nil
	b.Release()
}

func (b *wgpuCommandBuffer) Release() {
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
	if b.encoder != nil {
		b.encoder.Release()
		b.encoder = nil
	}
}

type wgpuSurface struct {
	device      *wgpuDevice
	surface     *wgpu.Surface
	presentMode wgpu.PresentMode
	format      wgpu.TextureFormat
	width       uint32
	height      uint32
	current     *wgpuTexture
}

func (s *wgpuSurface) Configure(width, height uint32) {
	d := s.device
	d.mu.Lock()
	defer d.mu.Unlock()

	width, height = max(width, 1), max(height, 1)
	capabilities := s.surface.GetCapabilities(d.adapter)
	s.format = capabilities.Formats[0]
	s.width, s.height = width, height

	s.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: s.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (s *wgpuSurface) Size() (uint32, uint32) {
	return s.width, s.height
}

func (s *wgpuSurface) Format() wgpu.TextureFormat {
	return s.format
}

func (s *wgpuSurface) AcquireTexture() (Texture, error) {
	if s.current != nil {
		return nil, fmt.Errorf("gpu: previous frame surface not yet presented")
	}
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	s.current = &wgpuTexture{
		device: s.device,
		desc: TextureDescriptor{
			Label:         "Surface",
			Size:          wgpu.Extent3D{Width: s.width, Height: s.height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        s.format,
			Usage:         wgpu.TextureUsageRenderAttachment,
		},
		texture:  tex,
		borrowed: true,
	}
	return s.current, nil
}

func (s *wgpuSurface) Present() error {
	if s.current == nil {
		return fmt.Errorf("gpu: present without acquired surface texture")
	}
	s.surface.Present()
	s.current.texture.Release()
	s.current.texture = nil
	s.current = nil
	return nil
}
