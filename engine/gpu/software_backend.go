package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	log "github.com/sirupsen/logrus"
)

// CommandKind identifies a command recorded by the software device.
type CommandKind int

const (
	// CommandCopyTextureToTexture is a texture-to-texture copy.
	CommandCopyTextureToTexture CommandKind = iota
	// CommandBeginRenderPass opens a render pass and clears its target.
	CommandBeginRenderPass
	// CommandDrawTexture draws a texture inside a render pass.
	CommandDrawTexture
	// CommandEndRenderPass closes a render pass.
	CommandEndRenderPass
)

// String returns a short name for the command kind.
func (k CommandKind) String() string {
	switch k {
	case CommandCopyTextureToTexture:
		return "copy_texture_to_texture"
	case CommandBeginRenderPass:
		return "begin_render_pass"
	case CommandDrawTexture:
		return "draw_texture"
	case CommandEndRenderPass:
		return "end_render_pass"
	default:
		return "unknown"
	}
}

// CommandRecord describes one command executed by the software device.
type CommandRecord struct {
	// Kind is the command type.
	Kind CommandKind
	// Label is the label of the encoder or render pass the command was recorded in.
	Label string
	// Source is the label of the texture read by the command, if any.
	Source string
	// Destination is the label of the texture written by the command.
	Destination string
	// Size is the copy extent for copies and the destination rectangle size for draws.
	Size wgpu.Extent3D
	// Submission is the 1-based index of the Submit call that executed the command.
	Submission uint64
}

// SoftwareDevice is a Device that keeps textures in host memory and executes
// command buffers synchronously on Submit. It records every executed command,
// which makes it the device of choice for headless runs and tests.
type SoftwareDevice interface {
	Device

	// SubmittedCommands returns a copy of the log of executed commands.
	//
	// Returns:
	//   - []CommandRecord: executed commands in execution order
	SubmittedCommands() []CommandRecord

	// ResetCommandLog clears the command log.
	ResetCommandLog()

	// Submissions returns how many Submit calls have completed.
	Submissions() uint64
}

type softwareDevice struct {
	mu          *sync.Mutex
	surface     *softwareSurface
	commandLog  []CommandRecord
	submissions uint64
}

var _ SoftwareDevice = &softwareDevice{}

// NewSoftwareDevice creates a CPU device.
//
// Parameters:
//   - options: functional options (WithOffscreenSurface, WithSurfaceSize)
//
// Returns:
//   - SoftwareDevice: the new device
func NewSoftwareDevice(options ...DeviceBuilderOption) SoftwareDevice {
	cfg := &deviceConfig{surfaceWidth: 1280, surfaceHeight: 720}
	for _, opt := range options {
		opt(cfg)
	}
	return newSoftwareDevice(cfg)
}

func newSoftwareDevice(cfg *deviceConfig) *softwareDevice {
	d := &softwareDevice{mu: &sync.Mutex{}}
	if cfg.headlessSurface {
		d.surface = &softwareSurface{device: d, format: wgpu.TextureFormatRGBA8Unorm}
		d.surface.Configure(cfg.surfaceWidth, cfg.surfaceHeight)
	}
	log.WithFields(log.Fields{
		"component": "gpu",
		"backend":   BackendTypeSoftware,
		"surface":   cfg.headlessSurface,
	}).Debug("device created")
	return d
}

func (d *softwareDevice) Backend() BackendType {
	return BackendTypeSoftware
}

func (d *softwareDevice) CreateTexture(desc *TextureDescriptor) (Texture, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrInvalidTextureSize)
	}
	vd, err := validateDescriptor(desc)
	if err != nil {
		return nil, err
	}
	bpt, _ := BytesPerTexel(vd.Format)

	t := &softwareTexture{
		device: d,
		desc:   vd,
		bpt:    bpt,
		levels: make([][]byte, vd.MipLevelCount),
	}
	for level := range t.levels {
		ext := mipExtent(vd.Size, uint32(level))
		t.levels[level] = make([]byte, int(ext.Width)*int(ext.Height)*int(ext.DepthOrArrayLayers)*int(bpt))
	}
	return t, nil
}

func (d *softwareDevice) WriteTexture(dst *ImageCopyTexture, data []byte, size *wgpu.Extent3D) error {
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
	if dst.Texture.Usage()&wgpu.TextureUsageCopyDst == 0 {
		return fmt.Errorf("%w: %q", ErrMissingCopyDstUsage, t.desc.Label)
	}

	depth := max(size.DepthOrArrayLayers, 1)
	want := int(size.Width) * int(size.Height) * int(depth) * int(t.bpt)
	if len(data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrDataSizeMismatch, len(data), want)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	row := int(size.Width) * int(t.bpt)
	for z := uint32(0); z < depth; z++ {
		for y := uint32(0); y < size.Height; y++ {
			off := t.offset(dst.MipLevel, dst.Origin.X, dst.Origin.Y+y, dst.Origin.Z+z)
			srcOff := (int(z)*int(size.Height) + int(y)) * row
			copy(t.levels[dst.MipLevel][off:off+row], data[srcOff:srcOff+row])
		}
	}
	return nil
}

func (d *softwareDevice) ReadTexture(tex Texture) ([]byte, error) {
	t, err := d.own(tex)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]byte, len(t.levels[0]))
	copy(out, t.levels[0])
	return out, nil
}

func (d *softwareDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	return &softwareEncoder{device: d, label: label}, nil
}

func (d *softwareDevice) Submit(buffers ...CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, b := range buffers {
		cb, ok := b.(*softwareCommandBuffer)
		if !ok || cb.device != d {
			return fmt.Errorf("gpu: submit of foreign command buffer")
		}
		if cb.consumed {
			return ErrCommandBufferConsumed
		}
		cb.consumed = true
		d.submissions++

		for _, c := range cb.commands {
			if c.exec != nil {
				if err := c.exec(); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
			}
			rec := c.record
			rec.Submission = d.submissions
			d.commandLog = append(d.commandLog, rec)
		}
	}
	return firstErr
}

func (d *softwareDevice) Surface() Surface {
	if d.surface == nil {
		return nil
	}
	return d.surface
}

func (d *softwareDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.surface != nil && d.surface.texture != nil {
		d.surface.texture.released = true
	}
}

func (d *softwareDevice) SubmittedCommands() []CommandRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CommandRecord, len(d.commandLog))
	copy(out, d.commandLog)
	return out
}

func (d *softwareDevice) ResetCommandLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commandLog = nil
}

func (d *softwareDevice) Submissions() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submissions
}

// own checks that tex is a live texture created by d.
func (d *softwareDevice) own(tex Texture) (*softwareTexture, error) {
	if tex == nil {
		return nil, ErrNilTexture
	}
	t, ok := tex.(*softwareTexture)
	if !ok || t.device != d {
		return nil, ErrForeignTexture
	}
	if t.released {
		return nil, fmt.Errorf("%w: %q", ErrTextureReleased, t.desc.Label)
	}
	return t, nil
}

// softwareTexture stores every mip level as tightly packed texels, layer by layer.
type softwareTexture struct {
	device   *softwareDevice
	desc     TextureDescriptor
	bpt      uint32
	levels   [][]byte
	released bool
}

func (t *softwareTexture) Label() string              { return t.desc.Label }
func (t *softwareTexture) Size() wgpu.Extent3D        { return t.desc.Size }
func (t *softwareTexture) MipLevelCount() uint32      { return t.desc.MipLevelCount }
func (t *softwareTexture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *softwareTexture) Usage() wgpu.TextureUsage   { return t.desc.Usage }

func (t *softwareTexture) Release() {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	t.released = true
	t.levels = nil
}

// offset returns the byte offset of texel (x, y, z) in mip level level.
func (t *softwareTexture) offset(level, x, y, z uint32) int {
	ext := mipExtent(t.desc.Size, level)
	return ((int(z)*int(ext.Height)+int(y))*int(ext.Width) + int(x)) * int(t.bpt)
}

// softwareCommand pairs a log record with the work to run on Submit.
type softwareCommand struct {
	record CommandRecord
	exec   func() error
}

type softwareEncoder struct {
	device   *softwareDevice
	label    string
	commands []softwareCommand
	passOpen bool
	finished bool
}

func (e *softwareEncoder) checkRecording() error {
	if e.finished {
		return ErrEncoderFinished
	}
	if e.passOpen {
		return ErrPassInProgress
	}
	return nil
}

func (e *softwareEncoder) CopyTextureToTexture(src, dst *ImageCopyTexture, size *wgpu.Extent3D) error {
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

	srcSide, dstSide, extent := *src, *dst, *size
	extent.DepthOrArrayLayers = max(extent.DepthOrArrayLayers, 1)
	e.commands = append(e.commands, softwareCommand{
		record: CommandRecord{
			Kind:        CommandCopyTextureToTexture,
			Label:       e.label,
			Source:      s.desc.Label,
			Destination: t.desc.Label,
			Size:        extent,
		},
		exec: func() error {
			if s.released || t.released {
				return fmt.Errorf("%w: copy %q to %q", ErrTextureReleased, s.desc.Label, t.desc.Label)
			}
			row := int(extent.Width) * int(s.bpt)
			for z := uint32(0); z < extent.DepthOrArrayLayers; z++ {
				for y := uint32(0); y < extent.Height; y++ {
					so := s.offset(srcSide.MipLevel, srcSide.Origin.X, srcSide.Origin.Y+y, srcSide.Origin.Z+z)
					do := t.offset(dstSide.MipLevel, dstSide.Origin.X, dstSide.Origin.Y+y, dstSide.Origin.Z+z)
					copy(t.levels[dstSide.MipLevel][do:do+row], s.levels[srcSide.MipLevel][so:so+row])
				}
			}
			return nil
		},
	})
	return nil
}

func (e *softwareEncoder) BeginRenderPass(desc *RenderPassDescriptor) (RenderPass, error) {
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
	if t.desc.Usage&wgpu.TextureUsageRenderAttachment == 0 {
		return nil, fmt.Errorf("gpu: render pass target %q lacks RenderAttachment usage", t.desc.Label)
	}

	clearColor := [4]float32{float32(desc.ClearColor.R), float32(desc.ClearColor.G), float32(desc.ClearColor.B), float32(desc.ClearColor.A)}
	e.passOpen = true
	e.commands = append(e.commands, softwareCommand{
		record: CommandRecord{
			Kind:        CommandBeginRenderPass,
			Label:       desc.Label,
			Destination: t.desc.Label,
			Size:        t.desc.Size,
		},
		exec: func() error {
			if t.released {
				return fmt.Errorf("%w: %q", ErrTextureReleased, t.desc.Label)
			}
			texel := make([]byte, t.bpt)
			encodeTexel(t.desc.Format, clearColor, texel)
			level := t.levels[0]
			for off := 0; off < len(level); off += len(texel) {
				copy(level[off:], texel)
			}
			return nil
		},
	})
	return &softwarePass{encoder: e, label: desc.Label, target: t}, nil
}

func (e *softwareEncoder) Finish() (CommandBuffer, error) {
	if err := e.checkRecording(); err != nil {
		return nil, err
	}
	e.finished = true
	cb := &softwareCommandBuffer{device: e.device, commands: e.commands}
	e.commands = nil
	return cb, nil
}

func (e *softwareEncoder) Release() {
	e.commands = nil
	e.finished = true
}

type softwarePass struct {
	encoder *softwareEncoder
	label   string
	target  *softwareTexture
	ended   bool
}

func (p *softwarePass) DrawTexture(tex Texture, dst Rect) error {
	if p.ended {
		return ErrPassEnded
	}
	s, err := p.encoder.device.own(tex)
	if err != nil {
		return fmt.Errorf("draw texture: %w", err)
	}
	if s.desc.Usage&wgpu.TextureUsageTextureBinding == 0 {
		return fmt.Errorf("gpu: draw texture %q lacks TextureBinding usage", s.desc.Label)
	}

	t := p.target
	p.encoder.commands = append(p.encoder.commands, softwareCommand{
		record: CommandRecord{
			Kind:        CommandDrawTexture,
			Label:       p.label,
			Source:      s.desc.Label,
			Destination: t.desc.Label,
			Size:        wgpu.Extent3D{Width: dst.Width, Height: dst.Height, DepthOrArrayLayers: 1},
		},
		exec: func() error {
			if s.released || t.released {
				return fmt.Errorf("%w: draw %q", ErrTextureReleased, s.desc.Label)
			}
			blit(s, t, dst)
			return nil
		},
	})
	return nil
}

func (p *softwarePass) End() error {
	if p.ended {
		return ErrPassEnded
	}
	p.ended = true
	p.encoder.passOpen = false
	p.encoder.commands = append(p.encoder.commands, softwareCommand{
		record: CommandRecord{
			Kind:        CommandEndRenderPass,
			Label:       p.label,
			Destination: p.target.desc.Label,
		},
	})
	return nil
}

// blit draws mip 0 of src into dst rect r with nearest sampling and source-over blending.
func blit(src, dst *softwareTexture, r Rect) {
	if r.Width == 0 || r.Height == 0 {
		return
	}
	sw, sh := src.desc.Size.Width, src.desc.Size.Height
	dw, dh := int64(dst.desc.Size.Width), int64(dst.desc.Size.Height)

	x0, y0 := max(int64(r.X), 0), max(int64(r.Y), 0)
	x1, y1 := min(int64(r.X)+int64(r.Width), dw), min(int64(r.Y)+int64(r.Height), dh)

	for y := y0; y < y1; y++ {
		sy := uint32((y - int64(r.Y)) * int64(sh) / int64(r.Height))
		for x := x0; x < x1; x++ {
			sx := uint32((x - int64(r.X)) * int64(sw) / int64(r.Width))
			so := src.offset(0, sx, sy, 0)
			do := dst.offset(0, uint32(x), uint32(y), 0)

			c := decodeTexel(src.desc.Format, src.levels[0][so:so+int(src.bpt)])
			under := decodeTexel(dst.desc.Format, dst.levels[0][do:do+int(dst.bpt)])
			a := clamp01(c[3])
			out := [4]float32{
				c[0]*a + under[0]*(1-a),
				c[1]*a + under[1]*(1-a),
				c[2]*a + under[2]*(1-a),
				a + under[3]*(1-a),
			}
			encodeTexel(dst.desc.Format, out, dst.levels[0][do:do+int(dst.bpt)])
		}
	}
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

type softwareCommandBuffer struct {
	device   *softwareDevice
	commands []softwareCommand
	consumed bool
}

func (b *softwareCommandBuffer) Release() {
	b.commands = nil
}

// softwareSurface is an offscreen RGBA8 target that can be read back after Present.
type softwareSurface struct {
	device    *softwareDevice
	format    wgpu.TextureFormat
	width     uint32
	height    uint32
	texture   *softwareTexture
	acquired  bool
	presented uint64
}

func (s *softwareSurface) Configure(width, height uint32) {
	width, height = max(width, 1), max(height, 1)
	if s.texture != nil && s.width == width && s.height == height {
		return
	}
	if s.texture != nil {
		s.texture.Release()
	}
	tex, err := s.device.CreateTexture(&TextureDescriptor{
		Label:     "Offscreen Surface",
		Size:      wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		Dimension: wgpu.TextureDimension2D,
		Format:    s.format,
		Usage:     wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		panic(fmt.Sprintf("gpu: failed to create offscreen surface: %v", err))
	}
	s.texture = tex.(*softwareTexture)
	s.width, s.height = width, height
}

func (s *softwareSurface) Size() (uint32, uint32) {
	return s.width, s.height
}

func (s *softwareSurface) Format() wgpu.TextureFormat {
	return s.format
}

func (s *softwareSurface) AcquireTexture() (Texture, error) {
	if s.acquired {
		return nil, fmt.Errorf("gpu: previous frame surface not yet presented")
	}
	s.acquired = true
	return s.texture, nil
}

func (s *softwareSurface) Present() error {
	if !s.acquired {
		return fmt.Errorf("gpu: present without acquired surface texture")
	}
	s.acquired = false
	s.presented++
	return nil
}
