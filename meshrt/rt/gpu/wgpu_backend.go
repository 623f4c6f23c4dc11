package gpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// WGPUBackend implements Backend on WebGPU.
type WGPUBackend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	log      core.Logger
}

// WGPUSurface is a GLFW window surface configured for the backend's device.
type WGPUSurface struct {
	backend *WGPUBackend
	surface *wgpu.Surface
	config  *wgpu.SurfaceConfiguration
	clear   core.Color
}

// NewWGPU brings up a device for window and configures its surface. The
// surface is usable as a copy destination so frames rendered off-screen can
// be transferred into it.
func NewWGPU(window *glfw.Window, clear core.Color, log core.Logger) (*WGPUBackend, *WGPUSurface, error) {
	log = core.LoggerOrNop(log)
	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		surface.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("request adapter: %v: %w", err, core.ErrDeviceUnavailable)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "meshdraw device"})
	if err != nil {
		adapter.Release()
		surface.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("request device: %v: %w", err, core.ErrDeviceUnavailable)
	}
	b := &WGPUBackend{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
		log:      log,
	}

	caps := surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		surface.Release()
		b.Release()
		return nil, nil, fmt.Errorf("surface reports no formats: %w", core.ErrDeviceUnavailable)
	}
	width, height := window.GetFramebufferSize()
	config := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, config)
	log.Infof("webgpu: surface %dx%d, format %v", width, height, config.Format)

	return b, &WGPUSurface{backend: b, surface: surface, config: config, clear: clear}, nil
}

func (b *WGPUBackend) Name() string { return "webgpu" }

// FillsMissingComponents is true: WebGPU vertex fetch expands narrower formats with (0, 0, 0, 1).
func (b *WGPUBackend) FillsMissingComponents() bool { return true }

func (b *WGPUBackend) Release() {
	b.queue = nil
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func toTextureFormat(f core.PixelFormat) wgpu.TextureFormat {
	switch f {
	case core.PixelFormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case core.PixelFormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb
	case core.PixelFormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case core.PixelFormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	default:
		return wgpu.TextureFormatUndefined
	}
}

func fromTextureFormat(f wgpu.TextureFormat) core.PixelFormat {
	switch f {
	case wgpu.TextureFormatBGRA8Unorm:
		return core.PixelFormatBGRA8Unorm
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return core.PixelFormatBGRA8UnormSrgb
	case wgpu.TextureFormatRGBA8Unorm:
		return core.PixelFormatRGBA8Unorm
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return core.PixelFormatRGBA8UnormSrgb
	default:
		return core.PixelFormatUndefined
	}
}

func toVertexFormat(f core.VertexFormat) wgpu.VertexFormat {
	switch f {
	case core.FormatFloat:
		return wgpu.VertexFormatFloat32
	case core.FormatFloat2:
		return wgpu.VertexFormatFloat32x2
	case core.FormatFloat3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

type wgpuShaderModule struct{ m *wgpu.ShaderModule }

func (s *wgpuShaderModule) Release() { s.m.Release() }

func (b *WGPUBackend) CreateShaderModule(label, source string) (ShaderModule, error) {
	m, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuShaderModule{m: m}, nil
}

type wgpuRenderPipeline struct{ p *wgpu.RenderPipeline }

func (p *wgpuRenderPipeline) Release() { p.p.Release() }

func (b *WGPUBackend) CreateRenderPipeline(desc *PipelineDescriptor) (RenderPipeline, error) {
	mod, ok := desc.Module.(*wgpuShaderModule)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: module was not created by this backend", desc.Label)
	}
	buffers := make([]wgpu.VertexBufferLayout, 0, len(desc.Buffers))
	for _, vb := range desc.Buffers {
		attrs := make([]wgpu.VertexAttribute, 0, len(vb.Attributes))
		for _, a := range vb.Attributes {
			attrs = append(attrs, wgpu.VertexAttribute{
				ShaderLocation: a.Location,
				Offset:         a.Offset,
				Format:         toVertexFormat(a.Format),
			})
		}
		buffers = append(buffers, wgpu.VertexBufferLayout{
			ArrayStride: vb.Stride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		})
	}

	topology := wgpu.PrimitiveTopologyTriangleList
	if desc.Topology == core.TopologyLines {
		topology = wgpu.PrimitiveTopologyLineList
	}
	cull := wgpu.CullModeNone
	switch desc.CullMode {
	case CullBack:
		cull = wgpu.CullModeBack
	case CullFront:
		cull = wgpu.CullModeFront
	}

	p, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: desc.Label,
		Vertex: wgpu.VertexState{
			Module:     mod.m,
			EntryPoint: desc.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod.m,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    toTextureFormat(desc.ColorFormat),
				Blend:     nil,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cull,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuRenderPipeline{p: p}, nil
}

type wgpuBuffer struct{ b *wgpu.Buffer }

func (b *wgpuBuffer) Size() uint64 { return b.b.GetSize() }
func (b *wgpuBuffer) Release()     { b.b.Release() }

func (b *WGPUBackend) CreateBuffer(label string, usage BufferUsage, data []byte) (Buffer, error) {
	u := wgpu.BufferUsageVertex
	if usage == BufferUsageIndex {
		u = wgpu.BufferUsageIndex
	}
	// buffer sizes must be a multiple of 4
	if pad := len(data) % 4; pad != 0 {
		data = append(append([]byte(nil), data...), make([]byte, 4-pad)...)
	}
	buf, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    u,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{b: buf}, nil
}

type wgpuRenderTarget struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	width   uint32
	height  uint32
	format  core.PixelFormat
}

func (t *wgpuRenderTarget) Width() uint32            { return t.width }
func (t *wgpuRenderTarget) Height() uint32           { return t.height }
func (t *wgpuRenderTarget) Format() core.PixelFormat { return t.format }

func (t *wgpuRenderTarget) Release() {
	t.view.Release()
	t.texture.Release()
}

func (b *WGPUBackend) CreateRenderTarget(width, height uint32, format core.PixelFormat) (RenderTarget, error) {
	tf := toTextureFormat(format)
	if tf == wgpu.TextureFormatUndefined {
		return nil, fmt.Errorf("render target format %s: %w", format, core.ErrUnsupportedColorFormat)
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "meshdraw target",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        tf,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuRenderTarget{texture: tex, view: view, width: width, height: height, format: format}, nil
}

type wgpuCommandBuffer struct{ cb *wgpu.CommandBuffer }

func (c *wgpuCommandBuffer) Release() { c.cb.Release() }

type wgpuCommandStream struct {
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder
}

func (b *WGPUBackend) OpenCommandStream(label string) (CommandStream, error) {
	enc, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandStream{encoder: enc}, nil
}

func (s *wgpuCommandStream) BeginPass(target RenderTarget, clear core.Color) error {
	rt, ok := target.(*wgpuRenderTarget)
	if !ok {
		return errors.New("render target was not created by this backend")
	}
	s.pass = s.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       rt.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: clear.R, G: clear.G, B: clear.B, A: clear.A},
		}},
	})
	return nil
}

func (s *wgpuCommandStream) SetPipeline(p RenderPipeline) {
	s.pass.SetPipeline(p.(*wgpuRenderPipeline).p)
}

func (s *wgpuCommandStream) SetVertexBuffer(slot uint32, b Buffer) {
	s.pass.SetVertexBuffer(slot, b.(*wgpuBuffer).b, 0, wgpu.WholeSize)
}

func (s *wgpuCommandStream) SetIndexBuffer(b Buffer, width core.IndexWidth) {
	format := wgpu.IndexFormatUint32
	if width == core.IndexUInt16 {
		format = wgpu.IndexFormatUint16
	}
	s.pass.SetIndexBuffer(b.(*wgpuBuffer).b, format, 0, wgpu.WholeSize)
}

func (s *wgpuCommandStream) DrawIndexed(indexCount uint32) {
	s.pass.DrawIndexed(indexCount, 1, 0, 0, 0)
}

func (s *wgpuCommandStream) Finish() (CommandBuffer, error) {
	if s.pass != nil {
		err := s.pass.End()
		// the pass must be released before the encoder finishes
		s.pass.Release()
		s.pass = nil
		if err != nil {
			return nil, fmt.Errorf("end pass: %w", err)
		}
	}
	cb, err := s.encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuCommandBuffer{cb: cb}, nil
}

func (s *wgpuCommandStream) Release() {
	if s.pass != nil {
		s.pass.Release()
		s.pass = nil
	}
	if s.encoder != nil {
		s.encoder.Release()
		s.encoder = nil
	}
}

// ReadTarget copies the target into a mappable buffer and waits for the map.
func (b *WGPUBackend) ReadTarget(t RenderTarget) (*image.RGBA, error) {
	rt, ok := t.(*wgpuRenderTarget)
	if !ok {
		return nil, errors.New("render target was not created by this backend")
	}
	bytesPerRow := (rt.width*4 + 255) &^ uint32(255)
	size := uint64(bytesPerRow) * uint64(rt.height)
	readback, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "meshdraw readback",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, fmt.Errorf("readback buffer: %v: %w", err, core.ErrAllocationFailed)
	}
	defer readback.Release()

	enc, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("readback encoder: %v: %w", err, core.ErrQueueExhausted)
	}
	defer enc.Release()
	enc.CopyTextureToBuffer(
		rt.texture.AsImageCopy(),
		&wgpu.ImageCopyBuffer{
			Buffer: readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: rt.height,
			},
		},
		&wgpu.Extent3D{Width: rt.width, Height: rt.height, DepthOrArrayLayers: 1},
	)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer cmd.Release()
	b.queue.Submit(cmd)

	var status wgpu.BufferMapAsyncStatus
	err = readback.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, fmt.Errorf("map readback buffer: %w", err)
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("map readback buffer: status %v", status)
	}
	data := readback.GetMappedRange(0, uint(size))
	img := UnpackRows(data, int(rt.width), int(rt.height), int(bytesPerRow), rt.format.BGRA())
	readback.Unmap()
	return img, nil
}

// UnpackRows converts padded 8-bit rows into an RGBA image, swapping red and blue when bgra is set.
func UnpackRows(data []byte, width, height, stride int, bgra bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := data[y*stride : y*stride+width*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+width*4]
		copy(dst, src)
		if bgra {
			for x := 0; x < width*4; x += 4 {
				dst[x], dst[x+2] = dst[x+2], dst[x]
			}
		}
	}
	return img
}

func (s *WGPUSurface) Size() (uint32, uint32) {
	return s.config.Width, s.config.Height
}

func (s *WGPUSurface) ClearColor() core.Color { return s.clear }

func (s *WGPUSurface) PreferredFormat() core.PixelFormat {
	return fromTextureFormat(s.config.Format)
}

// SupportsFormat accepts only the configured format; frames are copied into the surface texture.
func (s *WGPUSurface) SupportsFormat(f core.PixelFormat) bool {
	return f != core.PixelFormatUndefined && f == s.PreferredFormat()
}

func (s *WGPUSurface) CurrentDrawable() (Drawable, error) {
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	if tex == nil {
		return nil, nil
	}
	return &wgpuDrawable{surface: s, texture: tex}, nil
}

// Resize reconfigures the surface after the window's framebuffer changed.
func (s *WGPUSurface) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	s.config.Width = uint32(width)
	s.config.Height = uint32(height)
	s.surface.Configure(s.backend.adapter, s.backend.device, s.config)
}

func (s *WGPUSurface) Release() {
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
}

type wgpuDrawable struct {
	surface *WGPUSurface
	texture *wgpu.Texture
}

func (d *wgpuDrawable) Present(target RenderTarget, cmds ...CommandBuffer) error {
	rt, ok := target.(*wgpuRenderTarget)
	if !ok {
		return errors.New("render target was not created by this backend")
	}
	w, h := d.surface.Size()
	if rt.width != w || rt.height != h || rt.format != d.surface.PreferredFormat() {
		return fmt.Errorf("target %dx%d %s does not match surface %dx%d %s",
			rt.width, rt.height, rt.format, w, h, d.surface.PreferredFormat())
	}
	b := d.surface.backend
	enc, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("present encoder: %v: %w", err, core.ErrQueueExhausted)
	}
	defer enc.Release()
	enc.CopyTextureToTexture(
		rt.texture.AsImageCopy(),
		d.texture.AsImageCopy(),
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	blit, err := enc.Finish(nil)
	if err != nil {
		return err
	}
	defer blit.Release()

	submit := make([]*wgpu.CommandBuffer, 0, len(cmds)+1)
	for _, c := range cmds {
		submit = append(submit, c.(*wgpuCommandBuffer).cb)
	}
	submit = append(submit, blit)
	b.queue.Submit(submit...)
	d.surface.surface.Present()
	return nil
}

func (d *wgpuDrawable) Release() {
	d.texture.Release()
}
