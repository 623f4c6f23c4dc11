package gpu

import (
	"errors"
	"image"
	"image/color"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
)

// fakeBackend records every call instead of talking to a device.
type fakeBackend struct {
	fills bool

	failModule   error
	failPipeline error
	failStream   error

	modules   int
	pipelines []PipelineDescriptor
	buffers   []*fakeBuffer
	targets   []*fakeTarget
	streams   []*fakeStream
	released  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{fills: true}
}

func (b *fakeBackend) Name() string                 { return "fake" }
func (b *fakeBackend) FillsMissingComponents() bool { return b.fills }
func (b *fakeBackend) Release()                     {}

type fakeHandle struct {
	b    *fakeBackend
	name string
}

func (h *fakeHandle) Release() { h.b.released++ }

func (b *fakeBackend) CreateShaderModule(label, source string) (ShaderModule, error) {
	if b.failModule != nil {
		return nil, b.failModule
	}
	b.modules++
	return &fakeHandle{b: b, name: label}, nil
}

func (b *fakeBackend) CreateRenderPipeline(desc *PipelineDescriptor) (RenderPipeline, error) {
	if b.failPipeline != nil {
		return nil, b.failPipeline
	}
	b.pipelines = append(b.pipelines, *desc)
	return &fakeHandle{b: b, name: desc.Label}, nil
}

type fakeBuffer struct {
	b        *fakeBackend
	usage    BufferUsage
	data     []byte
	released bool
}

func (f *fakeBuffer) Size() uint64 { return uint64(len(f.data)) }
func (f *fakeBuffer) Release() {
	f.released = true
	f.b.released++
}

func (b *fakeBackend) CreateBuffer(label string, usage BufferUsage, data []byte) (Buffer, error) {
	buf := &fakeBuffer{b: b, usage: usage, data: append([]byte(nil), data...)}
	b.buffers = append(b.buffers, buf)
	return buf, nil
}

type fakeTarget struct {
	w, h     uint32
	format   core.PixelFormat
	clear    core.Color
	released bool
}

func (t *fakeTarget) Width() uint32            { return t.w }
func (t *fakeTarget) Height() uint32           { return t.h }
func (t *fakeTarget) Format() core.PixelFormat { return t.format }
func (t *fakeTarget) Release()                 { t.released = true }

func (b *fakeBackend) CreateRenderTarget(w, h uint32, format core.PixelFormat) (RenderTarget, error) {
	t := &fakeTarget{w: w, h: h, format: format}
	b.targets = append(b.targets, t)
	return t, nil
}

type fakeDraw struct {
	pipeline RenderPipeline
	indices  *fakeBuffer
	width    core.IndexWidth
	count    uint32
}

type fakeStream struct {
	ops      []string
	pipeline RenderPipeline
	vertex   Buffer
	indices  *fakeBuffer
	width    core.IndexWidth
	draws    []fakeDraw
	finished bool
	released bool
}

func (s *fakeStream) record(op string) {
	s.ops = append(s.ops, op)
}

func (s *fakeStream) BeginPass(target RenderTarget, clear core.Color) error {
	s.record("begin")
	target.(*fakeTarget).clear = clear
	return nil
}

func (s *fakeStream) SetPipeline(p RenderPipeline) {
	s.record("pipeline")
	s.pipeline = p
}

func (s *fakeStream) SetVertexBuffer(slot uint32, b Buffer) {
	s.record("vertex")
	s.vertex = b
}

func (s *fakeStream) SetIndexBuffer(b Buffer, width core.IndexWidth) {
	s.record("index")
	s.indices = b.(*fakeBuffer)
	s.width = width
}

func (s *fakeStream) DrawIndexed(n uint32) {
	s.record("draw")
	s.draws = append(s.draws, fakeDraw{pipeline: s.pipeline, indices: s.indices, width: s.width, count: n})
}

type fakeCommandBuffer struct {
	stream   *fakeStream
	released bool
}

func (c *fakeCommandBuffer) Release() { c.released = true }

func (s *fakeStream) Finish() (CommandBuffer, error) {
	s.record("finish")
	s.finished = true
	return &fakeCommandBuffer{stream: s}, nil
}

func (s *fakeStream) Release() { s.released = true }

func (b *fakeBackend) OpenCommandStream(label string) (CommandStream, error) {
	if b.failStream != nil {
		return nil, b.failStream
	}
	s := &fakeStream{}
	b.streams = append(b.streams, s)
	return s, nil
}

// ReadTarget paints the target in its clear color.
func (b *fakeBackend) ReadTarget(t RenderTarget) (*image.RGBA, error) {
	ft := t.(*fakeTarget)
	img := image.NewRGBA(image.Rect(0, 0, int(ft.w), int(ft.h)))
	c := color.RGBA{
		R: uint8(ft.clear.R * 255), G: uint8(ft.clear.G * 255),
		B: uint8(ft.clear.B * 255), A: uint8(ft.clear.A * 255),
	}
	for y := 0; y < int(ft.h); y++ {
		for x := 0; x < int(ft.w); x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

// fakeSurface hands out drawables unless noDrawable is set.
type fakeSurface struct {
	w, h       uint32
	clear      core.Color
	formats    []core.PixelFormat
	noDrawable bool

	presented [][]CommandBuffer
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		w:       600,
		h:       600,
		clear:   core.Color{R: 1, G: 1, B: 0.8, A: 1},
		formats: []core.PixelFormat{core.PixelFormatBGRA8Unorm},
	}
}

func (s *fakeSurface) Size() (uint32, uint32)            { return s.w, s.h }
func (s *fakeSurface) ClearColor() core.Color            { return s.clear }
func (s *fakeSurface) PreferredFormat() core.PixelFormat { return s.formats[0] }

func (s *fakeSurface) SupportsFormat(f core.PixelFormat) bool {
	for _, sf := range s.formats {
		if sf == f {
			return true
		}
	}
	return false
}

func (s *fakeSurface) CurrentDrawable() (Drawable, error) {
	if s.noDrawable {
		return nil, errors.New("window not shown")
	}
	return &fakeDrawable{s: s}, nil
}

type fakeDrawable struct {
	s *fakeSurface
}

func (d *fakeDrawable) Present(target RenderTarget, cmds ...CommandBuffer) error {
	d.s.presented = append(d.s.presented, cmds)
	return nil
}

func (d *fakeDrawable) Release() {}
