package app

import (
	"errors"
	"image"
	"image/color"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/gekko3d/meshdraw/meshrt/rt/gpu"
)

type stubHandle struct{ released *int }

func (h stubHandle) Release() { *h.released++ }

// stubBackend accepts everything and counts what it hands out.
type stubBackend struct {
	created   int
	released  int
	pipelines []gpu.PipelineDescriptor
	draws     []uint32
}

func (b *stubBackend) Name() string                 { return "stub" }
func (b *stubBackend) FillsMissingComponents() bool { return true }
func (b *stubBackend) Release()                     {}

func (b *stubBackend) handle() stubHandle {
	b.created++
	return stubHandle{released: &b.released}
}

func (b *stubBackend) CreateShaderModule(label, source string) (gpu.ShaderModule, error) {
	return b.handle(), nil
}

func (b *stubBackend) CreateRenderPipeline(desc *gpu.PipelineDescriptor) (gpu.RenderPipeline, error) {
	b.pipelines = append(b.pipelines, *desc)
	return b.handle(), nil
}

type stubBuffer struct {
	stubHandle
	size uint64
}

func (s stubBuffer) Size() uint64 { return s.size }

func (b *stubBackend) CreateBuffer(label string, usage gpu.BufferUsage, data []byte) (gpu.Buffer, error) {
	return stubBuffer{stubHandle: b.handle(), size: uint64(len(data))}, nil
}

type stubTarget struct {
	stubHandle
	w, h   uint32
	format core.PixelFormat
	clear  *core.Color
}

func (t stubTarget) Width() uint32            { return t.w }
func (t stubTarget) Height() uint32           { return t.h }
func (t stubTarget) Format() core.PixelFormat { return t.format }

func (b *stubBackend) CreateRenderTarget(w, h uint32, format core.PixelFormat) (gpu.RenderTarget, error) {
	return stubTarget{stubHandle: b.handle(), w: w, h: h, format: format, clear: &core.Color{}}, nil
}

type stubStream struct {
	stubHandle
	b *stubBackend
}

func (s stubStream) BeginPass(target gpu.RenderTarget, clear core.Color) error {
	*target.(stubTarget).clear = clear
	return nil
}
func (s stubStream) SetPipeline(p gpu.RenderPipeline)                   {}
func (s stubStream) SetVertexBuffer(slot uint32, b gpu.Buffer)          {}
func (s stubStream) SetIndexBuffer(b gpu.Buffer, width core.IndexWidth) {}
func (s stubStream) DrawIndexed(n uint32)                               { s.b.draws = append(s.b.draws, n) }
func (s stubStream) Finish() (gpu.CommandBuffer, error)                 { return s.b.handle(), nil }

func (b *stubBackend) OpenCommandStream(label string) (gpu.CommandStream, error) {
	return stubStream{stubHandle: b.handle(), b: b}, nil
}

func (b *stubBackend) ReadTarget(t gpu.RenderTarget) (*image.RGBA, error) {
	st := t.(stubTarget)
	c := color.RGBA{
		R: uint8(st.clear.R * 255), G: uint8(st.clear.G * 255),
		B: uint8(st.clear.B * 255), A: uint8(st.clear.A * 255),
	}
	img := image.NewRGBA(image.Rect(0, 0, int(st.w), int(st.h)))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

type stubSurface struct {
	clear      core.Color
	noDrawable bool
	presented  int
}

func (s *stubSurface) Size() (uint32, uint32)                 { return 64, 48 }
func (s *stubSurface) ClearColor() core.Color                 { return s.clear }
func (s *stubSurface) PreferredFormat() core.PixelFormat      { return core.PixelFormatBGRA8Unorm }
func (s *stubSurface) SupportsFormat(f core.PixelFormat) bool { return f == core.PixelFormatBGRA8Unorm }

func (s *stubSurface) CurrentDrawable() (gpu.Drawable, error) {
	if s.noDrawable {
		return nil, errors.New("window hidden")
	}
	return stubDrawable{s}, nil
}

type stubDrawable struct{ s *stubSurface }

func (d stubDrawable) Present(target gpu.RenderTarget, cmds ...gpu.CommandBuffer) error {
	d.s.presented++
	return nil
}
func (d stubDrawable) Release() {}
