package gpu

import (
	"fmt"
	"image"
	"strings"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

func (m CullMode) String() string {
	switch m {
	case CullBack:
		return "back"
	case CullFront:
		return "front"
	default:
		return "none"
	}
}

func ParseCullMode(name string) (CullMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CullNone, nil
	case "back":
		return CullBack, nil
	case "front":
		return CullFront, nil
	}
	return CullNone, fmt.Errorf("cull mode %q: %w", name, core.ErrInvalidParameter)
}

type BufferUsage int

const (
	BufferUsageVertex BufferUsage = iota
	BufferUsageIndex
)

// AttributeBinding feeds one shader location from a region of a vertex buffer.
type AttributeBinding struct {
	Location uint32
	Format   core.VertexFormat
	Offset   uint64
}

type VertexBufferDescriptor struct {
	Stride     uint64
	Attributes []AttributeBinding
}

// PipelineDescriptor is what the backend sees when a pipeline is created.
// Two descriptors built from the same program, layout and format compare equal.
type PipelineDescriptor struct {
	Label         string
	Module        ShaderModule
	VertexEntry   string
	FragmentEntry string
	Buffers       []VertexBufferDescriptor
	ColorFormat   core.PixelFormat
	Topology      core.Topology
	CullMode      CullMode
}

type ShaderModule interface {
	Release()
}

type RenderPipeline interface {
	Release()
}

type Buffer interface {
	Size() uint64
	Release()
}

// RenderTarget is an off-screen color texture a frame is rendered into.
type RenderTarget interface {
	Width() uint32
	Height() uint32
	Format() core.PixelFormat
	Release()
}

type CommandBuffer interface {
	Release()
}

// CommandStream records one render pass.
type CommandStream interface {
	BeginPass(target RenderTarget, clear core.Color) error
	SetPipeline(p RenderPipeline)
	SetVertexBuffer(slot uint32, b Buffer)
	SetIndexBuffer(b Buffer, width core.IndexWidth)
	DrawIndexed(indexCount uint32)
	Finish() (CommandBuffer, error)
	Release()
}

// recordingStream wraps a backend stream and panics on any command recorded
// after Finish, for every backend alike.
type recordingStream struct {
	CommandStream
	finished bool
}

func (s *recordingStream) recording() {
	if s.finished {
		panic("gpu: command recorded after Finish")
	}
}

func (s *recordingStream) BeginPass(target RenderTarget, clear core.Color) error {
	s.recording()
	return s.CommandStream.BeginPass(target, clear)
}

func (s *recordingStream) SetPipeline(p RenderPipeline) {
	s.recording()
	s.CommandStream.SetPipeline(p)
}

func (s *recordingStream) SetVertexBuffer(slot uint32, b Buffer) {
	s.recording()
	s.CommandStream.SetVertexBuffer(slot, b)
}

func (s *recordingStream) SetIndexBuffer(b Buffer, width core.IndexWidth) {
	s.recording()
	s.CommandStream.SetIndexBuffer(b, width)
}

func (s *recordingStream) DrawIndexed(indexCount uint32) {
	s.recording()
	s.CommandStream.DrawIndexed(indexCount)
}

func (s *recordingStream) Finish() (CommandBuffer, error) {
	s.recording()
	s.finished = true
	return s.CommandStream.Finish()
}

// Backend creates device objects. Implementations are not safe for concurrent use.
type Backend interface {
	Name() string
	CreateShaderModule(label, source string) (ShaderModule, error)
	CreateRenderPipeline(desc *PipelineDescriptor) (RenderPipeline, error)
	CreateBuffer(label string, usage BufferUsage, data []byte) (Buffer, error)
	CreateRenderTarget(width, height uint32, format core.PixelFormat) (RenderTarget, error)
	// OpenCommandStream fails when the queue cannot hand out another recording context.
	OpenCommandStream(label string) (CommandStream, error)
	// FillsMissingComponents reports whether vertex fetch supplies (0, 0, 0, 1)
	// defaults for components a buffer attribute does not carry.
	FillsMissingComponents() bool
	// ReadTarget copies a render target back into host memory.
	ReadTarget(t RenderTarget) (*image.RGBA, error)
	Release()
}

// Surface is the window side of presentation.
type Surface interface {
	Size() (width, height uint32)
	ClearColor() core.Color
	PreferredFormat() core.PixelFormat
	SupportsFormat(f core.PixelFormat) bool
	// CurrentDrawable returns nil when the surface cannot produce an image right now.
	CurrentDrawable() (Drawable, error)
}

// Drawable is the surface image of the current frame.
type Drawable interface {
	// Present copies target into the drawable, submits cmds in order and
	// queues the image for display.
	Present(target RenderTarget, cmds ...CommandBuffer) error
	Release()
}
