package gpu

import (
	"errors"
	"fmt"
	"image"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/google/uuid"
)

type FrameState int

const (
	StateIdle FrameState = iota
	StateCommandStreamOpened
	StatePipelineBound
	StateVertexBufferBound
	StateDrawIssued
	StateEncoded
	StatePresented
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCommandStreamOpened:
		return "CommandStreamOpened"
	case StatePipelineBound:
		return "PipelineBound"
	case StateVertexBufferBound:
		return "VertexBufferBound"
	case StateDrawIssued:
		return "DrawIssued"
	case StateEncoded:
		return "Encoded"
	case StatePresented:
		return "Presented"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

// FrameSubmission records what one SubmitFrame call drew. It does not outlive the frame's resources.
type FrameSubmission struct {
	ID       string
	Pipeline *PipelineState
	Mesh     *core.MeshBuffer
	Fill     core.FillMode
	Target   Surface
}

// FrameEncoder drives one draw through
// Idle → CommandStreamOpened → PipelineBound → VertexBufferBound → DrawIssued → Encoded → Presented → Idle.
// The first failure stops the machine in the state reached so far.
type FrameEncoder struct {
	ctx *Context
	// Capture reads the rendered image back after presentation.
	Capture bool

	state    FrameState
	trace    []FrameState
	last     *FrameSubmission
	captured *image.RGBA
}

func (c *Context) NewFrameEncoder() *FrameEncoder {
	return &FrameEncoder{ctx: c}
}

func (e *FrameEncoder) State() FrameState { return e.state }

// Trace lists the states reached by the last submission in order.
func (e *FrameEncoder) Trace() []FrameState {
	return append([]FrameState(nil), e.trace...)
}

func (e *FrameEncoder) LastSubmission() *FrameSubmission { return e.last }

// Captured is the image read back by the last successful submission with Capture set.
func (e *FrameEncoder) Captured() *image.RGBA { return e.captured }

func (e *FrameEncoder) enter(s FrameState) {
	e.state = s
	e.trace = append(e.trace, s)
	e.ctx.log.Debugf("frame: %s", s)
}

// frameResources are the per-frame device objects, released when the submission ends.
type frameResources struct {
	vertices Buffer
	draws    []frameDraw
	target   RenderTarget
	stream   CommandStream
	cmd      CommandBuffer
}

type frameDraw struct {
	topology core.Topology
	width    core.IndexWidth
	count    uint32
	indices  Buffer
}

func (r *frameResources) release() {
	if r.cmd != nil {
		r.cmd.Release()
	}
	if r.stream != nil {
		r.stream.Release()
	}
	if r.target != nil {
		r.target.Release()
	}
	for _, d := range r.draws {
		d.indices.Release()
	}
	if r.vertices != nil {
		r.vertices.Release()
	}
}

// SubmitFrame draws mesh with pipeline into target and presents it.
func (e *FrameEncoder) SubmitFrame(pipeline *PipelineState, mesh *core.MeshBuffer, fill core.FillMode, target Surface) error {
	e.state = StateIdle
	e.trace = e.trace[:0]
	e.last = nil
	e.captured = nil
	e.enter(StateIdle)

	if pipeline == nil || mesh == nil || target == nil {
		return fmt.Errorf("submit frame: pipeline, mesh and target are required: %w", core.ErrInvalidParameter)
	}
	sub := &FrameSubmission{
		ID:       uuid.NewString(),
		Pipeline: pipeline,
		Mesh:     mesh,
		Fill:     fill,
		Target:   target,
	}
	e.ctx.log.Debugf("frame %s: mesh %q, %s, pipeline %s", sub.ID, mesh.Name(), fill, pipeline.Label())

	res := &frameResources{}
	defer res.release()
	if err := e.prepare(sub, res); err != nil {
		return err
	}

	b := e.ctx.backend
	raw, err := b.OpenCommandStream("frame " + sub.ID)
	if err != nil {
		return fmt.Errorf("submit frame: %v: %w", err, core.ErrQueueExhausted)
	}
	stream := &recordingStream{CommandStream: raw}
	res.stream = stream
	e.enter(StateCommandStreamOpened)

	if err := stream.BeginPass(res.target, target.ClearColor()); err != nil {
		return fmt.Errorf("submit frame: begin pass: %v: %w", err, core.ErrAllocationFailed)
	}
	bound := pipeline.variant(res.draws[0].topology, fill)
	stream.SetPipeline(bound)
	e.enter(StatePipelineBound)

	stream.SetVertexBuffer(0, res.vertices)
	e.enter(StateVertexBufferBound)

	for _, d := range res.draws {
		if p := pipeline.variant(d.topology, fill); p != bound {
			stream.SetPipeline(p)
			bound = p
		}
		stream.SetIndexBuffer(d.indices, d.width)
		stream.DrawIndexed(d.count)
	}
	e.enter(StateDrawIssued)

	cmd, err := stream.Finish()
	if err != nil {
		return fmt.Errorf("submit frame: encode: %w", err)
	}
	res.cmd = cmd
	e.enter(StateEncoded)

	drawable, err := target.CurrentDrawable()
	if err != nil || drawable == nil {
		if err == nil {
			err = errors.New("surface returned no drawable")
		}
		e.ctx.log.Warnf("frame %s: %v", sub.ID, err)
		return fmt.Errorf("submit frame: %v: %w", err, core.ErrNoDrawableAvailable)
	}
	defer drawable.Release()
	if err := drawable.Present(res.target, cmd); err != nil {
		return fmt.Errorf("submit frame: present: %w", err)
	}
	e.enter(StatePresented)
	e.last = sub

	if e.Capture {
		img, err := b.ReadTarget(res.target)
		if err != nil {
			return fmt.Errorf("submit frame: capture: %w", err)
		}
		e.captured = img
	}
	e.enter(StateIdle)
	return nil
}

// prepare runs every check and upload that must happen before a command stream is opened.
func (e *FrameEncoder) prepare(sub *FrameSubmission, res *frameResources) error {
	mesh, pipeline := sub.Mesh, sub.Pipeline
	subs := mesh.Submeshes()
	if len(subs) == 0 {
		return fmt.Errorf("submit frame: mesh %q: %w", mesh.Name(), core.ErrEmptyDrawable)
	}
	if !mesh.Layout().Equal(pipeline.Layout()) {
		return fmt.Errorf("submit frame: mesh layout %s, pipeline %s expects %s: %w",
			mesh.Layout(), pipeline.Label(), pipeline.Layout(), core.ErrLayoutMismatch)
	}
	if !sub.Target.SupportsFormat(pipeline.ColorFormat()) {
		return fmt.Errorf("submit frame: target cannot present %s: %w", pipeline.ColorFormat(), core.ErrUnsupportedColorFormat)
	}

	b := e.ctx.backend
	vb, err := b.CreateBuffer(mesh.Name()+" vertices", BufferUsageVertex, mesh.Vertices())
	if err != nil {
		return fmt.Errorf("submit frame: vertex buffer: %v: %w", err, core.ErrAllocationFailed)
	}
	res.vertices = vb

	for i, sm := range subs {
		if sm.Topology == core.TopologyTriangles && sub.Fill == core.FillWireframe {
			sm = WireframeEdges(sm, mesh.VertexCount())
		}
		if sm.Count() == 0 {
			e.ctx.log.Debugf("frame %s: submesh %d has no indices", sub.ID, i)
			continue
		}
		ib, err := b.CreateBuffer(fmt.Sprintf("%s indices %d", mesh.Name(), i), BufferUsageIndex, sm.Indices)
		if err != nil {
			return fmt.Errorf("submit frame: index buffer %d: %v: %w", i, err, core.ErrAllocationFailed)
		}
		res.draws = append(res.draws, frameDraw{
			topology: sm.Topology,
			width:    sm.Width,
			count:    uint32(sm.Count()),
			indices:  ib,
		})
	}
	if len(res.draws) == 0 {
		return fmt.Errorf("submit frame: mesh %q has no indices: %w", mesh.Name(), core.ErrEmptyDrawable)
	}

	w, h := sub.Target.Size()
	rt, err := b.CreateRenderTarget(w, h, pipeline.ColorFormat())
	if err != nil {
		return fmt.Errorf("submit frame: render target %dx%d: %v: %w", w, h, err, core.ErrAllocationFailed)
	}
	res.target = rt
	return nil
}

// WireframeEdges turns a triangle submesh into a line list holding each distinct edge once.
func WireframeEdges(sm core.Submesh, vertexCount int) core.Submesh {
	seen := make(map[[2]uint32]struct{}, sm.Count())
	edges := make([]uint32, 0, sm.Count()*2)
	for t := 0; t+2 < sm.Count(); t += 3 {
		tri := [3]uint32{sm.Index(t), sm.Index(t + 1), sm.Index(t + 2)}
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			if a == b {
				continue
			}
			key := [2]uint32{min(a, b), max(a, b)}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, a, b)
		}
	}
	return core.NewSubmesh(core.TopologyLines, edges, vertexCount)
}
