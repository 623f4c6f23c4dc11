package gpu

import (
	"fmt"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/gekko3d/meshdraw/meshrt/rt/shaders"
)

type PipelineDesc struct {
	Label   string
	Program *ShaderProgram
	// Entry names default to the mesh shader's vertex_main and fragment_main.
	VertexEntry   string
	FragmentEntry string
	Layout        core.VertexLayout
	// ColorFormat defaults to the surface's preferred format.
	ColorFormat core.PixelFormat
	CullMode    CullMode
}

// PipelineState is a validated, immutable pipeline. It carries a triangle-list
// variant for solid fill and a line-list variant for wireframe and line meshes.
type PipelineState struct {
	label  string
	layout core.VertexLayout
	format core.PixelFormat
	desc   PipelineDescriptor
	solid  RenderPipeline
	lines  RenderPipeline
}

// BuildPipeline validates desc against the shader and the surface and then
// creates the device pipelines. Nothing reaches the backend unless every
// check passes.
func (c *Context) BuildPipeline(d PipelineDesc) (*PipelineState, error) {
	if d.Program == nil {
		return nil, fmt.Errorf("pipeline %s: no program: %w", d.Label, core.ErrInvalidParameter)
	}
	if d.VertexEntry == "" {
		d.VertexEntry = shaders.MeshVertexEntry
	}
	if d.FragmentEntry == "" {
		d.FragmentEntry = shaders.MeshFragmentEntry
	}
	if d.Label == "" {
		d.Label = d.Program.Label()
	}

	vs, err := d.Program.ResolveEntry(d.VertexEntry, shaders.StageVertex)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", d.Label, err)
	}
	if _, err := d.Program.ResolveEntry(d.FragmentEntry, shaders.StageFragment); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", d.Label, err)
	}

	layout := d.Layout.Clone()
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", d.Label, err)
	}
	buffers, err := negotiate(vs, layout, c.backend.FillsMissingComponents())
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", d.Label, err)
	}
	for _, a := range layout.Attributes {
		if !consumes(vs, a.Semantic) {
			c.log.Debugf("pipeline %s: %s attribute is not read by %s", d.Label, a.Semantic, vs.Name)
		}
	}

	format := d.ColorFormat
	if format == core.PixelFormatUndefined {
		format = c.surface.PreferredFormat()
	}
	if !c.surface.SupportsFormat(format) {
		return nil, fmt.Errorf("pipeline %s: color format %s: %w", d.Label, format, core.ErrUnsupportedColorFormat)
	}

	desc := PipelineDescriptor{
		Label:         d.Label,
		Module:        d.Program.handle,
		VertexEntry:   d.VertexEntry,
		FragmentEntry: d.FragmentEntry,
		Buffers:       buffers,
		ColorFormat:   format,
		Topology:      core.TopologyTriangles,
		CullMode:      d.CullMode,
	}
	solid, err := c.backend.CreateRenderPipeline(&desc)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %v: %w", d.Label, err, core.ErrAllocationFailed)
	}
	lineDesc := desc
	lineDesc.Label = d.Label + " lines"
	lineDesc.Topology = core.TopologyLines
	lineDesc.CullMode = CullNone
	lines, err := c.backend.CreateRenderPipeline(&lineDesc)
	if err != nil {
		solid.Release()
		return nil, fmt.Errorf("pipeline %s: %v: %w", d.Label, err, core.ErrAllocationFailed)
	}
	c.log.Debugf("pipeline %s: %s, layout %s", d.Label, format, layout)

	return &PipelineState{
		label:  d.Label,
		layout: layout,
		format: format,
		desc:   desc,
		solid:  solid,
		lines:  lines,
	}, nil
}

func consumes(ep shaders.EntryPoint, s core.Semantic) bool {
	for _, in := range ep.Inputs {
		if in.Semantic == s {
			return true
		}
	}
	return false
}

// negotiate binds every vertex input to the layout attribute with the same
// semantic. Base types must match. A shader input wider than the attribute is
// accepted only when the backend fills the missing components; an attribute
// wider than the input is a mismatch.
func negotiate(ep shaders.EntryPoint, layout core.VertexLayout, fills bool) ([]VertexBufferDescriptor, error) {
	var maxIdx uint32
	for _, idx := range layout.BufferIndices() {
		maxIdx = max(maxIdx, idx)
	}
	buffers := make([]VertexBufferDescriptor, maxIdx+1)
	for i := range buffers {
		buffers[i].Stride = layout.Stride(uint32(i))
	}

	for _, in := range ep.Inputs {
		if in.Semantic == core.SemanticUnknown {
			return nil, fmt.Errorf("input %q at location %d has no known semantic: %w",
				in.Name, in.Location, core.ErrLayoutMismatch)
		}
		attr, ok := layout.Find(in.Semantic)
		if !ok {
			return nil, fmt.Errorf("layout %s has no %s attribute for location %d: %w",
				layout, in.Semantic, in.Location, core.ErrLayoutMismatch)
		}
		if in.Scalar != "f32" {
			return nil, fmt.Errorf("input %q is %s, layout supplies %s: %w",
				in.Name, in.Type, attr.Format, core.ErrLayoutMismatch)
		}
		supplied := attr.Format.Components()
		switch {
		case supplied > in.Components:
			return nil, fmt.Errorf("input %q is %s, layout supplies wider %s: %w",
				in.Name, in.Type, attr.Format, core.ErrLayoutMismatch)
		case supplied < in.Components && !fills:
			return nil, fmt.Errorf("input %q is %s, layout supplies %s and the backend does not fill missing components: %w",
				in.Name, in.Type, attr.Format, core.ErrLayoutMismatch)
		}
		b := &buffers[attr.BufferIndex]
		b.Attributes = append(b.Attributes, AttributeBinding{
			Location: in.Location,
			Format:   attr.Format,
			Offset:   attr.Offset,
		})
	}
	return buffers, nil
}

func (p *PipelineState) Label() string                 { return p.label }
func (p *PipelineState) Layout() core.VertexLayout     { return p.layout.Clone() }
func (p *PipelineState) ColorFormat() core.PixelFormat { return p.format }

// Descriptor returns the descriptor of the solid variant.
func (p *PipelineState) Descriptor() PipelineDescriptor {
	d := p.desc
	d.Buffers = make([]VertexBufferDescriptor, len(p.desc.Buffers))
	for i, b := range p.desc.Buffers {
		d.Buffers[i] = VertexBufferDescriptor{
			Stride:     b.Stride,
			Attributes: append([]AttributeBinding(nil), b.Attributes...),
		}
	}
	return d
}

// variant picks the device pipeline for a submesh topology and fill mode.
func (p *PipelineState) variant(t core.Topology, fill core.FillMode) RenderPipeline {
	if t == core.TopologyLines || fill == core.FillWireframe {
		return p.lines
	}
	return p.solid
}

func (p *PipelineState) Release() {
	if p.solid != nil {
		p.solid.Release()
		p.solid = nil
	}
	if p.lines != nil {
		p.lines.Release()
		p.lines = nil
	}
}
