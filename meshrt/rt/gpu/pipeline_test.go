package gpu

import (
	"errors"
	"testing"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/gekko3d/meshdraw/meshrt/rt/shaders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*Context, *fakeBackend, *fakeSurface) {
	t.Helper()
	b := newFakeBackend()
	s := newFakeSurface()
	ctx, err := NewContext(b, s, nil)
	require.NoError(t, err)
	return ctx, b, s
}

func compileMesh(t *testing.T, ctx *Context) *ShaderProgram {
	t.Helper()
	prog, err := ctx.CompileProgram("mesh", shaders.MeshWGSL)
	require.NoError(t, err)
	return prog
}

func TestNewContext_RequiresDevice(t *testing.T) {
	_, err := NewContext(nil, newFakeSurface(), nil)
	assert.ErrorIs(t, err, core.ErrDeviceUnavailable)
	assert.Equal(t, core.KindResource, core.KindOf(err))

	_, err = NewContext(newFakeBackend(), nil, nil)
	assert.ErrorIs(t, err, core.ErrDeviceUnavailable)
}

func TestCompileProgram_Diagnostics(t *testing.T) {
	ctx, b, _ := newTestContext(t)

	prog, err := ctx.CompileProgram("broken", "@vertex fn vs() {\n")
	assert.Nil(t, prog)
	assert.ErrorIs(t, err, core.ErrCompile)
	assert.Equal(t, core.KindCompile, core.KindOf(err))
	var ce *core.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "broken", ce.Label)
	require.NotEmpty(t, ce.Diagnostics)
	assert.Equal(t, 1, ce.Diagnostics[0].Line)
	assert.Zero(t, b.modules, "nothing reaches the device")

	b.failModule = errors.New("invalid type in body")
	_, err = ctx.CompileProgram("mesh", shaders.MeshWGSL)
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Error(), "invalid type in body")
}

func TestResolveEntry(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	prog := compileMesh(t, ctx)

	ep, err := prog.ResolveEntry("fragment_main", shaders.StageFragment)
	require.NoError(t, err)
	assert.Equal(t, "fragment_main", ep.Name)

	_, err = prog.ResolveEntry("fragment_mani", shaders.StageFragment)
	assert.ErrorIs(t, err, core.ErrEntryPointNotFound)
	assert.Contains(t, err.Error(), "fragment_main", "lists the available entry points")

	_, err = prog.ResolveEntry("vertex_main", shaders.StageFragment)
	assert.ErrorIs(t, err, core.ErrEntryPointNotFound)
}

func TestBuildPipeline_PositionOnly(t *testing.T) {
	ctx, b, _ := newTestContext(t)
	prog := compileMesh(t, ctx)

	ps, err := ctx.BuildPipeline(PipelineDesc{Program: prog, Layout: core.PositionOnly()})
	require.NoError(t, err)

	assert.Equal(t, core.PixelFormatBGRA8Unorm, ps.ColorFormat())
	require.Len(t, b.pipelines, 2)
	assert.Equal(t, core.TopologyTriangles, b.pipelines[0].Topology)
	assert.Equal(t, core.TopologyLines, b.pipelines[1].Topology)

	d := ps.Descriptor()
	assert.Equal(t, "vertex_main", d.VertexEntry)
	assert.Equal(t, "fragment_main", d.FragmentEntry)
	require.Len(t, d.Buffers, 1)
	assert.Equal(t, uint64(12), d.Buffers[0].Stride)
	assert.Equal(t, []AttributeBinding{{Location: 0, Format: core.FormatFloat3, Offset: 0}}, d.Buffers[0].Attributes)
}

func TestBuildPipeline_Idempotent(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	prog := compileMesh(t, ctx)
	desc := PipelineDesc{Program: prog, Layout: core.PositionOnly(), CullMode: CullBack}

	a, err := ctx.BuildPipeline(desc)
	require.NoError(t, err)
	b, err := ctx.BuildPipeline(desc)
	require.NoError(t, err)
	assert.Equal(t, a.Descriptor(), b.Descriptor())
}

func TestBuildPipeline_LayoutIsACopy(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	prog := compileMesh(t, ctx)
	layout := core.PositionOnly()
	layout.Strides = map[uint32]uint64{0: 16}

	ps, err := ctx.BuildPipeline(PipelineDesc{Program: prog, Layout: layout})
	require.NoError(t, err)

	layout.Strides[0] = 32
	assert.Equal(t, uint64(16), ps.Layout().Stride(0))
	ps.Layout().Strides[0] = 64
	assert.Equal(t, uint64(16), ps.Layout().Stride(0))
}

func TestBuildPipeline_SupersetLayoutBindsOnlyConsumed(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	prog := compileMesh(t, ctx)

	ps, err := ctx.BuildPipeline(PipelineDesc{Program: prog, Layout: core.PositionNormalUV()})
	require.NoError(t, err)
	d := ps.Descriptor()
	assert.Equal(t, uint64(32), d.Buffers[0].Stride)
	assert.Len(t, d.Buffers[0].Attributes, 1)
}

func TestBuildPipeline_MisspelledFragmentEntry(t *testing.T) {
	ctx, b, _ := newTestContext(t)
	prog := compileMesh(t, ctx)

	ps, err := ctx.BuildPipeline(PipelineDesc{
		Program:       prog,
		FragmentEntry: "fragment_mani",
		Layout:        core.PositionOnly(),
	})
	assert.Nil(t, ps)
	assert.ErrorIs(t, err, core.ErrEntryPointNotFound)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Empty(t, b.pipelines)
	assert.Empty(t, b.streams)
}

func TestBuildPipeline_LayoutMismatch(t *testing.T) {
	normalOnly := core.Packed(core.AttributeSpec{Semantic: core.SemanticNormal, Format: core.FormatFloat3})
	cases := map[string]struct {
		source string
		layout core.VertexLayout
		fills  bool
	}{
		"missing position":      {source: shaders.MeshWGSL, layout: normalOnly, fills: true},
		"narrower without fill": {source: shaders.MeshWGSL, layout: core.PositionOnly(), fills: false},
		"wider than input": {
			source: "@vertex fn vertex_main(@location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(); }\n" +
				"@fragment fn fragment_main() -> @location(0) vec4<f32> { return vec4<f32>(); }",
			layout: core.PositionOnly(),
			fills:  true,
		},
		"integer input": {
			source: "@vertex fn vertex_main(@location(0) position: vec3<u32>) -> @builtin(position) vec4<f32> { return vec4<f32>(); }\n" +
				"@fragment fn fragment_main() -> @location(0) vec4<f32> { return vec4<f32>(); }",
			layout: core.PositionOnly(),
			fills:  true,
		},
		"unknown semantic": {
			source: "@vertex fn vertex_main(@location(0) weights: vec3<f32>) -> @builtin(position) vec4<f32> { return vec4<f32>(); }\n" +
				"@fragment fn fragment_main() -> @location(0) vec4<f32> { return vec4<f32>(); }",
			layout: core.PositionOnly(),
			fills:  true,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx, b, _ := newTestContext(t)
			b.fills = tc.fills
			prog, err := ctx.CompileProgram(name, tc.source)
			require.NoError(t, err)

			ps, err := ctx.BuildPipeline(PipelineDesc{Program: prog, Layout: tc.layout})
			assert.Nil(t, ps)
			assert.ErrorIs(t, err, core.ErrLayoutMismatch)
			assert.Empty(t, b.pipelines)
		})
	}
}

func TestBuildPipeline_UnsupportedColorFormat(t *testing.T) {
	ctx, b, _ := newTestContext(t)
	prog := compileMesh(t, ctx)

	_, err := ctx.BuildPipeline(PipelineDesc{
		Program:     prog,
		Layout:      core.PositionOnly(),
		ColorFormat: core.PixelFormatRGBA8UnormSrgb,
	})
	assert.ErrorIs(t, err, core.ErrUnsupportedColorFormat)
	assert.Empty(t, b.pipelines)
}

func TestBuildPipeline_InvalidLayout(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	prog := compileMesh(t, ctx)

	_, err := ctx.BuildPipeline(PipelineDesc{Program: prog})
	assert.ErrorIs(t, err, core.ErrInvalidLayout)
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))
}
