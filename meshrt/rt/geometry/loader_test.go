package geometry

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# unit quad
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_MissingFile(t *testing.T) {
	l := NewLoader(nil)
	m, err := l.Load(filepath.Join(t.TempDir(), "missing.obj"), core.PositionOnly())
	assert.Nil(t, m)
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
	assert.Equal(t, core.KindAsset, core.KindOf(err))
}

func TestLoader_UnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "mesh.fbx", "whatever")
	m, err := NewLoader(nil).Load(path, core.PositionOnly())
	assert.Nil(t, m)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	assert.True(t, NewLoader(nil).SupportsExtension(".obj"))
	assert.True(t, NewLoader(nil).SupportsExtension(".OBJ"))
	assert.False(t, NewLoader(nil).SupportsExtension(".gltf"))
}

func TestLoader_EmptyAsset(t *testing.T) {
	path := writeTemp(t, "empty.obj", "# nothing here\nv 0 0 0\n")
	m, err := NewLoader(nil).Load(path, core.PositionOnly())
	assert.Nil(t, m)
	assert.ErrorIs(t, err, core.ErrEmptyAsset)
}

func TestLoader_QuadPositionOnly(t *testing.T) {
	path := writeTemp(t, "quad.obj", quadOBJ)
	m, err := NewLoader(nil).Load(path, core.PositionOnly())
	require.NoError(t, err)

	assert.Equal(t, "quad", m.Name())
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, uint64(12), m.Layout().Stride(0))
	subs := m.Submeshes()
	require.Len(t, subs, 1)
	assert.Equal(t, 6, subs[0].Count())
	assertIndicesInRange(t, m)

	// second vertex is (1, 0, 0)
	assert.Equal(t, float32(1), readFloat(m.Vertices(), 12))
	assert.Equal(t, float32(0), readFloat(m.Vertices(), 16))
}

func TestLoader_QuadFullLayoutFlipsV(t *testing.T) {
	path := writeTemp(t, "quad.obj", quadOBJ)
	m, err := NewLoader(nil).Load(path, core.PositionNormalUV())
	require.NoError(t, err)

	data := m.Vertices()
	assert.Equal(t, float32(1), readFloat(data, 20), "normal z")
	assert.Equal(t, float32(0), readFloat(data, 24), "u of first vertex")
	assert.Equal(t, float32(1), readFloat(data, 28), "flipped v of first vertex")
}

func TestLoader_SynthesizesMissingAttributes(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"
	path := writeTemp(t, "tri.obj", src)

	var out, errOut strings.Builder
	log := core.NewWriterLogger("test", false, &out, &errOut)
	m, err := NewLoader(log).Load(path, core.PositionNormalUV())
	require.NoError(t, err)

	assert.Equal(t, "tri", m.Name(), "name falls back to the file name")
	assert.Equal(t, 3, m.VertexCount())
	assert.Equal(t, float32(0), readFloat(m.Vertices(), 12))
	assert.Contains(t, errOut.String(), "normal")
	assert.Contains(t, errOut.String(), "uv")
}

func TestOBJDecoder_ObjectNames(t *testing.T) {
	objs, err := OBJDecoder{}.Decode(strings.NewReader(
		"v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\no unnamed\nf 3 2 1\no unnamed7x\nf 1 3 2\n"))
	require.NoError(t, err)
	require.Len(t, objs, 3)
	assert.Equal(t, "", objs[0].Name, "faces before any o statement")
	assert.Equal(t, "unnamed", objs[1].Name)
	assert.Equal(t, "unnamed7x", objs[2].Name)
}

func TestLoader_MalformedIndex(t *testing.T) {
	path := writeTemp(t, "bad.obj", "v 0 0 0\nv 1 0 0\nf 1 2 9\n")
	m, err := NewLoader(nil).Load(path, core.PositionOnly())
	assert.Nil(t, m)
	assert.ErrorIs(t, err, core.ErrMalformedAsset)
}

type stubDecoder struct {
	objects []DecodedObject
}

func (stubDecoder) SupportsExtension(ext string) bool { return ext == ".stub" }

func (d stubDecoder) Decode(io.Reader) ([]DecodedObject, error) { return d.objects, nil }

func TestLoader_SkipsEmptyObjectsAndReprojects(t *testing.T) {
	native := core.Packed(
		core.AttributeSpec{Semantic: core.SemanticPosition, Format: core.FormatFloat2},
		core.AttributeSpec{Semantic: core.SemanticColor, Format: core.FormatFloat4},
	)
	verts := make([]byte, 3*24)
	// x of vertex 1
	copy(verts[24:], []byte{0, 0, 0x80, 0x3f})

	l := NewLoader(nil)
	l.Decoders = append(l.Decoders, stubDecoder{objects: []DecodedObject{
		{Name: "empty", Layout: native},
		{
			Name: "tri", Layout: native, Vertices: verts, VertexCount: 3,
			Submeshes: []core.Submesh{core.NewSubmesh(core.TopologyTriangles, []uint32{0, 1, 2}, 3)},
		},
	}})

	m, err := l.Load(writeTemp(t, "mesh.stub", ""), core.PositionOnly())
	require.NoError(t, err)
	assert.Equal(t, "tri", m.Name())
	assert.Equal(t, float32(1), readFloat(m.Vertices(), 12))
	assert.Equal(t, float32(0), readFloat(m.Vertices(), 20), "missing z is zero")
}

func TestLoader_RejectsOverrunningDecodedLayout(t *testing.T) {
	bad := core.PositionOnly()
	bad.Strides = map[uint32]uint64{0: 4}

	l := NewLoader(nil)
	l.Decoders = append(l.Decoders, stubDecoder{objects: []DecodedObject{{
		Name: "tri", Layout: bad, Vertices: make([]byte, 12), VertexCount: 3,
		Submeshes: []core.Submesh{core.NewSubmesh(core.TopologyTriangles, []uint32{0, 1, 2}, 3)},
	}}})

	m, err := l.Load(writeTemp(t, "mesh.stub", ""), core.PositionOnly())
	assert.Nil(t, m)
	assert.ErrorIs(t, err, core.ErrInvalidLayout)
}
