package core

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type IndexWidth int

const (
	IndexUInt16 IndexWidth = iota
	IndexUInt32
)

func (w IndexWidth) Size() int {
	if w == IndexUInt16 {
		return 2
	}
	return 4
}

func (w IndexWidth) String() string {
	if w == IndexUInt16 {
		return "uint16"
	}
	return "uint32"
}

// IndexWidthFor picks the narrowest width able to address vertexCount vertices.
func IndexWidthFor(vertexCount int) IndexWidth {
	if vertexCount <= 1<<16 {
		return IndexUInt16
	}
	return IndexUInt32
}

type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyLines
)

func (t Topology) String() string {
	if t == TopologyLines {
		return "lines"
	}
	return "triangles"
}

// FillMode selects solid or wireframe rasterization of triangle primitives.
type FillMode int

const (
	FillSolid FillMode = iota
	FillWireframe
)

func (m FillMode) String() string {
	if m == FillWireframe {
		return "wireframe"
	}
	return "solid"
}

// Submesh is one indexed draw range with a single topology.
type Submesh struct {
	Topology Topology
	Width    IndexWidth
	Indices  []byte
}

// Count is the number of indices in the submesh.
func (s Submesh) Count() int {
	return len(s.Indices) / s.Width.Size()
}

// Index returns the i-th index value.
func (s Submesh) Index(i int) uint32 {
	if s.Width == IndexUInt16 {
		return uint32(binary.LittleEndian.Uint16(s.Indices[i*2:]))
	}
	return binary.LittleEndian.Uint32(s.Indices[i*4:])
}

// NewSubmesh encodes indices at the narrowest width sufficient for vertexCount.
func NewSubmesh(topology Topology, indices []uint32, vertexCount int) Submesh {
	width := IndexWidthFor(vertexCount)
	buf := make([]byte, len(indices)*width.Size())
	for i, idx := range indices {
		if width == IndexUInt16 {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(idx))
		} else {
			binary.LittleEndian.PutUint32(buf[i*4:], idx)
		}
	}
	return Submesh{Topology: topology, Width: width, Indices: buf}
}

// MeshBuffer owns one interleaved vertex buffer and its index ranges.
// It is never mutated after NewMeshBuffer returns.
type MeshBuffer struct {
	id          string
	name        string
	layout      VertexLayout
	vertices    []byte
	vertexCount int
	submeshes   []Submesh
}

func NewMeshBuffer(name string, layout VertexLayout, vertices []byte, vertexCount int, submeshes []Submesh) (*MeshBuffer, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	for _, a := range layout.Attributes {
		if a.BufferIndex != 0 {
			return nil, fmt.Errorf("mesh %q: attribute %s in buffer %d, meshes carry one vertex buffer: %w",
				name, a.Semantic, a.BufferIndex, ErrInvalidLayout)
		}
	}
	stride := layout.Stride(0)
	if uint64(len(vertices)) != uint64(vertexCount)*stride {
		return nil, fmt.Errorf("mesh %q: %d bytes for %d vertices of stride %d: %w",
			name, len(vertices), vertexCount, stride, ErrInvalidParameter)
	}
	for si, sm := range submeshes {
		if len(sm.Indices)%sm.Width.Size() != 0 {
			return nil, fmt.Errorf("mesh %q: submesh %d has a partial index: %w", name, si, ErrInvalidParameter)
		}
		for i := 0; i < sm.Count(); i++ {
			if idx := sm.Index(i); int(idx) >= vertexCount {
				return nil, fmt.Errorf("mesh %q: submesh %d index %d = %d out of %d vertices: %w",
					name, si, i, idx, vertexCount, ErrInvalidParameter)
			}
		}
	}
	return &MeshBuffer{
		id:          uuid.NewString(),
		name:        name,
		layout:      layout.Clone(),
		vertices:    vertices,
		vertexCount: vertexCount,
		submeshes:   submeshes,
	}, nil
}

func (m *MeshBuffer) ID() string           { return m.id }
func (m *MeshBuffer) Name() string         { return m.name }
func (m *MeshBuffer) Layout() VertexLayout { return m.layout.Clone() }
func (m *MeshBuffer) VertexCount() int     { return m.vertexCount }

// Vertices returns the raw vertex bytes. Callers must not modify them.
func (m *MeshBuffer) Vertices() []byte { return m.vertices }

func (m *MeshBuffer) Submeshes() []Submesh {
	out := make([]Submesh, len(m.submeshes))
	copy(out, m.submeshes)
	return out
}

// PixelFormat is a color target format.
type PixelFormat int

const (
	PixelFormatUndefined PixelFormat = iota
	PixelFormatBGRA8Unorm
	PixelFormatBGRA8UnormSrgb
	PixelFormatRGBA8Unorm
	PixelFormatRGBA8UnormSrgb
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGRA8Unorm:
		return "bgra8unorm"
	case PixelFormatBGRA8UnormSrgb:
		return "bgra8unorm-srgb"
	case PixelFormatRGBA8Unorm:
		return "rgba8unorm"
	case PixelFormatRGBA8UnormSrgb:
		return "rgba8unorm-srgb"
	default:
		return "undefined"
	}
}

// ParsePixelFormat accepts the WebGPU spelling of a format, e.g. "bgra8unorm-srgb".
func ParsePixelFormat(name string) (PixelFormat, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for f := PixelFormatBGRA8Unorm; f <= PixelFormatRGBA8UnormSrgb; f++ {
		if n == f.String() || n == strings.ReplaceAll(f.String(), "-", "_") {
			return f, nil
		}
	}
	return PixelFormatUndefined, fmt.Errorf("pixel format %q: %w", name, ErrInvalidParameter)
}

// BGRA reports whether the red and blue channels are swapped in memory.
func (f PixelFormat) BGRA() bool {
	return f == PixelFormatBGRA8Unorm || f == PixelFormatBGRA8UnormSrgb
}

type Color struct {
	R, G, B, A float64
}
