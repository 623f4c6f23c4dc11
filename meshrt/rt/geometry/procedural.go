package geometry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/gekko3d/meshdraw/meshrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// MinSegments is the smallest segment count accepted on either grid axis.
const MinSegments = 3

// SphereParams describes an ellipsoid. Extent is the full size along each axis.
type SphereParams struct {
	Extent        mgl32.Vec3
	SegmentsU     int // around
	SegmentsV     int // pole to pole
	InwardNormals bool
	// Layout is the requested vertex layout; empty means PositionNormalUV.
	Layout core.VertexLayout
}

// PlaneParams describes a grid in the XY plane facing +Z.
type PlaneParams struct {
	Extent        mgl32.Vec2
	SegmentsU     int
	SegmentsV     int
	InwardNormals bool
	Layout        core.VertexLayout
}

func checkGrid(shape string, u, v int, extent []float32) error {
	if u < MinSegments || v < MinSegments {
		return fmt.Errorf("%s segments %dx%d, need at least %dx%d: %w",
			shape, u, v, MinSegments, MinSegments, core.ErrInvalidParameter)
	}
	for _, e := range extent {
		if !(e > 0) || math32.IsInf(e, 0) {
			return fmt.Errorf("%s extent %v must be positive: %w", shape, extent, core.ErrInvalidParameter)
		}
	}
	return nil
}

// nativeWriter packs vertices in the PositionNormalUV layout.
type nativeWriter struct {
	buf []byte
	n   int
}

func newNativeWriter(vertexCount int) *nativeWriter {
	return &nativeWriter{buf: make([]byte, 0, vertexCount*int(core.PositionNormalUV().Stride(0)))}
}

func (w *nativeWriter) put(fs ...float32) {
	for _, f := range fs {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(f))
	}
}

func (w *nativeWriter) vertex(pos, norm mgl32.Vec3, uv mgl32.Vec2) {
	w.put(pos[0], pos[1], pos[2], norm[0], norm[1], norm[2], uv[0], uv[1])
	w.n++
}

// GenerateSphere builds a UV sphere with (SegmentsU+1)*(SegmentsV+1) vertices.
// The pole rows emit a single triangle per quad, giving 6*U*(V-1) indices.
func GenerateSphere(p SphereParams) (*core.MeshBuffer, error) {
	if err := checkGrid("sphere", p.SegmentsU, p.SegmentsV, p.Extent[:]); err != nil {
		return nil, err
	}
	radii := p.Extent.Mul(0.5)
	nVtx := (p.SegmentsU + 1) * (p.SegmentsV + 1)
	w := newNativeWriter(nVtx)

	for y := 0; y <= p.SegmentsV; y++ {
		v := float32(y) / float32(p.SegmentsV)
		phi := v * math32.Pi
		for x := 0; x <= p.SegmentsU; x++ {
			u := float32(x) / float32(p.SegmentsU)
			theta := u * 2 * math32.Pi
			dir := mgl32.Vec3{
				-math32.Cos(theta) * math32.Sin(phi),
				math32.Cos(phi),
				math32.Sin(theta) * math32.Sin(phi),
			}
			pos := mgl32.Vec3{dir[0] * radii[0], dir[1] * radii[1], dir[2] * radii[2]}
			// ellipsoid gradient
			norm := mgl32.Vec3{dir[0] / radii[0], dir[1] / radii[1], dir[2] / radii[2]}.Normalize()
			if p.InwardNormals {
				norm = norm.Mul(-1)
			}
			w.vertex(pos, norm, mgl32.Vec2{u, v})
		}
	}

	row := func(y, x int) uint32 { return uint32(y*(p.SegmentsU+1) + x) }
	indices := make([]uint32, 0, 6*p.SegmentsU*(p.SegmentsV-1))
	tri := func(a, b, c uint32) {
		if p.InwardNormals {
			b, c = c, b
		}
		indices = append(indices, a, b, c)
	}
	for y := 0; y < p.SegmentsV; y++ {
		for x := 0; x < p.SegmentsU; x++ {
			v1, v2 := row(y, x+1), row(y, x)
			v3, v4 := row(y+1, x), row(y+1, x+1)
			if y != 0 {
				tri(v1, v2, v4)
			}
			if y != p.SegmentsV-1 {
				tri(v2, v3, v4)
			}
		}
	}
	return finish("sphere", w, indices, p.Layout)
}

// GeneratePlane builds a grid of (SegmentsU+1)*(SegmentsV+1) vertices and 6*U*V indices.
func GeneratePlane(p PlaneParams) (*core.MeshBuffer, error) {
	if err := checkGrid("plane", p.SegmentsU, p.SegmentsV, p.Extent[:]); err != nil {
		return nil, err
	}
	nVtx := (p.SegmentsU + 1) * (p.SegmentsV + 1)
	w := newNativeWriter(nVtx)
	norm := mgl32.Vec3{0, 0, 1}
	if p.InwardNormals {
		norm = mgl32.Vec3{0, 0, -1}
	}
	for y := 0; y <= p.SegmentsV; y++ {
		v := float32(y) / float32(p.SegmentsV)
		for x := 0; x <= p.SegmentsU; x++ {
			u := float32(x) / float32(p.SegmentsU)
			pos := mgl32.Vec3{(u - 0.5) * p.Extent[0], (v - 0.5) * p.Extent[1], 0}
			w.vertex(pos, norm, mgl32.Vec2{u, 1 - v})
		}
	}

	row := func(y, x int) uint32 { return uint32(y*(p.SegmentsU+1) + x) }
	indices := make([]uint32, 0, 6*p.SegmentsU*p.SegmentsV)
	for y := 0; y < p.SegmentsV; y++ {
		for x := 0; x < p.SegmentsU; x++ {
			a, b := row(y, x), row(y, x+1)
			c, d := row(y+1, x), row(y+1, x+1)
			if p.InwardNormals {
				indices = append(indices, a, d, b, a, c, d)
			} else {
				indices = append(indices, a, b, d, a, d, c)
			}
		}
	}
	return finish("plane", w, indices, p.Layout)
}

func finish(name string, w *nativeWriter, indices []uint32, layout core.VertexLayout) (*core.MeshBuffer, error) {
	native := core.PositionNormalUV()
	data := w.buf
	if len(layout.Attributes) > 0 && !layout.Equal(native) {
		var err error
		data, _, err = Reproject(native, data, w.n, layout)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	} else {
		layout = native
	}
	sub := core.NewSubmesh(core.TopologyTriangles, indices, w.n)
	return core.NewMeshBuffer(name, layout, data, w.n, []core.Submesh{sub})
}
