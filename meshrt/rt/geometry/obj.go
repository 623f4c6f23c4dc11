package geometry

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/gekko3d/meshdraw/meshrt/rt/core"
)

// OBJDecoder decodes Wavefront .obj files. Materials are ignored.
type OBJDecoder struct{}

func (OBJDecoder) SupportsExtension(ext string) bool {
	return strings.EqualFold(ext, ".obj")
}

func (OBJDecoder) Decode(r io.Reader) ([]DecodedObject, error) {
	dec, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrMalformedAsset)
	}

	var out []DecodedObject
	for _, o := range dec.Objects {
		if len(o.Faces) == 0 {
			continue
		}
		do, err := buildOBJObject(dec, o)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", o.Name, err)
		}
		out = append(out, do)
	}
	return out, nil
}

// objectName drops the "unnamed<line>" name the decoder gives faces that
// precede any "o" statement.
func objectName(name string) string {
	rest, ok := strings.CutPrefix(name, "unnamed")
	if !ok || rest == "" {
		return name
	}
	if _, err := strconv.Atoi(rest); err != nil {
		return name
	}
	return ""
}

func validIndex(i, count int) bool {
	return i >= 0 && i < count
}

// faceAttr reports whether every corner of every face references a valid element.
func faceAttr(faces []obj.Face, pick func(obj.Face) []int, count int) bool {
	if count == 0 {
		return false
	}
	for _, f := range faces {
		idx := pick(f)
		if len(idx) != len(f.Vertices) {
			return false
		}
		for _, i := range idx {
			if !validIndex(i, count) {
				return false
			}
		}
	}
	return true
}

func buildOBJObject(dec *obj.Decoder, o obj.Object) (DecodedObject, error) {
	nPos := len(dec.Vertices) / 3
	nNorm := len(dec.Normals) / 3
	nUV := len(dec.Uvs) / 2

	name := objectName(o.Name)
	hasNormals := faceAttr(o.Faces, func(f obj.Face) []int { return f.Normals }, nNorm)
	hasUVs := faceAttr(o.Faces, func(f obj.Face) []int { return f.Uvs }, nUV)

	specs := []core.AttributeSpec{{Semantic: core.SemanticPosition, Format: core.FormatFloat3}}
	if hasNormals {
		specs = append(specs, core.AttributeSpec{Semantic: core.SemanticNormal, Format: core.FormatFloat3})
	}
	if hasUVs {
		specs = append(specs, core.AttributeSpec{Semantic: core.SemanticUV, Format: core.FormatFloat2})
	}
	layout := core.Packed(specs...)

	var vertices []byte
	var indices []uint32
	unique := make(map[[3]int]uint32)
	count := 0

	put := func(f float32) {
		vertices = binary.LittleEndian.AppendUint32(vertices, math.Float32bits(f))
	}
	corner := func(f obj.Face, k int) error {
		vi := f.Vertices[k]
		if !validIndex(vi, nPos) {
			return fmt.Errorf("vertex index %d out of %d positions: %w", vi, nPos, core.ErrMalformedAsset)
		}
		key := [3]int{vi, -1, -1}
		if hasUVs {
			key[1] = f.Uvs[k]
		}
		if hasNormals {
			key[2] = f.Normals[k]
		}
		if idx, ok := unique[key]; ok {
			indices = append(indices, idx)
			return nil
		}
		put(dec.Vertices[vi*3])
		put(dec.Vertices[vi*3+1])
		put(dec.Vertices[vi*3+2])
		if hasNormals {
			put(dec.Normals[key[2]*3])
			put(dec.Normals[key[2]*3+1])
			put(dec.Normals[key[2]*3+2])
		}
		if hasUVs {
			put(dec.Uvs[key[1]*2])
			put(1 - dec.Uvs[key[1]*2+1])
		}
		idx := uint32(count)
		count++
		unique[key] = idx
		indices = append(indices, idx)
		return nil
	}

	for _, f := range o.Faces {
		// fan triangulation
		for i := 2; i < len(f.Vertices); i++ {
			for _, k := range [3]int{0, i - 1, i} {
				if err := corner(f, k); err != nil {
					return DecodedObject{}, err
				}
			}
		}
	}
	if len(indices) == 0 {
		return DecodedObject{Name: name, Layout: layout}, nil
	}

	return DecodedObject{
		Name:        name,
		Layout:      layout,
		Vertices:    vertices,
		VertexCount: count,
		Submeshes:   []core.Submesh{core.NewSubmesh(core.TopologyTriangles, indices, count)},
	}, nil
}
