package geometry

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gekko3d/meshdraw/meshrt/rt/core"
)

// defaultComponent is the value of component i of a vector the source did not supply: (0, 0, 0, 1).
func defaultComponent(i int) float32 {
	if i == 3 {
		return 1
	}
	return 0
}

// Reproject rewrites vertex data from the src layout into the dst layout.
// Attributes not named by dst are dropped; dst attributes the source lacks are
// filled with defaults and returned as synthesized. Component counts are
// truncated or padded per attribute.
func Reproject(src core.VertexLayout, data []byte, vertexCount int, dst core.VertexLayout) ([]byte, []core.Semantic, error) {
	if err := dst.Validate(); err != nil {
		return nil, nil, err
	}
	for _, a := range dst.Attributes {
		if a.BufferIndex != 0 {
			return nil, nil, fmt.Errorf("requested attribute %s in buffer %d: %w", a.Semantic, a.BufferIndex, core.ErrInvalidLayout)
		}
	}
	if err := src.Validate(); err != nil {
		return nil, nil, fmt.Errorf("source layout: %w", err)
	}
	for _, a := range src.Attributes {
		if a.BufferIndex == 0 && a.Offset+a.Format.Size() > src.Stride(0) {
			return nil, nil, fmt.Errorf("source attribute %s overruns stride %d: %w", a.Semantic, src.Stride(0), core.ErrInvalidLayout)
		}
	}
	if vertexCount < 0 {
		return nil, nil, fmt.Errorf("vertex count %d: %w", vertexCount, core.ErrInvalidParameter)
	}
	srcStride := src.Stride(0)
	if uint64(len(data)) < uint64(vertexCount)*srcStride {
		return nil, nil, fmt.Errorf("%d bytes cannot hold %d vertices of stride %d: %w",
			len(data), vertexCount, srcStride, core.ErrInvalidParameter)
	}

	dstStride := dst.Stride(0)
	out := make([]byte, uint64(vertexCount)*dstStride)

	var synthesized []core.Semantic
	for _, da := range dst.Attributes {
		sa, ok := src.Find(da.Semantic)
		if ok && sa.BufferIndex != 0 {
			ok = false
		}
		if !ok {
			synthesized = append(synthesized, da.Semantic)
		}
		dn := da.Format.Components()
		sn := 0
		if ok {
			sn = sa.Format.Components()
		}
		for v := 0; v < vertexCount; v++ {
			dBase := uint64(v)*dstStride + da.Offset
			sBase := uint64(v)*srcStride + sa.Offset
			for c := 0; c < dn; c++ {
				d := out[dBase+uint64(c)*4:]
				if c < sn {
					copy(d[:4], data[sBase+uint64(c)*4:])
				} else {
					binary.LittleEndian.PutUint32(d, math.Float32bits(defaultComponent(c)))
				}
			}
		}
	}
	return out, synthesized, nil
}
