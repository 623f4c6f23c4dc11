package core

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// Semantic is the role an attribute plays, binding a shader input to a buffer region.
type Semantic int

const (
	SemanticUnknown Semantic = iota
	SemanticPosition
	SemanticNormal
	SemanticUV
	SemanticColor
	SemanticTangent
)

func (s Semantic) String() string {
	switch s {
	case SemanticPosition:
		return "position"
	case SemanticNormal:
		return "normal"
	case SemanticUV:
		return "uv"
	case SemanticColor:
		return "color"
	case SemanticTangent:
		return "tangent"
	default:
		return "unknown"
	}
}

// ParseSemantic maps attribute and shader input names onto a Semantic.
func ParseSemantic(name string) Semantic {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "position", "pos":
		return SemanticPosition
	case "normal", "norm":
		return SemanticNormal
	case "uv", "texcoord", "tex_coord", "texcoords":
		return SemanticUV
	case "color", "colour":
		return SemanticColor
	case "tangent":
		return SemanticTangent
	default:
		return SemanticUnknown
	}
}

// VertexFormat is the per-vertex storage of one attribute. All formats are 32-bit float components.
type VertexFormat int

const (
	FormatInvalid VertexFormat = iota
	FormatFloat
	FormatFloat2
	FormatFloat3
	FormatFloat4
)

func (f VertexFormat) Components() int {
	switch f {
	case FormatFloat:
		return 1
	case FormatFloat2:
		return 2
	case FormatFloat3:
		return 3
	case FormatFloat4:
		return 4
	default:
		return 0
	}
}

// Size in bytes.
func (f VertexFormat) Size() uint64 {
	return uint64(f.Components()) * 4
}

func (f VertexFormat) String() string {
	switch f {
	case FormatFloat:
		return "float"
	case FormatFloat2:
		return "float2"
	case FormatFloat3:
		return "float3"
	case FormatFloat4:
		return "float4"
	default:
		return "invalid"
	}
}

// FloatFormat returns the float format with n components, or FormatInvalid.
func FloatFormat(n int) VertexFormat {
	switch n {
	case 1:
		return FormatFloat
	case 2:
		return FormatFloat2
	case 3:
		return FormatFloat3
	case 4:
		return FormatFloat4
	default:
		return FormatInvalid
	}
}

func ParseVertexFormat(name string) (VertexFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "float", "float32":
		return FormatFloat, nil
	case "float2", "float32x2":
		return FormatFloat2, nil
	case "float3", "float32x3":
		return FormatFloat3, nil
	case "float4", "float32x4":
		return FormatFloat4, nil
	default:
		return FormatInvalid, fmt.Errorf("vertex format %q: %w", name, ErrInvalidParameter)
	}
}

type VertexAttribute struct {
	Semantic    Semantic
	Format      VertexFormat
	Offset      uint64
	BufferIndex uint32
}

func (a VertexAttribute) String() string {
	return fmt.Sprintf("%s:%s@%d/%d", a.Semantic, a.Format, a.Offset, a.BufferIndex)
}

// VertexLayout is an ordered attribute list. Strides holds explicit per-buffer
// overrides; a buffer without one is tightly packed.
type VertexLayout struct {
	Attributes []VertexAttribute
	Strides    map[uint32]uint64
}

// AttributeSpec names an attribute for Packed.
type AttributeSpec struct {
	Semantic Semantic
	Format   VertexFormat
}

// Packed lays the attributes out back to back in buffer 0.
func Packed(specs ...AttributeSpec) VertexLayout {
	attrs := make([]VertexAttribute, 0, len(specs))
	var offset uint64
	for _, s := range specs {
		attrs = append(attrs, VertexAttribute{
			Semantic: s.Semantic,
			Format:   s.Format,
			Offset:   offset,
		})
		offset += s.Format.Size()
	}
	return VertexLayout{Attributes: attrs}
}

// PositionOnly is three packed floats per vertex.
func PositionOnly() VertexLayout {
	return Packed(AttributeSpec{SemanticPosition, FormatFloat3})
}

// PositionNormalUV is the native layout of the procedural generators.
func PositionNormalUV() VertexLayout {
	return Packed(
		AttributeSpec{SemanticPosition, FormatFloat3},
		AttributeSpec{SemanticNormal, FormatFloat3},
		AttributeSpec{SemanticUV, FormatFloat2},
	)
}

// Stride of the given buffer index: the override if present, else the sum of attribute sizes.
func (l VertexLayout) Stride(bufferIndex uint32) uint64 {
	if s, ok := l.Strides[bufferIndex]; ok {
		return s
	}
	var sum uint64
	for _, a := range l.Attributes {
		if a.BufferIndex == bufferIndex {
			sum += a.Format.Size()
		}
	}
	return sum
}

func (l VertexLayout) Find(s Semantic) (VertexAttribute, bool) {
	for _, a := range l.Attributes {
		if a.Semantic == s {
			return a, true
		}
	}
	return VertexAttribute{}, false
}

// BufferIndices returns the distinct buffer indices in ascending order.
func (l VertexLayout) BufferIndices() []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, a := range l.Attributes {
		if !seen[a.BufferIndex] {
			seen[a.BufferIndex] = true
			out = append(out, a.BufferIndex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a copy sharing no attribute slice or stride map with l.
func (l VertexLayout) Clone() VertexLayout {
	return VertexLayout{
		Attributes: slices.Clone(l.Attributes),
		Strides:    maps.Clone(l.Strides),
	}
}

// Validate checks the layout's structure.
func (l VertexLayout) Validate() error {
	if len(l.Attributes) == 0 {
		return fmt.Errorf("layout has no attributes: %w", ErrInvalidLayout)
	}
	seen := map[Semantic]bool{}
	lastOffset := map[uint32]uint64{}
	for i, a := range l.Attributes {
		if a.Semantic == SemanticUnknown {
			return fmt.Errorf("attribute %d has no semantic: %w", i, ErrInvalidLayout)
		}
		if a.Format.Components() == 0 {
			return fmt.Errorf("attribute %s has invalid format: %w", a.Semantic, ErrInvalidLayout)
		}
		if seen[a.Semantic] {
			return fmt.Errorf("duplicate %s attribute: %w", a.Semantic, ErrInvalidLayout)
		}
		seen[a.Semantic] = true
		if last, ok := lastOffset[a.BufferIndex]; ok && a.Offset < last {
			return fmt.Errorf("attribute %s offset %d precedes %d in buffer %d: %w",
				a.Semantic, a.Offset, last, a.BufferIndex, ErrInvalidLayout)
		}
		lastOffset[a.BufferIndex] = a.Offset
		if s, ok := l.Strides[a.BufferIndex]; ok && a.Offset+a.Format.Size() > s {
			return fmt.Errorf("attribute %s overruns stride %d of buffer %d: %w",
				a.Semantic, s, a.BufferIndex, ErrInvalidLayout)
		}
	}
	return nil
}

// Equal reports whether both layouts describe the same bytes.
func (l VertexLayout) Equal(o VertexLayout) bool {
	if len(l.Attributes) != len(o.Attributes) {
		return false
	}
	for i := range l.Attributes {
		if l.Attributes[i] != o.Attributes[i] {
			return false
		}
	}
	for _, idx := range append(l.BufferIndices(), o.BufferIndices()...) {
		if l.Stride(idx) != o.Stride(idx) {
			return false
		}
	}
	return true
}

func (l VertexLayout) String() string {
	parts := make([]string, 0, len(l.Attributes))
	for _, a := range l.Attributes {
		parts = append(parts, a.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}
