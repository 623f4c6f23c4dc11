package shaders

import (
	_ "embed"
)

// MeshWGSL draws a mesh in solid red. Entry points: vertex_main, fragment_main.
//
//go:embed mesh.wgsl
var MeshWGSL string

const (
	MeshVertexEntry   = "vertex_main"
	MeshFragmentEntry = "fragment_main"
)
