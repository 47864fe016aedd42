package model

import (
	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Shape names a procedural mesh.
type Shape string

const (
	ShapeCube    Shape = "cube"
	ShapeQuad    Shape = "quad"
	ShapePyramid Shape = "pyramid"
)

// Mesh is indexed triangle-list geometry in the common.Vertex layout.
type Mesh struct {
	Vertices []common.Vertex
	Indices  []uint32
}

// Radius returns the largest vertex distance from the origin.
func (m *Mesh) Radius() float32 {
	var r float32
	for _, v := range m.Vertices {
		if l := mgl32.Vec3(v.Position).Len(); l > r {
			r = l
		}
	}
	return r
}

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() int {
	return len(m.Indices)
}

// ShapeMesh builds the mesh for a shape, falling back to a cube.
//
// Parameters:
//   - shape: the shape name
//   - color: the vertex color
//
// Returns:
//   - *Mesh: the generated mesh
func ShapeMesh(shape Shape, color [4]float32) *Mesh {
	switch shape {
	case ShapeQuad:
		return QuadMesh(color)
	case ShapePyramid:
		return PyramidMesh(color)
	default:
		return CubeMesh(color)
	}
}

// CubeMesh returns a unit cube centered at the origin with per-face shading.
func CubeMesh(color [4]float32) *Mesh {
	faces := [6][4][3]float32{
		{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}},
		{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}},
		{{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}},
		{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}},
		{{0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}},
		{{-0.5, -0.5, -0.5}, {-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}},
	}
	shade := [6]float32{1.0, 0.7, 0.95, 0.55, 0.85, 0.8}

	m := &Mesh{
		Vertices: make([]common.Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	for f, corners := range faces {
		base := uint32(len(m.Vertices))
		c := [4]float32{color[0] * shade[f], color[1] * shade[f], color[2] * shade[f], color[3]}
		for _, p := range corners {
			m.Vertices = append(m.Vertices, common.Vertex{Position: p, Color: c})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// QuadMesh returns a unit quad in the XY plane, visible from both sides.
func QuadMesh(color [4]float32) *Mesh {
	return &Mesh{
		Vertices: []common.Vertex{
			{Position: [3]float32{-0.5, 0, 0}, Color: color},
			{Position: [3]float32{0.5, 0, 0}, Color: color},
			{Position: [3]float32{0.5, 1, 0}, Color: color},
			{Position: [3]float32{-0.5, 1, 0}, Color: color},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3, 0, 2, 1, 0, 3, 2},
	}
}

// PyramidMesh returns a square pyramid with its base on the XZ plane.
func PyramidMesh(color [4]float32) *Mesh {
	dark := [4]float32{color[0] * 0.6, color[1] * 0.6, color[2] * 0.6, color[3]}
	return &Mesh{
		Vertices: []common.Vertex{
			{Position: [3]float32{-0.5, 0, 0.5}, Color: dark},
			{Position: [3]float32{0.5, 0, 0.5}, Color: dark},
			{Position: [3]float32{0.5, 0, -0.5}, Color: dark},
			{Position: [3]float32{-0.5, 0, -0.5}, Color: dark},
			{Position: [3]float32{0, 1, 0}, Color: color},
		},
		Indices: []uint32{
			0, 2, 1, 0, 3, 2,
			0, 1, 4, 1, 2, 4, 2, 3, 4, 3, 0, 4,
		},
	}
}
