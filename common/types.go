package common

// Vertex is the interleaved vertex layout shared by procedural meshes and the GPU pipelines.
// Position occupies shader location 0, Color location 1.
type Vertex struct {
	Position [3]float32
	Color    [4]float32
}

// VertexStride is the byte size of one Vertex.
const VertexStride = 7 * 4

// InstanceData is the per-instance vertex buffer layout: a column-major model matrix
// at locations 2..5 followed by an RGBA tint at location 6.
type InstanceData struct {
	Model [16]float32
	Tint  [4]float32
}

// InstanceStride is the byte size of one InstanceData.
const InstanceStride = 20 * 4

// HighlightTint is the tint applied to instances inside the brush radius.
var HighlightTint = [4]float32{1.0, 0.85, 0.2, 1.0}

// NeutralTint leaves the vertex color unchanged.
var NeutralTint = [4]float32{1, 1, 1, 1}
