package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithBlendPass marks the model as transparent. Its instances are drawn last,
// one at a time, farthest first.
//
// Parameters:
//   - blend: true if the model has a blend pass
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithBlendPass(blend bool) ModelBuilderOption {
	return func(m *model) {
		m.blendPass = blend
	}
}

// WithPerInstanceAnimation marks the model as carrying per-instance animation
// state, which excludes it from batched draws.
//
// Parameters:
//   - animated: true if each instance animates independently
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithPerInstanceAnimation(animated bool) ModelBuilderOption {
	return func(m *model) {
		m.animated = animated
	}
}

// WithBoundingRadius overrides the bounding radius derived from the mesh.
//
// Parameters:
//   - radius: bounding sphere radius at unit scale
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingRadius = radius
	}
}

// WithColor sets the base color used when a procedural mesh is generated.
// Must precede WithShape to affect its vertex colors.
//
// Parameters:
//   - color: RGBA color, alpha below 1 only makes sense with a blend pass
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithColor(color [4]float32) ModelBuilderOption {
	return func(m *model) {
		m.color = color
	}
}

// WithShape generates the model's mesh from a named procedural shape.
// Unknown shapes fall back to a cube.
//
// Parameters:
//   - shape: one of ShapeCube, ShapeQuad, ShapePyramid
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithShape(shape Shape) ModelBuilderOption {
	return func(m *model) {
		m.mesh = ShapeMesh(shape, m.color)
	}
}

// WithMesh sets explicit geometry.
//
// Parameters:
//   - mesh: the mesh to use
//
// Returns:
//   - ModelBuilderOption: option function to apply
func WithMesh(mesh *Mesh) ModelBuilderOption {
	return func(m *model) {
		m.mesh = mesh
	}
}
