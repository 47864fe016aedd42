package model

// model is the implementation of the Model interface.
type model struct {
	name           string
	hash           Hash
	blendPass      bool
	animated       bool
	boundingRadius float32
	color          [4]float32
	mesh           *Mesh
}

// Model describes one asset shared by every instance placed against it.
// A Model is produced by the Loader and is immutable once built.
type Model interface {
	// Name retrieves the model name as it was requested.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Hash retrieves the case-insensitive identity of the model.
	//
	// Returns:
	//   - Hash: HashName(Name())
	Hash() Hash

	// HasBlendPass reports whether the model is drawn with alpha blending and
	// therefore needs back-to-front ordering.
	//
	// Returns:
	//   - bool: true if the model has a transparency pass
	HasBlendPass() bool

	// NeedsPerInstanceAnimation reports whether each instance carries its own
	// animation state and cannot share a batched draw.
	//
	// Returns:
	//   - bool: true if instances must be drawn one at a time
	NeedsPerInstanceAnimation() bool

	// BoundingRadius returns the radius of a sphere around the model origin that
	// encloses the mesh at unit scale.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// Color returns the base RGBA color baked into the mesh vertices.
	//
	// Returns:
	//   - [4]float32: the base color
	Color() [4]float32

	// Mesh returns the CPU-side geometry uploaded by GPU backends.
	//
	// Returns:
	//   - *Mesh: the mesh, never nil
	Mesh() *Mesh
}

var _ Model = &model{}

// NewModel creates a Model with the given name and options.
// Defaults to an opaque, batchable unit cube.
//
// Parameters:
//   - name: the model name; its upper-cased FNV hash becomes the identity
//   - options: functional options
//
// Returns:
//   - Model: the built model
func NewModel(name string, options ...ModelBuilderOption) Model {
	m := &model{
		name:           name,
		hash:           HashName(name),
		boundingRadius: 0,
		color:          [4]float32{0.8, 0.8, 0.8, 1},
	}

	for _, opt := range options {
		opt(m)
	}

	if m.mesh == nil {
		m.mesh = CubeMesh(m.color)
	}
	if m.boundingRadius <= 0 {
		m.boundingRadius = m.mesh.Radius()
	}

	return m
}

func (m *model) Name() string                    { return m.name }
func (m *model) Hash() Hash                      { return m.hash }
func (m *model) HasBlendPass() bool              { return m.blendPass }
func (m *model) NeedsPerInstanceAnimation() bool { return m.animated }
func (m *model) BoundingRadius() float32         { return m.boundingRadius }
func (m *model) Color() [4]float32               { return m.color }
func (m *model) Mesh() *Mesh                     { return m.mesh }
