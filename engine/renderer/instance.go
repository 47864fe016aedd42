package renderer

import (
	"math"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Instance is one placement of a model in the world.
// Its transform is fixed at creation. Depth, the updated flag and the highlight
// flag change every frame and are stored atomically so the frame, tick and
// highlight goroutines can touch them without the renderer lock.
type Instance struct {
	id       uint64
	owner    ModelRenderer
	position mgl32.Vec3
	rotation mgl32.Vec3
	scale    mgl32.Vec3
	model    mgl32.Mat4
	radius   float32

	depth       atomic.Uint32
	updated     atomic.Bool
	highlighted atomic.Bool
}

func newInstance(id uint64, owner ModelRenderer, position, rotation, scale mgl32.Vec3, modelRadius float32) *Instance {
	maxScale := max(mgl32.Abs(scale.X()), mgl32.Abs(scale.Y()), mgl32.Abs(scale.Z()))
	return &Instance{
		id:       id,
		owner:    owner,
		position: position,
		rotation: rotation,
		scale:    scale,
		model:    common.ModelMatrix(position, rotation, scale),
		radius:   modelRadius * maxScale,
	}
}

// ID returns the caller-assigned identity of the placement.
func (i *Instance) ID() uint64 { return i.id }

// Renderer returns the ModelRenderer that owns this instance.
func (i *Instance) Renderer() ModelRenderer { return i.owner }

// Position returns the world position.
func (i *Instance) Position() mgl32.Vec3 { return i.position }

// Rotation returns the Euler rotation in radians.
func (i *Instance) Rotation() mgl32.Vec3 { return i.rotation }

// Scale returns the per-axis scale.
func (i *Instance) Scale() mgl32.Vec3 { return i.scale }

// Transform returns the model matrix.
func (i *Instance) Transform() mgl32.Mat4 { return i.model }

// BoundingRadius returns the model radius multiplied by the largest scale axis.
func (i *Instance) BoundingRadius() float32 { return i.radius }

// Depth returns the last depth stored with SetDepth or UpdateDepth.
func (i *Instance) Depth() float32 {
	return math.Float32frombits(i.depth.Load())
}

// SetDepth stores a depth value. Larger is farther from the viewer.
func (i *Instance) SetDepth(depth float32) {
	i.depth.Store(math.Float32bits(depth))
}

// UpdateDepth sets the depth to the distance between eye and the instance position.
//
// Parameters:
//   - eye: the viewer position
func (i *Instance) UpdateDepth(eye mgl32.Vec3) {
	i.SetDepth(i.position.Sub(eye).Len())
}

// Updated reports whether the instance was already pushed as visible since the
// last view change.
func (i *Instance) Updated() bool {
	return i.updated.Load()
}

// Highlighted reports whether the last brush update found the instance inside
// the brush.
func (i *Instance) Highlighted() bool {
	return i.highlighted.Load()
}

// UpdateBrushHighlighting marks the instance highlighted when its footprint on
// the ground plane overlaps the brush circle.
//
// Parameters:
//   - position: brush center in world space
//   - radius: brush radius
func (i *Instance) UpdateBrushHighlighting(position mgl32.Vec3, radius float32) {
	dx := i.position.X() - position.X()
	dz := i.position.Z() - position.Z()
	reach := radius + i.radius
	i.highlighted.Store(dx*dx+dz*dz <= reach*reach)
}

// ClearHighlight resets the highlight flag.
func (i *Instance) ClearHighlight() {
	i.highlighted.Store(false)
}

// GPUData returns the per-instance vertex data uploaded by GPU backends.
//
// Returns:
//   - common.InstanceData: model matrix and tint
func (i *Instance) GPUData() common.InstanceData {
	tint := common.NeutralTint
	if i.highlighted.Load() {
		tint = common.HighlightTint
	}
	return common.InstanceData{Model: [16]float32(i.model), Tint: tint}
}
