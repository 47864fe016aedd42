// Package editing holds the interactive brush state used to highlight
// placements near the cursor.
package editing

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultBrushRadius is the radius of a new brush in world units.
	DefaultBrushRadius float32 = 8

	// MinBrushRadius and MaxBrushRadius bound Resize.
	MinBrushRadius float32 = 0.5
	MaxBrushRadius float32 = 200
)

// Raycaster casts a world-space ray through a window pixel. camera.Camera
// satisfies it.
type Raycaster interface {
	Ray(x, y, width, height float32) (origin, direction mgl32.Vec3)
}

// State is the editing brush. It is safe for concurrent use by the input
// callbacks and the frame goroutine.
type State struct {
	enabled atomic.Bool

	mu       sync.RWMutex
	position mgl32.Vec3
	radius   float32
	ground   float32
}

// NewState returns a disabled brush with DefaultBrushRadius.
//
// Parameters:
//   - options: StateBuilderOption values
//
// Returns:
//   - *State: the brush state
func NewState(options ...StateBuilderOption) *State {
	s := &State{radius: DefaultBrushRadius}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// HighlightEnabled reports whether the brush is active.
func (s *State) HighlightEnabled() bool {
	return s.enabled.Load()
}

// SetHighlightEnabled turns the brush on or off.
func (s *State) SetHighlightEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Toggle flips the brush and returns the new state.
func (s *State) Toggle() bool {
	for {
		old := s.enabled.Load()
		if s.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (s *State) BrushPosition() mgl32.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

func (s *State) SetBrushPosition(position mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = position
}

func (s *State) BrushRadius() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.radius
}

// Resize grows or shrinks the brush by delta, clamped to the radius bounds.
//
// Parameters:
//   - delta: change in world units
//
// Returns:
//   - float32: the new radius
func (s *State) Resize(delta float32) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radius = mgl32.Clamp(s.radius+delta, MinBrushRadius, MaxBrushRadius)
	return s.radius
}

// ScreenToGround moves the brush to where the cursor ray meets the ground
// plane. The brush stays put when the ray misses the ground.
//
// Parameters:
//   - caster: casts the cursor ray
//   - x, y: cursor position in pixels
//   - width, height: window size in pixels
//
// Returns:
//   - mgl32.Vec3: the brush position after the move
//   - bool: whether the ray hit the ground
func (s *State) ScreenToGround(caster Raycaster, x, y, width, height float32) (mgl32.Vec3, bool) {
	origin, dir := caster.Ray(x, y, width, height)

	s.mu.Lock()
	defer s.mu.Unlock()
	hit, ok := common.RayPlaneY(origin, dir, s.ground)
	if ok {
		s.position = hit
	}
	return s.position, ok
}
