package editing

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

type fixedRay struct {
	origin, direction mgl32.Vec3
}

func (f fixedRay) Ray(_, _, _, _ float32) (mgl32.Vec3, mgl32.Vec3) {
	return f.origin, f.direction
}

func TestToggle(t *testing.T) {
	s := NewState()
	assert.False(t, s.HighlightEnabled())
	assert.True(t, s.Toggle())
	assert.True(t, s.HighlightEnabled())
	assert.False(t, s.Toggle())

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Toggle()
		}()
	}
	wg.Wait()
	assert.False(t, s.HighlightEnabled(), "an even number of toggles restores the state")
}

func TestResizeClamps(t *testing.T) {
	s := NewState(WithBrushRadius(10))
	assert.Equal(t, float32(15), s.Resize(5))
	assert.Equal(t, MinBrushRadius, s.Resize(-1000))
	assert.Equal(t, MaxBrushRadius, s.Resize(1000))
	assert.Equal(t, MaxBrushRadius, NewState(WithBrushRadius(1e6)).BrushRadius())
}

func TestScreenToGround(t *testing.T) {
	s := NewState(WithGroundHeight(2))

	pos, ok := s.ScreenToGround(fixedRay{mgl32.Vec3{0, 12, 0}, mgl32.Vec3{1, -1, 0}}, 0, 0, 1, 1)
	assert.True(t, ok)
	assert.InDelta(t, 10, pos.X(), 1e-5)
	assert.InDelta(t, 2, pos.Y(), 1e-5)
	assert.Equal(t, pos, s.BrushPosition())

	pos, ok = s.ScreenToGround(fixedRay{mgl32.Vec3{0, 12, 0}, mgl32.Vec3{0, 1, 0}}, 0, 0, 1, 1)
	assert.False(t, ok, "ray pointing at the sky misses")
	assert.InDelta(t, 10, pos.X(), 1e-5, "brush keeps its last position")
}
