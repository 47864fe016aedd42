package editing

// StateBuilderOption is a functional option for configuring a State.
type StateBuilderOption func(*State)

// WithBrushRadius sets the initial brush radius, clamped to the radius bounds.
//
// Parameters:
//   - radius: radius in world units
//
// Returns:
//   - StateBuilderOption: option function to apply
func WithBrushRadius(radius float32) StateBuilderOption {
	return func(s *State) {
		s.radius = min(max(radius, MinBrushRadius), MaxBrushRadius)
	}
}

// WithGroundHeight sets the height of the plane ScreenToGround projects onto.
//
// Parameters:
//   - height: ground plane y
//
// Returns:
//   - StateBuilderOption: option function to apply
func WithGroundHeight(height float32) StateBuilderOption {
	return func(s *State) {
		s.ground = height
	}
}

// WithHighlightEnabled starts the brush enabled or disabled.
//
// Parameters:
//   - enabled: initial state
//
// Returns:
//   - StateBuilderOption: option function to apply
func WithHighlightEnabled(enabled bool) StateBuilderOption {
	return func(s *State) {
		s.enabled.Store(enabled)
	}
}
