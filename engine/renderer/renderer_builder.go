package renderer

// ModelRendererBuilderOption is a functional option applied to a model renderer during construction.
type ModelRendererBuilderOption func(*modelRenderer)

// WithDrawBackend sets the backend that receives the renderer's draws and release.
// Defaults to NopDrawBackend. A nil backend is ignored.
//
// Parameters:
//   - b: the draw backend
//
// Returns:
//   - ModelRendererBuilderOption: option function to apply
func WithDrawBackend(b DrawBackend) ModelRendererBuilderOption {
	return func(r *modelRenderer) {
		if b != nil {
			r.backend = b
		}
	}
}

// WithInstanceCapacity pre-sizes the instance map.
//
// Parameters:
//   - n: expected instance count
//
// Returns:
//   - ModelRendererBuilderOption: option function to apply
func WithInstanceCapacity(n int) ModelRendererBuilderOption {
	return func(r *modelRenderer) {
		if n > 0 {
			r.instances = make(map[uint64]*Instance, n)
		}
	}
}
