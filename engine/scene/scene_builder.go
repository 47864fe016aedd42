package scene

import (
	"time"

	"github.com/Carmen-Shannon/oxy-instances/engine/renderer"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active for rendering.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithRendererFactory replaces the function that builds a renderer for a newly
// loaded model. Defaults to DefaultRendererFactory.
//
// Parameters:
//   - factory: the renderer factory; nil keeps the default
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRendererFactory(factory RendererFactory) SceneBuilderOption {
	return func(s *scene) {
		if factory != nil {
			s.factory = factory
		}
	}
}

// WithDrawBackend sets the backend that new renderers draw through and that
// receives the phase transitions of each frame. Defaults to
// renderer.NopDrawBackend.
//
// Parameters:
//   - backend: the draw backend; nil keeps the default
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithDrawBackend(backend renderer.DrawBackend) SceneBuilderOption {
	return func(s *scene) {
		if backend != nil {
			s.backend = backend
		}
	}
}

// WithBrushSource sets the editing brush consulted for highlighting at the
// start of each frame. Without one no highlighting happens.
//
// Parameters:
//   - brush: the brush source
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithBrushSource(brush BrushSource) SceneBuilderOption {
	return func(s *scene) {
		s.brush = brush
	}
}

// WithViewState shares a ViewState between the scene and other consumers of
// the view-dirty flag.
//
// Parameters:
//   - view: the shared view state; nil keeps the scene's own
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithViewState(view *ViewState) SceneBuilderOption {
	return func(s *scene) {
		if view != nil {
			s.view = view
		}
	}
}

// WithReclaimInterval sets how long the reclamation worker waits on an empty
// queue before polling again. Enqueues wake it immediately regardless.
// Default is DefaultReclaimInterval (200ms).
//
// Parameters:
//   - interval: the idle backoff
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithReclaimInterval(interval time.Duration) SceneBuilderOption {
	return func(s *scene) {
		s.reclaimInterval = interval
	}
}

// WithHighlightWorkers sets the number of goroutines brush highlighting fans
// out across for large visible sets. A value of 1 keeps highlighting on the
// frame goroutine. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of highlight workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithHighlightWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		s.highlighter.workers = max(n, 1)
	}
}
