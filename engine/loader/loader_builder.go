package loader

import (
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
)

// LoaderBuilderOption is a functional option for configuring a Loader.
type LoaderBuilderOption func(*loader)

// WithModel pre-populates the cache with a model under its own name.
//
// Parameters:
//   - m: the model to cache
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithModel(m model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[m.Hash()] = m
	}
}

// WithPreloadWorkers sets how many goroutines Preload uses. Defaults to 4.
//
// Parameters:
//   - n: worker count (minimum 1)
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithPreloadWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.preloadWorkers = max(n, 1)
	}
}

// WithReloadCallback registers a function called after every successful reload.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - LoaderBuilderOption: option function to apply
func WithReloadCallback(fn func()) LoaderBuilderOption {
	return func(l *loader) {
		l.onReload = fn
	}
}
