package loader

import (
	"github.com/Carmen-Shannon/oxy-instances/engine/model"
)

// loaderBackend produces models from a concrete source.
// Concrete implementations (e.g., manifestLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load builds the model registered under name. Lookup is case-insensitive.
	//
	// Parameters:
	//   - name: the model name
	//
	// Returns:
	//   - model.Model: the model
	//   - error: wraps ErrModelUnavailable if the name is unknown or invalid
	Load(name string) (model.Model, error)

	// Reload re-reads the backend's source.
	//
	// Returns:
	//   - error: error if the source cannot be read; the previous definitions stay active
	Reload() error

	// Source returns the file the backend reads, or "" if it has none.
	//
	// Returns:
	//   - string: the source path
	Source() string
}

// funcLoaderBackend adapts a plain function to loaderBackend.
type funcLoaderBackend func(name string) (model.Model, error)

func (f funcLoaderBackend) Load(name string) (model.Model, error) { return f(name) }
func (f funcLoaderBackend) Reload() error                         { return ErrNoSource }
func (f funcLoaderBackend) Source() string                        { return "" }
