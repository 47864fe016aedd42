package scene

import "errors"

var (
	// ErrAlreadyInitialized is returned by Initialize on a running scene.
	ErrAlreadyInitialized = errors.New("scene: already initialized")

	// ErrNotInitialized is returned by Shutdown on a scene that is not running.
	ErrNotInitialized = errors.New("scene: not initialized")

	// ErrShutdownTimeout is returned by Shutdown when the context expires before
	// the reclamation worker exits.
	ErrShutdownTimeout = errors.New("scene: reclamation worker did not stop in time")
)
