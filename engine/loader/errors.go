package loader

import "errors"

// ErrModelUnavailable reports that a model could not be produced, because it is
// missing from the source, its definition is invalid, or loading faulted.
var ErrModelUnavailable = errors.New("loader: model unavailable")

// ErrNoSource is returned by Reload and Watch when the backend has no file to read.
var ErrNoSource = errors.New("loader: backend has no source file")
