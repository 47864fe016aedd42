package stream

import "errors"

var (
	// ErrMalformed is returned when a frame is not a valid envelope or payload.
	ErrMalformed = errors.New("stream: malformed message")

	// ErrUnknownKind is returned for envelopes carrying an unsupported message kind.
	ErrUnknownKind = errors.New("stream: unknown message kind")

	// ErrClosed is returned by operations on a closed client.
	ErrClosed = errors.New("stream: connection closed")
)
