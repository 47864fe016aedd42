package stream

import "time"

// ServerBuilderOption configures a Server.
type ServerBuilderOption func(*Server)

// WithSendBuffer sets how many messages may queue per viewer before it is
// considered too slow and disconnected.
//
// Parameters:
//   - n: the per-viewer queue length, ignored if not positive
//
// Returns:
//   - ServerBuilderOption: a function that applies the buffer size
func WithSendBuffer(n int) ServerBuilderOption {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithSnapshot sets the messages a viewer receives on join, ahead of any
// broadcast. fn runs under the server lock and must not call Broadcast.
//
// Parameters:
//   - fn: returns the current world state as messages
//
// Returns:
//   - ServerBuilderOption: a function that applies the snapshot source
func WithSnapshot(fn func() []Message) ServerBuilderOption {
	return func(s *Server) {
		s.snapshot = fn
	}
}

// ClientBuilderOption configures a Client.
type ClientBuilderOption func(*Client)

// WithDialRetries sets the number of dial attempts and the pause between them.
//
// Parameters:
//   - attempts: total attempts, at least 1
//   - backoff: pause between attempts
//
// Returns:
//   - ClientBuilderOption: a function that applies the retry policy
func WithDialRetries(attempts int, backoff time.Duration) ClientBuilderOption {
	return func(c *Client) {
		c.retries = max(attempts, 1)
		c.backoff = backoff
	}
}

// WithHandshakeTimeout bounds each websocket handshake.
func WithHandshakeTimeout(d time.Duration) ClientBuilderOption {
	return func(c *Client) {
		c.dialer.HandshakeTimeout = d
	}
}
