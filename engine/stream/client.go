package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/gorilla/websocket"
)

// Client receives a world stream and applies every message to an Applier.
type Client struct {
	url     string
	applier Applier
	dialer  websocket.Dialer
	retries int
	backoff time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	closing atomic.Bool

	applied atomic.Uint64
	failed  atomic.Uint64
	lastSeq atomic.Uint64
	log     *slog.Logger
}

// NewClient creates a Client for a ws:// or wss:// URL. Nothing is dialed until Connect.
//
// Parameters:
//   - url: the stream endpoint
//   - applier: receives every decoded message on the read goroutine
//   - options: functional options for retries and timeouts
//
// Returns:
//   - *Client: the client
func NewClient(url string, applier Applier, options ...ClientBuilderOption) *Client {
	c := &Client{
		url:     url,
		applier: applier,
		dialer:  websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		retries: 10,
		backoff: 2 * time.Second,
		log:     common.ComponentLogger("stream").With("role", "client", "url", url),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Connect dials the server, retrying until it answers, the retry budget is
// spent or ctx is done, then starts the read loop.
//
// Parameters:
//   - ctx: bounds the whole dial sequence
//
// Returns:
//   - error: the last dial error, ctx.Err(), or an error if already connected
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return errors.New("stream: already connected")
	}

	for attempt := 1; ; attempt++ {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.conn = conn
			c.done = make(chan struct{})
			c.closing.Store(false)
			go c.readLoop(conn, c.done)
			c.log.Info("connected", "attempt", attempt)
			return nil
		}
		if attempt >= c.retries {
			return fmt.Errorf("stream: dial %s after %d attempts: %w", c.url, attempt, err)
		}
		c.log.Warn("server not ready, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("read loop recovered from panic", "panic", r)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closing.Load() {
				c.log.Debug("read loop stopped")
			} else {
				c.log.Warn("connection lost", "error", err)
			}
			return
		}

		env, m, err := Decode(data)
		if err != nil {
			c.failed.Add(1)
			c.log.Warn("dropping undecodable message", "error", err)
			continue
		}
		c.lastSeq.Store(env.Seq)

		if err := c.apply(m); err != nil {
			c.failed.Add(1)
			c.log.Debug("message not applied", "kind", env.Kind.String(), "seq", env.Seq, "error", err)
			continue
		}
		c.applied.Add(1)
	}
}

func (c *Client) apply(m Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream: applier panicked: %v", r)
		}
	}()
	return dispatch(c.applier, m)
}

// Done is closed when the read loop exits. It is nil before Connect.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Applied returns the number of messages applied without error.
func (c *Client) Applied() uint64 { return c.applied.Load() }

// Failed returns the number of messages that could not be decoded or applied.
func (c *Client) Failed() uint64 { return c.failed.Load() }

// LastSeq returns the sequence number of the last decoded message.
func (c *Client) LastSeq() uint64 { return c.lastSeq.Load() }

// Close sends a close frame, closes the connection and waits for the read
// loop to exit.
//
// Returns:
//   - error: ErrClosed if the client is not connected
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return ErrClosed
	}

	c.closing.Store(true)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := conn.Close()
	<-done
	return err
}
