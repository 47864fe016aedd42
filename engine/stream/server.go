package stream

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-instances/common"
	"github.com/gorilla/websocket"
)

const (
	defaultSendBuffer = 1024
	writeTimeout      = 5 * time.Second
	inboundReadLimit  = 4096
)

// Server broadcasts stream messages to every connected websocket viewer.
// Viewers that fall a full send buffer behind are disconnected.
type Server struct {
	upgrader   websocket.Upgrader
	sendBuffer int
	snapshot   func() []Message

	mu      sync.Mutex
	peers   map[*peer]struct{}
	closed  bool
	writers sync.WaitGroup

	seq atomic.Uint64
	log *slog.Logger
}

type peer struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

var _ http.Handler = &Server{}

// NewServer creates a Server. Mount it on any path of an http.ServeMux.
//
// Parameters:
//   - options: functional options for the send buffer and join snapshot
//
// Returns:
//   - *Server: the server
func NewServer(options ...ServerBuilderOption) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sendBuffer: defaultSendBuffer,
		peers:      make(map[*peer]struct{}),
		log:        common.ComponentLogger("stream").With("role", "server"),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, "stream closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	p, ok := s.register(conn)
	if !ok {
		conn.Close()
		return
	}
	s.log.Info("viewer connected", "remote", conn.RemoteAddr().String())

	// Inbound traffic is only read to observe close frames.
	conn.SetReadLimit(inboundReadLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.unregister(p)
	s.log.Info("viewer disconnected", "remote", conn.RemoteAddr().String())
}

// register queues the join snapshot and adds the peer under one lock so no
// broadcast can land between them.
func (s *Server) register(conn *websocket.Conn) (*peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}

	var snapshot []Message
	if s.snapshot != nil {
		snapshot = s.snapshot()
	}
	p := &peer{
		conn: conn,
		send: make(chan []byte, s.sendBuffer+len(snapshot)),
		done: make(chan struct{}),
	}
	for _, m := range snapshot {
		p.send <- Encode(s.seq.Add(1), m)
	}
	s.peers[p] = struct{}{}

	s.writers.Add(1)
	go s.write(p)
	return p, true
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
	p.close()
}

func (s *Server) write(p *peer) {
	defer s.writers.Done()
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.log.Debug("write failed", "remote", p.conn.RemoteAddr().String(), "error", err)
				p.close()
				return
			}
		}
	}
}

// Broadcast sends m to every connected viewer.
//
// Parameters:
//   - m: the message
//
// Returns:
//   - int: the number of viewers the message was queued for
func (s *Server) Broadcast(m Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.peers) == 0 {
		s.seq.Add(1)
		return 0
	}

	data := Encode(s.seq.Add(1), m)
	sent := 0
	for p := range s.peers {
		select {
		case p.send <- data:
			sent++
		default:
			s.log.Warn("viewer too slow, disconnecting", "remote", p.conn.RemoteAddr().String())
			delete(s.peers, p)
			p.close()
		}
	}
	return sent
}

// Clients returns the number of connected viewers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Close disconnects every viewer and rejects new ones.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for p := range s.peers {
		p.close()
	}
	clear(s.peers)
	s.mu.Unlock()

	s.writers.Wait()
}
