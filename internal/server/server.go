// Package server implements the room-based TCP chat server.
//
// Concurrency overview
// --------------------
//
//	┌──────────────────────────────────────────────────────────┐
//	│  Listener goroutine                                       │
//	│  Accepts TCP connections; runs one dispatcher goroutine   │
//	│  per connection, which spawns the session's write loop.   │
//	└───────────────────┬──────────────────────────────────────┘
//	                    │  join / leave / broadcast / register
//	                    ▼
//	┌──────────────────────────────────────────────────────────┐
//	│  Shared state  (one mutex)                                │
//	│  sessionRegistry: conn id → session                       │
//	│  roomDirectory:   room → member id set                    │
//	└──────────────────────────────────────────────────────────┘
//
//	┌──────────────────────────────────────────────────────────┐
//	│  Recorder pool  (N goroutines)                            │
//	│  Appends broadcast messages to the in-memory history      │
//	│  store so the broadcast path never waits on it.           │
//	└──────────────────────────────────────────────────────────┘
//
// Each session additionally owns an outbound queue (its own lock) drained
// by a dedicated write-loop goroutine, so a slow reader never stalls the
// dispatcher that produced a message for it.
package server

import (
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"roomchat/internal/store"
)

const (
	// defaultMaxLine bounds one input line; longer lines drop the peer.
	defaultMaxLine = 4096
	// defaultHistoryReplay is the /history count when none is given.
	defaultHistoryReplay = 20
)

// Config carries the server's tunables.  The zero value gets sane defaults.
type Config struct {
	MaxLineBytes   int // longest accepted input line, default 4096
	HistoryPerRoom int // messages retained per room, default 100
	Recorders      int // history recorder goroutines, default 2
}

func (c *Config) applyDefaults() {
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = defaultMaxLine
	}
	if c.HistoryPerRoom <= 0 {
		c.HistoryPerRoom = 100
	}
	if c.Recorders <= 0 {
		c.Recorders = 2
	}
}

// ---------------------------------------------------------------------------
// Recorder pool – async history recording
// ---------------------------------------------------------------------------

type record struct {
	room string
	msg  store.Message
}

// recorderPool appends broadcast messages to the history store in the
// background so the command loop never waits on the store.
type recorderPool struct {
	jobs chan record
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newRecorderPool(n int, s *store.Store) *recorderPool {
	p := &recorderPool{
		jobs: make(chan record, 1024),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for r := range p.jobs {
				s.Append(r.room, r.msg)
			}
		}()
	}
	return p
}

func (p *recorderPool) submit(r record) {
	// Non-blocking; history is best-effort, delivery is not.  Sessions may
	// still be tearing down while the server shuts down, so a submit after
	// stop is possible and must be a no-op.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.jobs <- r:
	default:
		log.Printf("[recorder] job queue full – message not recorded")
	}
}

func (p *recorderPool) stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server ties together the session registry, room directory, history store,
// and recorder pool.
type Server struct {
	cfg      Config
	registry *sessionRegistry
	rooms    *roomDirectory
	history  *store.Store
	recorder *recorderPool
	listener net.Listener

	connID atomic.Uint64 // monotonically increasing connection counter
}

// New creates a Server.
func New(cfg Config) *Server {
	cfg.applyDefaults()
	history := store.New(cfg.HistoryPerRoom)
	registry, rooms := newSharedState(history.DropRoom)
	return &Server{
		cfg:      cfg,
		registry: registry,
		rooms:    rooms,
		history:  history,
		recorder: newRecorderPool(cfg.Recorders, history),
	}
}

// Listen binds the TCP listener.  A bind failure is fatal to the caller;
// per-connection failures never are.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	log.Printf("[server] listening on %s", ln.Addr())
	return nil
}

// Serve accepts connections until Shutdown closes the listener.  Any other
// accept failure is returned: an accept loop that cannot accept is fatal,
// and the caller owes the operator a diagnostic.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// Closed by Shutdown.
				return nil
			}
			return err
		}
		go s.ServeConn(newNetConn(conn, s.cfg.MaxLineBytes))
	}
}

// ListenAndServe combines Listen and Serve.
func (s *Server) ListenAndServe(addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Addr reports the listener's address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ServeConn runs the full session lifecycle for one line transport and
// blocks until the session ends.  The TCP accept loop calls it with a
// wrapped net.Conn; alternative front-ends (the WebSocket gateway) call it
// with their own Conn implementations.
func (s *Server) ServeConn(conn Conn) {
	d := &dispatcher{
		srv:  s,
		conn: conn,
		id:   s.connID.Add(1),
	}
	d.run()
}

// Shutdown stops accepting, disconnects every live session, and drains the
// recorder pool.
func (s *Server) Shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.registry.closeAll()
	s.recorder.stop()
}
