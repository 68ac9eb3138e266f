package server

import "log"

// session binds one authenticated connection: a stable connection id, the
// username given at the prompt, the current room (empty when not in one),
// and the outbound queue feeding its write loop.
//
// Two goroutines serve each session:
//
//	dispatcher.run – reads lines and routes commands / chat
//	writeLoop      – drains the outbound queue onto the wire
//
// The username is immutable after authentication.  room is guarded by the
// shared registry/directory mutex, never touched directly by the session's
// own goroutines.
type session struct {
	id       uint64
	username string
	conn     Conn
	queue    *outboundQueue
	room     string
	done     chan struct{} // closed when writeLoop returns
}

func newSession(id uint64, username string, conn Conn) *session {
	return &session{
		id:       id,
		username: username,
		conn:     conn,
		queue:    newOutboundQueue(),
		done:     make(chan struct{}),
	}
}

// enqueue queues msg for delivery by the write loop.
func (s *session) enqueue(msg string) { s.queue.Enqueue(msg) }

// writeLoop drains the outbound queue onto the connection until the queue
// is closed (session teardown) or a write fails (peer gone).  On write
// failure it closes the queue itself so producers stop accumulating backlog
// for a dead connection.  done is closed on return so teardown can wait for
// the backlog to be flushed before releasing the connection.
func (s *session) writeLoop() {
	defer close(s.done)
	for {
		batch, ok := s.queue.DrainBlocking()
		for _, msg := range batch {
			if err := s.conn.WriteRaw(msg); err != nil {
				log.Printf("[session] conn-%d write: %v", s.id, err)
				s.queue.Close()
				return
			}
		}
		if !ok {
			return
		}
	}
}
