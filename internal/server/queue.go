package server

import "sync"

// outboundQueue is a session's mailbox: an unbounded FIFO of pending text
// lines with exactly one consumer, the session's write loop.  Producers are
// any goroutine holding the session (its own dispatcher, or another
// dispatcher broadcasting into its room).
//
// Unlike a bounded channel, the queue never drops a message; the only way a
// queued message dies is process exit.  A mutex plus condition variable
// keeps Enqueue non-blocking and lets DrainBlocking take the whole backlog
// in one critical section instead of re-locking per message.
type outboundQueue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	pending  []string
	closed   bool
}

func newOutboundQueue() *outboundQueue {
	q := &outboundQueue{}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends msg and wakes one waiting consumer.  Always succeeds;
// after Close the message is discarded since no consumer remains.
func (q *outboundQueue) Enqueue(msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, msg)
	q.nonEmpty.Signal()
}

// DrainBlocking suspends until the queue is non-empty or closed, then
// removes and returns everything queued, in order.  ok is false once the
// queue is closed and empty: messages enqueued before Close are still
// delivered, then the consumer is told to stop.
func (q *outboundQueue) DrainBlocking() (batch []string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.closed {
		q.nonEmpty.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	batch = q.pending
	q.pending = nil
	return batch, true
}

// Close wakes every waiter and makes all future DrainBlocking calls return
// ok=false once the backlog is drained.  Session teardown relies on this to
// guarantee the write loop terminates rather than blocking forever.
func (q *outboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.nonEmpty.Broadcast()
}
