// Package store provides concurrent-safe, in-memory storage of recent room
// messages.  Rooms are ephemeral, so history is too: nothing is written to
// disk, each room keeps at most a fixed number of messages, and a room's
// history is discarded when the room itself is deleted.
package store

import (
	"sync"
	"time"
)

// Message is one recorded chat message.
type Message struct {
	Username  string
	Content   string
	Timestamp time.Time
}

// Store holds per-room message history.  A sync.RWMutex protects the map so
// recorder goroutines can append while sessions read concurrently.
type Store struct {
	mu      sync.RWMutex
	perRoom int
	rooms   map[string][]Message
}

// New creates a Store keeping at most perRoom messages per room.
func New(perRoom int) *Store {
	if perRoom <= 0 {
		perRoom = 100
	}
	return &Store{
		perRoom: perRoom,
		rooms:   make(map[string][]Message),
	}
}

// Append records msg for room, evicting the oldest entry once the per-room
// cap is reached.
func (s *Store) Append(room string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.rooms[room]
	if len(msgs) >= s.perRoom {
		copy(msgs, msgs[1:])
		msgs = msgs[:len(msgs)-1]
	}
	s.rooms[room] = append(msgs, msg)
}

// Recent returns the last n messages of room, oldest first.  When n <= 0 or
// n exceeds the stored count, all stored messages are returned.
func (s *Store) Recent(room string, n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.rooms[room]
	total := len(msgs)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]Message, n)
	copy(out, msgs[total-n:])
	return out
}

// DropRoom discards room's history.  Called when the last member leaves and
// the room is deleted.
func (s *Store) DropRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, room)
}
