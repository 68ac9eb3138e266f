package server

import (
	"errors"
	"sort"
	"sync"

	"roomchat/internal/protocol"
)

var (
	// ErrEmptyRoomName rejects /join with no room token.
	ErrEmptyRoomName = errors.New("room name is empty")
	// ErrNotInRoom signals a chat or history request from a session that
	// has not joined a room.  Reported to the user, never fatal.
	ErrNotInRoom = errors.New("not in a room")
)

// sessionRegistry maps connection id → live session.  roomDirectory maps
// room name → member id set.  The two share a single mutex: join, leave,
// list, broadcast, register, and unregister all read one structure while
// mutating the other, so they form one critical section.  A broadcast can
// therefore never observe a room mid-update from a concurrent join or leave.
//
// Per-session outbound queues have their own locks; enqueueing under the
// shared mutex is fine because Enqueue never blocks.
type sessionRegistry struct {
	mu       *sync.Mutex
	sessions map[uint64]*session
}

type roomDirectory struct {
	mu       *sync.Mutex
	registry *sessionRegistry
	rooms    map[string]map[uint64]struct{}

	// onRoomDeleted fires (under the shared mutex) when a room's last
	// member leaves, letting the server discard that room's history.
	onRoomDeleted func(room string)
}

// newSharedState builds the registry and directory around one mutex.
func newSharedState(onRoomDeleted func(room string)) (*sessionRegistry, *roomDirectory) {
	mu := new(sync.Mutex)
	reg := &sessionRegistry{
		mu:       mu,
		sessions: make(map[uint64]*session),
	}
	dir := &roomDirectory{
		mu:            mu,
		registry:      reg,
		rooms:         make(map[string]map[uint64]struct{}),
		onRoomDeleted: onRoomDeleted,
	}
	return reg, dir
}

// ---------------------------------------------------------------------------
// sessionRegistry
// ---------------------------------------------------------------------------

func (r *sessionRegistry) register(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *sessionRegistry) unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// closeAll closes every live connection so their read loops unblock and the
// normal per-session teardown runs.  Used by Server.Shutdown.
func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.conn.Close()
	}
}

// ---------------------------------------------------------------------------
// roomDirectory
// ---------------------------------------------------------------------------

// join moves s into room, leaving its current room first.  A session is a
// member of at most one room at any instant; the old room is deleted if s
// was its last member.  The room is created on first join.
func (d *roomDirectory) join(s *session, room string) error {
	if room == "" {
		return ErrEmptyRoomName
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if s.room == room {
		// Re-joining the current room must not churn room state: for a
		// sole member, remove-then-add would delete the room and wipe
		// its history.
		return nil
	}
	if s.room != "" {
		d.removeLocked(s)
	}
	members, ok := d.rooms[room]
	if !ok {
		members = make(map[uint64]struct{})
		d.rooms[room] = members
	}
	members[s.id] = struct{}{}
	s.room = room
	return nil
}

// leave removes s from its current room, deleting the room if it becomes
// empty.  Returns the room left and true, or "" and false if s was not in
// any room (a no-op, not an error).
func (d *roomDirectory) leave(s *session) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.room == "" {
		return "", false
	}
	room := s.room
	d.removeLocked(s)
	return room, true
}

// removeLocked drops s from its current room's member set and deletes the
// room entry if now empty.  Caller holds the shared mutex.
func (d *roomDirectory) removeLocked(s *session) {
	members := d.rooms[s.room]
	delete(members, s.id)
	if len(members) == 0 {
		delete(d.rooms, s.room)
		if d.onRoomDeleted != nil {
			d.onRoomDeleted(s.room)
		}
	}
	s.room = ""
}

// list snapshots all non-empty rooms, sorted by name.  A room appears here
// if and only if it has at least one member.
func (d *roomDirectory) list() []protocol.RoomInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]protocol.RoomInfo, 0, len(d.rooms))
	for name, members := range d.rooms {
		out = append(out, protocol.RoomInfo{Name: name, Members: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// members returns the usernames in s's current room, sorted, the sender
// included.  ErrNotInRoom if s has no room.
func (d *roomDirectory) members(s *session) (string, []string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.room == "" {
		return "", nil, ErrNotInRoom
	}
	names := make([]string, 0, len(d.rooms[s.room]))
	for id := range d.rooms[s.room] {
		if member, ok := d.registry.sessions[id]; ok {
			names = append(names, member.username)
		}
	}
	sort.Strings(names)
	return s.room, names, nil
}

// broadcast formats text as "<username>: <text>\n" and enqueues it to every
// member of the sender's room except the sender.  A member id with no live
// registry entry (disconnect racing the broadcast) is skipped; one stale
// member never aborts delivery to the rest.  Returns the room broadcast to,
// or ErrNotInRoom when the sender has no room.
func (d *roomDirectory) broadcast(from *session, text string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if from.room == "" {
		return "", ErrNotInRoom
	}
	line := protocol.Chat(from.username, text)
	for id := range d.rooms[from.room] {
		if id == from.id {
			continue
		}
		target, ok := d.registry.sessions[id]
		if !ok {
			continue
		}
		target.enqueue(line)
	}
	return from.room, nil
}
