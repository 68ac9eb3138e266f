package server

import (
	"errors"
	"log"
	"strings"
	"time"

	"roomchat/internal/protocol"
	"roomchat/internal/store"
)

// dispatcher runs one connection through its three states:
//
//	authenticating → active → closed
//
// Authenticating sends the username prompt and reads exactly one line; an
// empty or unreadable reply drops the connection without ever registering a
// session.  Active registers the session, starts its write loop, and runs
// the command loop until /quit or end of stream.  Closed leaves the current
// room, unregisters the session, closes the outbound queue (terminating the
// write loop), and releases the connection.
type dispatcher struct {
	srv  *Server
	conn Conn
	id   uint64
}

func (d *dispatcher) run() {
	username, err := d.authenticate()
	if err != nil {
		log.Printf("[server] conn-%d auth failed: %v", d.id, err)
		d.conn.Close()
		return
	}

	sess := newSession(d.id, username, d.conn)
	d.srv.registry.register(sess)
	go sess.writeLoop()

	sess.enqueue(protocol.Welcome(username))
	log.Printf("[server] conn-%d authenticated as %q", d.id, username)

	d.commandLoop(sess)
	d.teardown(sess)
}

var errEmptyUsername = errors.New("empty username")

// authenticate prompts for and reads the username.  The prompt carries no
// trailing newline so the client's echo lands on the same line.
func (d *dispatcher) authenticate() (string, error) {
	if err := d.conn.WriteRaw(protocol.UsernamePrompt); err != nil {
		return "", err
	}
	line, err := d.conn.ReadLine()
	if err != nil {
		return "", err
	}
	username := strings.TrimSpace(line)
	if username == "" {
		return "", errEmptyUsername
	}
	return username, nil
}

// commandLoop reads and routes lines until /quit, end of stream, or a read
// error.  Every user-visible failure is answered with a queued text line;
// the connection is never closed on the user except at end of stream.
func (d *dispatcher) commandLoop(sess *session) {
	for {
		line, err := d.conn.ReadLine()
		if err != nil {
			return
		}

		cmd := protocol.Parse(line)
		switch cmd.Kind {

		case protocol.KindQuit:
			return

		case protocol.KindJoin:
			if err := d.srv.rooms.join(sess, cmd.Arg); err != nil {
				sess.enqueue(protocol.JoinUsage)
				continue
			}
			sess.enqueue(protocol.Joined(cmd.Arg))

		case protocol.KindLeave:
			if room, ok := d.srv.rooms.leave(sess); ok {
				sess.enqueue(protocol.Left(room))
			} else {
				sess.enqueue(protocol.NoCurrent)
			}

		case protocol.KindRooms:
			sess.enqueue(protocol.RoomList(d.srv.rooms.list()))

		case protocol.KindWho:
			room, names, err := d.srv.rooms.members(sess)
			if err != nil {
				sess.enqueue(protocol.NotInRoom)
				continue
			}
			sess.enqueue(protocol.MemberList(room, names))

		case protocol.KindHistory:
			d.handleHistory(sess, cmd.N)

		case protocol.KindChat:
			// A blank line is still chat: members see "<username>: ".
			room, err := d.srv.rooms.broadcast(sess, cmd.Arg)
			if err != nil {
				sess.enqueue(protocol.NotInRoom)
				continue
			}
			// Record off the broadcast path; the recorder pool owns the
			// store write.
			d.srv.recorder.submit(record{
				room: room,
				msg: store.Message{
					Username:  sess.username,
					Content:   cmd.Arg,
					Timestamp: time.Now(),
				},
			})
		}
	}
}

// handleHistory replays the last n messages of the session's current room.
func (d *dispatcher) handleHistory(sess *session, n int) {
	room, _, err := d.srv.rooms.members(sess)
	if err != nil {
		sess.enqueue(protocol.NotInRoom)
		return
	}
	if n <= 0 {
		n = defaultHistoryReplay
	}
	msgs := d.srv.history.Recent(room, n)
	entries := make([]protocol.HistoryEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = protocol.HistoryEntry{
			Username:  m.Username,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	sess.enqueue(protocol.History(room, entries))
}

// teardown is the closed state: idempotent room leave, registry removal,
// queue close (the write loop drains what is left, then exits), connection
// release.
func (d *dispatcher) teardown(sess *session) {
	d.srv.rooms.leave(sess)
	d.srv.registry.unregister(sess.id)
	sess.queue.Close()
	// Wait for the write loop to flush everything enqueued before Close —
	// a reply pipelined ahead of /quit must still reach the peer.  The
	// write loop self-terminates on write failure, so a dead peer cannot
	// stall this.
	<-sess.done
	d.conn.Close()
	log.Printf("[server] conn-%d (%s) disconnected", sess.id, sess.username)
}
