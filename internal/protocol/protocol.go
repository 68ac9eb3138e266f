// Package protocol defines the line-oriented text protocol spoken between
// client and server.  Every message is a UTF-8 line terminated by '\n'
// (an optional preceding '\r' is stripped by the receiver).
//
// Client → server, each a single line:
//
//	/join <room>   join a room, leaving the current one
//	/leave         leave the current room
//	/rooms         list active rooms
//	/who           list members of the current room
//	/history [n]   replay the last n messages of the current room
//	/quit          end the session
//	anything else  chat text, broadcast to the current room
//
// Server → client messages are free-form text lines; the formatting helpers
// below produce every string the server ever sends.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies what a parsed input line asks the server to do.
type Kind int

const (
	KindChat Kind = iota
	KindJoin
	KindLeave
	KindRooms
	KindWho
	KindHistory
	KindQuit
)

// Command is one parsed input line.
type Command struct {
	Kind Kind
	Arg  string // room name for KindJoin, chat text for KindChat
	N    int    // message count for KindHistory (0 = default)
}

// Parse classifies a single input line.  The line must already have its
// trailing '\n' (and '\r') removed; trailing spaces are ignored, matching
// the behaviour of line-based clients like netcat.
func Parse(line string) Command {
	line = strings.TrimRight(line, " \r")

	switch line {
	case "/quit":
		return Command{Kind: KindQuit}
	case "/leave":
		return Command{Kind: KindLeave}
	case "/rooms":
		return Command{Kind: KindRooms}
	case "/who":
		return Command{Kind: KindWho}
	}

	fields := strings.Fields(line)
	if len(fields) > 0 {
		switch fields[0] {
		case "/join":
			cmd := Command{Kind: KindJoin}
			if len(fields) > 1 {
				cmd.Arg = fields[1]
			}
			return cmd
		case "/history":
			cmd := Command{Kind: KindHistory}
			if len(fields) > 1 {
				if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
					cmd.N = n
				}
			}
			return cmd
		}
	}

	return Command{Kind: KindChat, Arg: line}
}

// RoomInfo is one row of a room listing.
type RoomInfo struct {
	Name    string
	Members int
}

// HistoryEntry is one replayed message.
type HistoryEntry struct {
	Username  string
	Content   string
	Timestamp time.Time
}

// UsernamePrompt is sent once per connection, before authentication.
// It deliberately has no trailing newline: the client types on the same line.
const UsernamePrompt = "Enter your username: "

func Welcome(username string) string {
	return "Welcome, " + username + "!\n"
}

func Chat(username, text string) string {
	return username + ": " + text + "\n"
}

func Joined(room string) string { return "Joined room: " + room + "\n" }

func Left(room string) string { return "Left room: " + room + "\n" }

const (
	JoinUsage = "Usage: /join <room>\n"
	NotInRoom = "Join a room with /join <room> first.\n"
	NoCurrent = "You are not in any room.\n"
	NoHistory = "No history yet.\n"
)

// RoomList renders the /rooms reply.  With no active rooms the reply is the
// header line alone.
func RoomList(rooms []RoomInfo) string {
	var b strings.Builder
	b.WriteString("Active rooms:\n")
	for _, r := range rooms {
		fmt.Fprintf(&b, "- %s (%d users)\n", r.Name, r.Members)
	}
	return b.String()
}

// MemberList renders the /who reply.
func MemberList(room string, usernames []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Members of %s:\n", room)
	for _, u := range usernames {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	return b.String()
}

// History renders the /history reply.
func History(room string, entries []HistoryEntry) string {
	if len(entries) == 0 {
		return NoHistory
	}
	var b strings.Builder
	fmt.Fprintf(&b, "History for %s:\n", room)
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Timestamp.Local().Format("15:04:05"), e.Username, e.Content)
	}
	return b.String()
}
