package server

import (
	"errors"
	"io"
	"net"
	"strings"
	"testing"
)

// pipeConn returns a netConn over one end of an in-memory pipe plus the raw
// peer end for the test to drive.
func pipeConn(maxLine int) (*netConn, net.Conn) {
	peer, local := net.Pipe()
	return newNetConn(local, maxLine), peer
}

func TestReadLineSplitsArrivalIntoLines(t *testing.T) {
	c, peer := pipeConn(4096)
	defer c.Close()

	go func() {
		peer.Write([]byte("first\nsecond\r\nthird\n"))
		peer.Close()
	}()

	for i, want := range []string{"first", "second", "third"} {
		got, err := c.ReadLine()
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if got != want {
			t.Errorf("line %d = %q, want %q", i, got, want)
		}
	}
	if _, err := c.ReadLine(); err != io.EOF {
		t.Fatalf("after close: err = %v, want io.EOF", err)
	}
}

// A line split across several writes must be buffered until its terminator
// arrives.
func TestReadLineBuffersPartialReads(t *testing.T) {
	c, peer := pipeConn(4096)
	defer c.Close()

	go func() {
		peer.Write([]byte("hel"))
		peer.Write([]byte("lo wor"))
		peer.Write([]byte("ld\n"))
	}()

	got, err := c.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

// Data left unterminated when the peer closes is delivered as one final
// line, then EOF.
func TestReadLineDeliversTrailingFragment(t *testing.T) {
	c, peer := pipeConn(4096)
	defer c.Close()

	go func() {
		peer.Write([]byte("dangling"))
		peer.Close()
	}()

	got, err := c.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if got != "dangling" {
		t.Errorf("got %q, want %q", got, "dangling")
	}
	if _, err := c.ReadLine(); err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestReadLineEnforcesMaxLength(t *testing.T) {
	c, peer := pipeConn(16)
	defer peer.Close()
	defer c.Close()

	go func() {
		// More than the 16-byte buffer without a newline.
		io.WriteString(peer, strings.Repeat("x", 64))
	}()

	_, err := c.ReadLine()
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("err = %v, want ErrLineTooLong", err)
	}
}
