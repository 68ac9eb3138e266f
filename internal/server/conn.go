package server

import (
	"bufio"
	"errors"
	"io"
	"net"
)

// ErrLineTooLong is returned by ReadLine when the peer sends more than the
// configured maximum of bytes without a line feed.  The dispatcher treats it
// like a disconnect: buffering an unbounded line from a hostile peer is the
// one thing the otherwise unbounded design refuses to do.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Conn is the line transport a dispatcher speaks over.  The TCP listener
// wraps each net.Conn in a netConn; the WebSocket gateway provides its own
// implementation, so both front-ends share the dispatcher unchanged.
type Conn interface {
	// ReadLine blocks until a full '\n'-terminated line arrives and returns
	// it without the terminator (a trailing '\r' is stripped too).  It
	// returns io.EOF when the peer closes; a final unterminated fragment is
	// delivered as one last line before the EOF.
	ReadLine() (string, error)
	// WriteRaw writes s verbatim to the peer.
	WriteRaw(s string) error
	Close() error
}

// netConn adapts a stream net.Conn to the Conn interface with an internal
// read buffer.  Partial reads accumulate until a line boundary; several
// lines arriving in one segment are delivered on successive calls.
type netConn struct {
	nc net.Conn
	r  *bufio.Reader
}

func newNetConn(nc net.Conn, maxLine int) *netConn {
	// The bufio.Reader doubles as the line-length bound: a line that
	// overfills the buffer surfaces as bufio.ErrBufferFull.
	return &netConn{nc: nc, r: bufio.NewReaderSize(nc, maxLine)}
}

func (c *netConn) ReadLine() (string, error) {
	// ReadSlice, unlike ReadString, fails with ErrBufferFull instead of
	// growing past the buffer, which is exactly the bound we want.
	data, err := c.r.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrLineTooLong
	case errors.Is(err, io.EOF) && len(data) > 0:
		// Unterminated trailing data; hand it over, EOF follows next call.
	default:
		return "", err
	}

	return trimEOL(string(data)), nil
}

func (c *netConn) WriteRaw(s string) error {
	_, err := io.WriteString(c.nc, s)
	return err
}

func (c *netConn) Close() error { return c.nc.Close() }

// trimEOL strips one trailing "\n" or "\r\n".
func trimEOL(line string) string {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
