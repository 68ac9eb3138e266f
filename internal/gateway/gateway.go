// Package gateway exposes the chat server over WebSocket.  Each upgraded
// connection is adapted to the server's line transport and handed to the
// same dispatcher the TCP listener uses, so browser clients and TCP clients
// share rooms.  One WebSocket text message carries one protocol line.
package gateway

import (
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"roomchat/internal/server"
)

// Gateway is the WebSocket front-end.
type Gateway struct {
	srv       *server.Server
	maxLine   int64
	upgrader  websocket.Upgrader
	httpServe *http.Server
}

// New creates a Gateway serving srv.  maxLine bounds one inbound message,
// mirroring the TCP listener's line-length policy.
func New(srv *server.Server, maxLine int64) *Gateway {
	return &Gateway{
		srv:     srv,
		maxLine: maxLine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler routes /ws to the upgrade handler.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.serveWS)
	return mux
}

// ListenAndServe serves the gateway on addr until Shutdown.
func (g *Gateway) ListenAndServe(addr string) error {
	g.httpServe = &http.Server{Addr: addr, Handler: g.Handler()}
	log.Printf("[gateway] listening on %s", addr)
	err := g.httpServe.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close stops the HTTP listener.  In-flight sessions are torn down by
// server.Shutdown closing their connections.
func (g *Gateway) Close() error {
	if g.httpServe == nil {
		return nil
	}
	return g.httpServe.Close()
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade: %v", err)
		return
	}
	ws.SetReadLimit(g.maxLine)

	// ServeConn blocks for the session's lifetime; the handler goroutine is
	// the session's read loop.
	g.srv.ServeConn(&wsConn{ws: ws})
}

// wsConn adapts a WebSocket connection to the server's line transport.
type wsConn struct {
	ws *websocket.Conn

	// gorilla permits one concurrent writer.  The session's write loop is
	// effectively the sole writer, but the dispatcher also writes the
	// username prompt directly, so serialize anyway.
	writeMu sync.Mutex
}

// ReadLine returns the next text message as one line, terminator stripped.
func (c *wsConn) ReadLine() (string, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind != websocket.TextMessage {
			continue
		}
		line := strings.TrimRight(string(data), "\n")
		return strings.TrimSuffix(line, "\r"), nil
	}
}

func (c *wsConn) WriteRaw(s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(s))
}

func (c *wsConn) Close() error { return c.ws.Close() }
