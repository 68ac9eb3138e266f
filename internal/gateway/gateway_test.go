package gateway

import (
	"bufio"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"roomchat/internal/server"
)

// startGateway serves a fresh chat server over an httptest listener and
// returns the ws:// URL of the upgrade endpoint.
func startGateway(t *testing.T) (*server.Server, string) {
	t.Helper()
	srv := server.New(server.Config{})
	t.Cleanup(srv.Shutdown)

	g := New(srv, 4096)
	ts := httptest.NewServer(g.Handler())
	t.Cleanup(ts.Close)

	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// wsClient drives one WebSocket connection; each text message is one
// protocol line.
type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dialWS(t *testing.T, url string) *wsClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Close() })
	return &wsClient{t: t, ws: ws}
}

func (c *wsClient) send(line string) {
	c.t.Helper()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *wsClient) read() string {
	c.t.Helper()
	c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(string(data), "\n")
}

func (c *wsClient) expect(want string) {
	c.t.Helper()
	if got := c.read(); got != want {
		c.t.Fatalf("got %q, want %q", got, want)
	}
}

// Over WebSocket the prompt arrives as its own message, since messages are
// framed rather than newline-delimited.
func TestWSPromptAndWelcome(t *testing.T) {
	_, url := startGateway(t)

	c := dialWS(t, url)
	c.expect("Enter your username: ")
	c.send("alice")
	c.expect("Welcome, alice!")
}

func TestWSRoomChat(t *testing.T) {
	_, url := startGateway(t)

	alice := dialWS(t, url)
	alice.expect("Enter your username: ")
	alice.send("alice")
	alice.expect("Welcome, alice!")
	alice.send("/join lobby")
	alice.expect("Joined room: lobby")

	bob := dialWS(t, url)
	bob.expect("Enter your username: ")
	bob.send("bob")
	bob.expect("Welcome, bob!")
	bob.send("/join lobby")
	bob.expect("Joined room: lobby")

	bob.send("hi")
	alice.expect("bob: hi")
}

// TCP and WebSocket clients share the same rooms: both front-ends feed the
// same dispatcher.
func TestMixedTransportsShareRooms(t *testing.T) {
	srv, url := startGateway(t)
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	go srv.Serve()

	ws := dialWS(t, url)
	ws.expect("Enter your username: ")
	ws.send("webby")
	ws.expect("Welcome, webby!")
	ws.send("/join lobby")
	ws.expect("Joined room: lobby")

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte("tcpal\n/join lobby\nhello from tcp\n"))

	ws.expect("tcpal: hello from tcp")

	// And back the other way: read the TCP side until the broadcast shows.
	ws.send("hello from ws")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("tcp read: %v", err)
		}
		if strings.Contains(line, "webby: hello from ws") {
			return
		}
	}
}

// An unregistered path must not upgrade.
func TestHandlerRejectsUnknownPath(t *testing.T) {
	_, url := startGateway(t)
	badURL := strings.TrimSuffix(url, "/ws") + "/nope"
	if _, _, err := websocket.DefaultDialer.Dial(badURL, nil); err == nil {
		t.Fatal("dial to unknown path succeeded")
	}
}
