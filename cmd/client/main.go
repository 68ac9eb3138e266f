// RoomChat TUI client.
//
// Screens
// -------
//
//	stateLogin – centered username form
//	stateChat  – full-screen chat with scrollable message viewport
//
// Concurrency
// -----------
//
//	A single goroutine reads newline-delimited text from the TCP connection
//	and forwards each line to the lines channel.  The Bubbletea event loop
//	consumes one line at a time via waitForLine (a tea.Cmd), immediately
//	queuing the next read after each line is processed.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// usernamePrompt is the only server output without a trailing newline; the
// line reader sees it glued to the front of the welcome line, so it is
// stripped before display.
const usernamePrompt = "Enter your username: "

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	purple = lipgloss.Color("99")
	cyan   = lipgloss.Color("86")
	green  = lipgloss.Color("82")
	yellow = lipgloss.Color("220")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")
	orange = lipgloss.Color("214")
	blue   = lipgloss.Color("75")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	footerBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(purple).
			Padding(0, 2)

	hintStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true)

	sysStyle    = lipgloss.NewStyle().Foreground(yellow).Italic(true)
	okStyle     = lipgloss.NewStyle().Foreground(green)
	myNameStyle = lipgloss.NewStyle().Bold(true).Foreground(orange)
	peerStyle   = lipgloss.NewStyle().Bold(true).Foreground(blue)
	labelStyle  = lipgloss.NewStyle().Foreground(cyan)
)

// ---------------------------------------------------------------------------
// Bubbletea message types
// ---------------------------------------------------------------------------

type serverLineMsg string     // one text line arrived from the server
type disconnectedMsg struct{} // server closed the connection

// ---------------------------------------------------------------------------
// Application state
// ---------------------------------------------------------------------------

type appState int

const (
	stateLogin appState = iota
	stateChat
)

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

type model struct {
	conn  net.Conn
	lines chan string // goroutine → bubbletea bridge

	state appState
	me    string // username, fixed after the welcome line
	room  string // current room, tracked from Joined/Left replies

	nameInput textinput.Model

	ready     bool
	viewport  viewport.Model
	chatInput textinput.Model
	chatLines []string // rendered lines shown in the viewport

	width, height int
}

func newModel(conn net.Conn, lines chan string) model {
	ni := textinput.New()
	ni.Placeholder = "username"
	ni.Focus()
	ni.CharLimit = 32
	ni.Width = 32

	ci := textinput.New()
	ci.Placeholder = "Message, or /join /leave /rooms /who /history /quit"
	ci.CharLimit = 500

	return model{
		conn:      conn,
		lines:     lines,
		state:     stateLogin,
		nameInput: ni,
		chatInput: ci,
	}
}

// ---------------------------------------------------------------------------
// Tea interface
// ---------------------------------------------------------------------------

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForLine(m.lines))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.vpHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.vpHeight()
		}
		m.chatInput.Width = msg.Width - 4
		return m, nil

	case serverLineMsg:
		m = m.handleServerLine(string(msg))
		return m, waitForLine(m.lines)

	case disconnectedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch m.state {
		case stateLogin:
			return m.handleLoginKey(msg)
		case stateChat:
			return m.handleChatKey(msg)
		}
	}
	return m, nil
}

// vpHeight returns the number of lines available for the chat viewport.
func (m model) vpHeight() int {
	// header (1) + footer border (1) + footer input (1) = 3 lines reserved
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

// ---------------------------------------------------------------------------
// Key handlers
// ---------------------------------------------------------------------------

func (m model) handleLoginKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEnter:
		name := strings.TrimSpace(m.nameInput.Value())
		if name == "" {
			return m, nil
		}
		fmt.Fprintf(m.conn, "%s\n", name)
		m.me = name
		return m, nil
	}

	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m model) handleChatKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlQ:
		fmt.Fprint(m.conn, "/quit\n")
		return m, tea.Quit

	case tea.KeyEnter:
		text := strings.TrimSpace(m.chatInput.Value())
		if text == "" {
			return m, nil
		}
		fmt.Fprintf(m.conn, "%s\n", text)
		m.chatInput.Reset()
		if text == "/quit" {
			return m, tea.Quit
		}
		// The server does not echo chat back to the sender; show it locally.
		if !strings.HasPrefix(text, "/") {
			m.appendChat(myNameStyle.Render(m.me) + ": " + text)
		}
		return m, nil

	case tea.KeyPgUp:
		m.viewport.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

// ---------------------------------------------------------------------------
// Server line handler
// ---------------------------------------------------------------------------

func (m model) handleServerLine(line string) model {
	line = strings.TrimPrefix(line, usernamePrompt)

	if m.state == stateLogin {
		if strings.HasPrefix(line, "Welcome, ") {
			m.state = stateChat
			m.chatInput.Focus()
			m.appendChat(okStyle.Render(line))
		}
		return m
	}

	switch {
	case strings.HasPrefix(line, "Joined room: "):
		m.room = strings.TrimPrefix(line, "Joined room: ")
		m.appendChat(sysStyle.Render("⚡ " + line))

	case strings.HasPrefix(line, "Left room: "):
		m.room = ""
		m.appendChat(sysStyle.Render("⚡ " + line))

	case strings.HasPrefix(line, "Active rooms:"),
		strings.HasPrefix(line, "Members of "),
		strings.HasPrefix(line, "History for "),
		strings.HasPrefix(line, "- "),
		strings.HasPrefix(line, "["):
		m.appendChat(labelStyle.Render(line))

	default:
		// "<username>: <text>" or a server guidance message.
		if name, text, ok := strings.Cut(line, ": "); ok {
			m.appendChat(peerStyle.Render(name) + ": " + text)
		} else {
			m.appendChat(sysStyle.Render(line))
		}
	}
	return m
}

// appendChat adds a rendered line and scrolls the viewport to the bottom.
func (m *model) appendChat(line string) {
	m.chatLines = append(m.chatLines, line)
	m.viewport.SetContent(strings.Join(m.chatLines, "\n"))
	m.viewport.GotoBottom()
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

func (m model) View() string {
	switch m.state {
	case stateLogin:
		return m.viewLogin()
	case stateChat:
		return m.viewChat()
	}
	return ""
}

func (m model) viewLogin() string {
	if m.width == 0 {
		return "\n  Connecting to server…"
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("  RoomChat  "),
		"",
		"Username  "+m.nameInput.View(),
		"",
		hintStyle.Render("Enter: connect   Ctrl+C: quit"),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}

func (m model) viewChat() string {
	if !m.ready {
		return "\n  Connecting…"
	}

	room := m.room
	if room == "" {
		room = "no room — /join <room>"
	}
	hdr := headerStyle.
		Width(m.width).
		Render(fmt.Sprintf(" RoomChat  ·  %s  ·  %s  ·  PgUp/Dn: Scroll  Ctrl+C: Quit", m.me, room))

	footer := footerBorderStyle.
		Width(m.width - 2).
		Render(m.chatInput.View())

	return lipgloss.JoinVertical(lipgloss.Left, hdr, m.viewport.View(), footer)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// waitForLine returns a tea.Cmd that blocks until the next line arrives on
// ch.  When ch is closed (server disconnected), it returns disconnectedMsg.
func waitForLine(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return disconnectedMsg{}
		}
		return serverLineMsg(line)
	}
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	// lines bridges the TCP reader goroutine and the Bubbletea event loop.
	// A multi-line server reply (/rooms, /who, /history) arrives here as
	// successive channel sends, one per line.
	lines := make(chan string, 64)

	// Reader goroutine: TCP → lines channel.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- strings.TrimSuffix(scanner.Text(), "\r")
		}
	}()

	p := tea.NewProgram(
		newModel(conn, lines),
		tea.WithAltScreen(),       // use the alternate screen buffer
		tea.WithMouseCellMotion(), // enable mouse wheel scrolling
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
