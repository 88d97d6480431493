package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roomlink/roomlink/internal/directory"
	"github.com/roomlink/roomlink/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	ErrNotConnected = errors.New("relay connection not open")
	ErrNoRoom       = errors.New("no room given")
)

// Conn relays application frames to a room's backend through a proxy.
// The proxy learns which backend to reach from the first frame, which is
// the JSON form of the room.
type Conn struct {
	proxyURL       string
	dialer         *websocket.Dialer
	logger         *slog.Logger
	messageType    int
	maxMessageSize int64

	mu        sync.Mutex
	room      *directory.Room
	session   *session
	onConnect func()
	onReceive func([]byte)
	onClose   func(error)
}

// session is one open socket and its pumps.
type session struct {
	conn     *websocket.Conn
	outgoing chan outbound
	done     chan struct{}
	once     sync.Once
	err      error
}

// outbound is a frame handed to the write pump, which reports the write
// result on sent.
type outbound struct {
	data []byte
	sent chan error
}

func newSession(ws *websocket.Conn) *session {
	return &session{
		conn:     ws,
		outgoing: make(chan outbound),
		done:     make(chan struct{}),
	}
}

// Option configures a Conn.
type Option func(*Conn)

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Conn) {
		c.dialer = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) {
		c.logger = l
	}
}

// WithBinaryFrames makes Send write binary frames instead of text frames.
func WithBinaryFrames() Option {
	return func(c *Conn) {
		c.messageType = websocket.BinaryMessage
	}
}

// WithMaxMessageSize limits the size of inbound frames.
func WithMaxMessageSize(n int64) Option {
	return func(c *Conn) {
		c.maxMessageSize = n
	}
}

// NewConn creates a relay connection that will dial proxyURL.
func NewConn(proxyURL string, opts ...Option) *Conn {
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dns.DialContext

	c := &Conn{
		proxyURL:       proxyURL,
		dialer:         &dialer,
		logger:         slog.Default(),
		messageType:    websocket.TextMessage,
		maxMessageSize: maxMessageSize,
		onConnect:      func() {},
		onReceive:      func([]byte) {},
		onClose:        func(error) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnConnect sets the hook run once the handshake frame has been sent.
func (c *Conn) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		fn = func() {}
	}
	c.onConnect = fn
}

// OnReceive sets the hook run with the raw payload of every inbound frame.
func (c *Conn) OnReceive(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		fn = func([]byte) {}
	}
	c.onReceive = fn
}

// OnClose sets the hook run once when the socket terminates. The error is
// nil after a local Close.
func (c *Conn) OnClose(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		fn = func(error) {}
	}
	c.onClose = fn
}

// Room returns the room of the current connection, if any.
func (c *Conn) Room() *directory.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// BackendURL is the address of the room's own game server. It is only
// informational: Connect always dials the proxy.
func (c *Conn) BackendURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return ""
	}
	host := net.JoinHostPort(c.room.Server.Host, strconv.Itoa(c.room.Server.Port))
	return "ws://" + host
}

// Connect opens the socket to the proxy, sends the room as the first frame
// and runs the OnConnect hook. Any previous socket is closed first.
func (c *Conn) Connect(ctx context.Context, room *directory.Room) error {
	if room == nil {
		return ErrNoRoom
	}

	handshake, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}

	c.mu.Lock()
	prev := c.session
	c.session = nil
	c.room = room
	c.mu.Unlock()
	if prev != nil {
		c.logger.Debug("replacing relay connection", "proxy", c.proxyURL)
		prev.shutdown(nil)
	}

	ws, _, err := c.dialer.DialContext(ctx, c.proxyURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to proxy: %w", err)
	}

	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, handshake); err != nil {
		ws.Close()
		return fmt.Errorf("send handshake: %w", err)
	}
	if err := ctx.Err(); err != nil {
		ws.Close()
		return err
	}

	ws.SetReadLimit(c.maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s := newSession(ws)

	c.mu.Lock()
	c.session = s
	onConnect, onReceive, onClose := c.onConnect, c.onReceive, c.onClose
	c.mu.Unlock()

	c.logger.Debug("relay connected", "proxy", c.proxyURL, "room", room.ID())
	onConnect()

	go c.readPump(s, onReceive, onClose)
	go c.writePump(s)

	return nil
}

// Send forwards data verbatim to the proxy. It returns once the frame has
// been written, or with the reason it was not.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	return s.send(data)
}

func (s *session) send(data []byte) error {
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}

	out := outbound{data: data, sent: make(chan error, 1)}
	select {
	case s.outgoing <- out:
		return <-out.sent
	case <-s.done:
		return ErrNotConnected
	}
}

// Close closes the current socket, if any.
func (c *Conn) Close() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		s.shutdown(nil)
	}
	return nil
}

// readPump delivers inbound frames until the socket fails or is closed.
func (c *Conn) readPump(s *session, onReceive func([]byte), onClose func(error)) {
	defer func() {
		c.mu.Lock()
		if c.session == s {
			c.session = nil
		}
		c.mu.Unlock()
		onClose(s.err)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("relay read failed", "error", err)
				}
				s.shutdown(err)
			}
			return
		}
		onReceive(data)
	}
}

// writePump serializes writes and keeps the socket alive with pings.
func (c *Conn) writePump(s *session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case out := <-s.outgoing:
			select {
			case <-s.done:
				out.sent <- ErrNotConnected
				return
			default:
			}

			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(c.messageType, out.data); err != nil {
				c.logger.Warn("relay write failed", "error", err)
				s.shutdown(err)
				out.sent <- fmt.Errorf("write frame: %w", err)
				return
			}
			out.sent <- nil

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.shutdown(err)
				return
			}

		case <-s.done:
			return
		}
	}
}

// shutdown records the first terminal error and closes the socket. A nil
// err marks a local close, which sends a close frame first.
func (s *session) shutdown(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
		if err == nil {
			deadline := time.Now().Add(writeWait)
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		}
		s.conn.Close()
	})
}
