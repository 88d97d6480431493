// Package relaytest provides an in-memory relay proxy for tests.
package relaytest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Peer is one client connection accepted by the proxy.
type Peer struct {
	conn *websocket.Conn

	// Handshake is the first frame the client sent.
	Handshake []byte

	// Frames receives every later frame from the client.
	Frames chan []byte

	send chan []byte
	done chan struct{}
	once sync.Once
}

// Send pushes a text frame to the client.
func (p *Peer) Send(data []byte) {
	select {
	case p.send <- data:
	case <-p.done:
	}
}

// Close hangs up on the client without a close handshake.
func (p *Peer) Close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// Proxy accepts websocket clients and exposes each as a Peer.
// With Echo set, client frames after the handshake are written back.
type Proxy struct {
	*httptest.Server

	Echo  bool
	Peers chan *Peer
}

// NewProxy starts a fake proxy. Close it when done.
func NewProxy() *Proxy {
	p := &Proxy{Peers: make(chan *Peer, 8)}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serveWs))
	return p
}

// WSURL is the ws:// address of the proxy.
func (p *Proxy) WSURL() string {
	return "ws" + strings.TrimPrefix(p.URL, "http")
}

func (p *Proxy) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	_, handshake, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}

	peer := &Peer{
		conn:      conn,
		Handshake: handshake,
		Frames:    make(chan []byte, 64),
		send:      make(chan []byte, 64),
		done:      make(chan struct{}),
	}

	go p.writePump(peer)
	go p.readPump(peer)

	p.Peers <- peer
}

func (p *Proxy) readPump(peer *Peer) {
	defer func() {
		peer.Close()
		close(peer.Frames)
	}()

	for {
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			return
		}
		if p.Echo {
			peer.Send(data)
		}
		select {
		case peer.Frames <- data:
		default:
		}
	}
}

func (p *Proxy) writePump(peer *Peer) {
	for {
		select {
		case data := <-peer.send:
			peer.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := peer.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				peer.Close()
				return
			}
		case <-peer.done:
			return
		}
	}
}
