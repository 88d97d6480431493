package relay_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomlink/roomlink/internal/directory"
	"github.com/roomlink/roomlink/internal/relay"
	"github.com/roomlink/roomlink/internal/relay/relaytest"
)

const waitTimeout = 2 * time.Second

func testRoom(t *testing.T) *directory.Room {
	t.Helper()
	var room directory.Room
	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc","server":{"server":"10.0.0.9","port":4000}}`), &room))
	room.ApplicationName = "pong"
	room.Version = "1.0"
	room.Password = "x"
	return &room
}

func acceptPeer(t *testing.T, proxy *relaytest.Proxy) *relaytest.Peer {
	t.Helper()
	select {
	case peer := <-proxy.Peers:
		return peer
	case <-time.After(waitTimeout):
		t.Fatal("proxy did not accept a connection")
		return nil
	}
}

func TestConnect_SendsRoomAsFirstFrame(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	room := testRoom(t)
	conn := relay.NewConn(proxy.WSURL())
	defer conn.Close()

	var connects atomic.Int32
	conn.OnConnect(func() { connects.Add(1) })

	require.NoError(t, conn.Connect(context.Background(), room))
	peer := acceptPeer(t, proxy)

	want, err := json.Marshal(room)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(peer.Handshake))
	assert.JSONEq(t, `{"id":"abc","server":{"server":"10.0.0.9","port":4000},"application_name":"pong","version":"1.0","password":"x"}`, string(peer.Handshake))
	assert.Equal(t, int32(1), connects.Load())
	assert.Same(t, room, conn.Room())
}

func TestConnect_HandshakePrecedesInbound(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	defer conn.Close()

	var mu sync.Mutex
	var events []string
	conn.OnConnect(func() {
		mu.Lock()
		events = append(events, "connect")
		mu.Unlock()
	})
	received := make(chan []byte, 4)
	conn.OnReceive(func(data []byte) {
		mu.Lock()
		events = append(events, "receive")
		mu.Unlock()
		received <- data
	})

	require.NoError(t, conn.Connect(context.Background(), testRoom(t)))
	peer := acceptPeer(t, proxy)
	require.NotEmpty(t, peer.Handshake)

	peer.Send([]byte("state:1"))
	peer.Send([]byte("state:2"))

	for _, want := range []string{"state:1", "state:2"} {
		select {
		case got := <-received:
			assert.Equal(t, want, string(got))
		case <-time.After(waitTimeout):
			t.Fatalf("did not receive %q", want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"connect", "receive", "receive"}, events)
}

func TestSend_ForwardsVerbatim(t *testing.T) {
	proxy := relaytest.NewProxy()
	proxy.Echo = true
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	defer conn.Close()

	received := make(chan []byte, 1)
	conn.OnReceive(func(data []byte) { received <- data })

	require.NoError(t, conn.Connect(context.Background(), testRoom(t)))
	peer := acceptPeer(t, proxy)

	payload := []byte(`{"move":[1,2]}`)
	require.NoError(t, conn.Send(payload))

	select {
	case got := <-peer.Frames:
		assert.Equal(t, payload, got)
	case <-time.After(waitTimeout):
		t.Fatal("proxy did not receive frame")
	}

	select {
	case got := <-received:
		assert.Equal(t, payload, got)
	case <-time.After(waitTimeout):
		t.Fatal("echo not delivered")
	}
}

func TestSend_BeforeConnect(t *testing.T) {
	conn := relay.NewConn("ws://127.0.0.1:1")
	assert.ErrorIs(t, conn.Send([]byte("x")), relay.ErrNotConnected)
}

func TestSend_AfterClose(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	require.NoError(t, conn.Connect(context.Background(), testRoom(t)))
	acceptPeer(t, proxy)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send([]byte("x")), relay.ErrNotConnected)
}

func TestConnect_NilRoom(t *testing.T) {
	conn := relay.NewConn("ws://127.0.0.1:1")
	assert.ErrorIs(t, conn.Connect(context.Background(), nil), relay.ErrNoRoom)
}

func TestConnect_ProxyUnreachable(t *testing.T) {
	proxy := relaytest.NewProxy()
	url := proxy.WSURL()
	proxy.Close()

	conn := relay.NewConn(url)
	var connected atomic.Bool
	conn.OnConnect(func() { connected.Store(true) })

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	assert.Error(t, conn.Connect(ctx, testRoom(t)))
	assert.False(t, connected.Load())
	assert.ErrorIs(t, conn.Send([]byte("x")), relay.ErrNotConnected)
}

func TestOnClose_RemoteHangup(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	closed := make(chan error, 2)
	conn.OnClose(func(err error) { closed <- err })

	require.NoError(t, conn.Connect(context.Background(), testRoom(t)))
	peer := acceptPeer(t, proxy)
	peer.Close()

	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("OnClose not called")
	}

	assert.Eventually(t, func() bool {
		return conn.Send([]byte("x")) == relay.ErrNotConnected
	}, waitTimeout, 10*time.Millisecond)

	select {
	case <-closed:
		t.Fatal("OnClose called twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOnClose_LocalClose(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	closed := make(chan error, 1)
	conn.OnClose(func(err error) { closed <- err })

	require.NoError(t, conn.Connect(context.Background(), testRoom(t)))
	acceptPeer(t, proxy)
	require.NoError(t, conn.Close())

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("OnClose not called")
	}
}

func TestConnect_ReplacesPreviousSocket(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	defer conn.Close()

	var connects atomic.Int32
	conn.OnConnect(func() { connects.Add(1) })

	first := testRoom(t)
	require.NoError(t, conn.Connect(context.Background(), first))
	firstPeer := acceptPeer(t, proxy)

	second := testRoom(t)
	require.NoError(t, second.SetField("id", "def"))
	require.NoError(t, conn.Connect(context.Background(), second))
	secondPeer := acceptPeer(t, proxy)

	assert.Equal(t, int32(2), connects.Load())
	assert.Same(t, second, conn.Room())
	assert.Contains(t, string(secondPeer.Handshake), `"id":"def"`)

	// the first socket is torn down, so its frame channel closes
	select {
	case _, ok := <-firstPeer.Frames:
		assert.False(t, ok)
	case <-time.After(waitTimeout):
		t.Fatal("first socket still open")
	}

	require.NoError(t, conn.Send([]byte("hello")))
	select {
	case got := <-secondPeer.Frames:
		assert.Equal(t, "hello", string(got))
	case <-time.After(waitTimeout):
		t.Fatal("frame not sent on second socket")
	}
}

func TestBackendURL_IsNotDialed(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	defer conn.Close()
	assert.Empty(t, conn.BackendURL())

	require.NoError(t, conn.Connect(context.Background(), testRoom(t)))
	acceptPeer(t, proxy)
	assert.Equal(t, "ws://10.0.0.9:4000", conn.BackendURL())
}

func TestConnect_CancelledContext(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	var connected atomic.Bool
	conn.OnConnect(func() { connected.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, conn.Connect(ctx, testRoom(t)))
	assert.False(t, connected.Load())
	assert.ErrorIs(t, conn.Send([]byte("x")), relay.ErrNotConnected)
}

func TestSend_ReturnsAfterFrameIsWritten(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	conn := relay.NewConn(proxy.WSURL())
	defer conn.Close()
	require.NoError(t, conn.Connect(context.Background(), testRoom(t)))
	peer := acceptPeer(t, proxy)

	for i := 0; i < 20; i++ {
		require.NoError(t, conn.Send([]byte{byte('a' + i)}))
	}
	for i := 0; i < 20; i++ {
		select {
		case got := <-peer.Frames:
			assert.Equal(t, []byte{byte('a' + i)}, got)
		case <-time.After(waitTimeout):
			t.Fatalf("frame %d not delivered", i)
		}
	}
}

func TestHandshake_KeepsServerWireShape(t *testing.T) {
	proxy := relaytest.NewProxy()
	defer proxy.Close()

	raw := `{"id":"abc","server":{"host":"10.0.0.9","port":4000},"password":null}`
	var room directory.Room
	require.NoError(t, json.Unmarshal([]byte(raw), &room))

	conn := relay.NewConn(proxy.WSURL())
	defer conn.Close()
	require.NoError(t, conn.Connect(context.Background(), &room))
	peer := acceptPeer(t, proxy)

	assert.JSONEq(t, raw, string(peer.Handshake))
}
