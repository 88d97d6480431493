package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionSend_AfterShutdownNeverSucceeds(t *testing.T) {
	c := NewConn("ws://127.0.0.1:1")
	s := newSession(nil)
	s.once.Do(func() { close(s.done) })

	go c.writePump(s)
	for i := 0; i < 100; i++ {
		assert.ErrorIs(t, s.send([]byte("x")), ErrNotConnected)
	}
}
