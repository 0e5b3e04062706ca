// README: Websocket connection wrapper with a buffered, non-blocking send path.
package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// timeNow is swappable in tests.
var timeNow = time.Now

// Conn wraps one websocket connection together with the identity that
// authenticated it. All writes go through the send channel so that state
// machine callers never block on a slow client.
type Conn struct {
	ws   *websocket.Conn
	send chan Event
	done chan struct{}

	// identity decoded from the connection credential; every
	// identity-bearing inbound event is cross-checked against it.
	uid  string
	role string

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, uid, role string, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	return &Conn{
		ws:   ws,
		send: make(chan Event, sendBuffer),
		done: make(chan struct{}),
		uid:  uid,
		role: role,
	}
}

// Send queues an event without blocking. A full buffer or a closed
// connection drops the event, preserving at-most-once delivery.
func (c *Conn) Send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close tears down the websocket. Safe to call from any goroutine, any
// number of times; the read pump unblocks with an error and runs cleanup.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump drains the send channel onto the socket. One writer per
// connection; gorilla/websocket allows at most one concurrent writer.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			// flush anything queued before the close frame
			for {
				select {
				case ev := <-c.send:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.ws.WriteJSON(ev); err != nil {
						return
					}
				default:
					_ = c.ws.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
					return
				}
			}
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
