package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 100
)

// Conn wraps one websocket connection behind model.Conn. Writes go through a
// buffered channel drained by a single writer goroutine; a full buffer means
// the consumer is too slow and the frame is dropped.
type Conn struct {
	ws        *websocket.Conn
	send      chan model.ChatMessage
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(wsConn *websocket.Conn) *Conn {
	return &Conn{
		ws:   wsConn,
		send: make(chan model.ChatMessage, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send enqueues a frame for the writer goroutine. Never blocks.
func (c *Conn) Send(msg model.ChatMessage) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
		return fmt.Errorf("send buffer full, dropping frame")
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return c.ws.Close()
}

// writePump serializes all writes to the websocket and keeps the protocol
// ping/pong alive.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
