package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mcoot/towers-go/internal/model"
	"github.com/mcoot/towers-go/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// conn is one upgraded socket. It satisfies registry.Conn.
type conn struct {
	id      string
	player  model.Player
	ws      *websocket.Conn
	limiter *rate.Limiter
	logger  *slog.Logger

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *conn) ID() string { return c.id }

// Send queues msg without blocking. It reports false when the buffer is full or the
// connection has closed.
func (c *conn) Send(msg protocol.ServerMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode message", slog.String("type", msg.Type), slog.Any("error", err))
		return false
	}
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writePump drains the send buffer and keeps the socket alive with pings
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", slog.Any("error", err))
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
