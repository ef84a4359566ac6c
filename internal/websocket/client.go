package websocket

import (
	"sync"
	"time"

	"school-portal-be/internal/entity"
	"school-portal-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Conn is the part of the websocket connection the client uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is a middleman between the websocket connection and the broker
// streams of one session.
type Client struct {
	hub       *Hub
	conn      Conn
	Principal entity.Principal
	Session   *Session

	// Buffered channel of outbound frames.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    logger.ILogger
}

func newClient(hub *Hub, conn Conn, principal entity.Principal, session *Session, buffer int, log logger.ILogger) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		hub:       hub,
		conn:      conn,
		Principal: principal,
		Session:   session,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		logger:    log,
	}
}

// Enqueue hands a frame to the write pump. A client that cannot keep up is
// disconnected and must catch up by polling after reconnecting.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("Client", "Client send buffer full, dropping connection", map[string]interface{}{
			"user_id": c.Principal.UserId,
		})
		c.Close()
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump pumps frames from the websocket connection to handle.
func (c *Client) readPump(handle func(data []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"user_id": c.Principal.UserId,
					"error":   err.Error(),
				})
			}
			return
		}
		handle(data)
	}
}

// writePump pumps frames to the websocket connection and keeps it alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
