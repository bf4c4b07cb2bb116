package network

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection seen from the server.
type Client struct {
	id     string
	token  string
	conn   *websocket.Conn
	hub    *Hub
	logger *slog.Logger

	// send is drained by writeLoop. It is closed exactly once, under mu.
	send   chan Message
	mu     sync.Mutex
	closed bool
}

func (c *Client) ID() string    { return c.id }
func (c *Client) Token() string { return c.token }

// RemoteAddr returns the peer network address.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Send queues msg without blocking. A client whose buffer is full is
// disconnected rather than allowed to stall the sender.
func (c *Client) Send(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("send buffer full, dropping client", "buffer", cap(c.send))
		c.closed = true
		close(c.send)
		return false
	}
}

// Close stops the write loop, which sends a close frame and ends the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readLoop(handler EventHandler, maxMessageSize int64) {
	defer func() {
		c.hub.unregister(c)
		c.Close()
		handler.OnDisconnect(c)
		c.conn.Close()
		c.logger.Info("client disconnected", "remote", c.RemoteAddr())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("connection closed unexpectedly", "error", err)
			}
			return
		}

		msg, err := Decode(data)
		if err != nil {
			handler.OnInvalid(c, err)
			continue
		}
		handler.OnMessage(c, msg)
	}
}

// writeLoop pumps messages from the send channel to the connection.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
