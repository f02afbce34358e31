package ws

import (
	"sync"
	"time"

	"rps_arena/internal/logger"
	"rps_arena/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one authenticated websocket connection.
type Client struct {
	PlayerID int64
	Conn     *websocket.Conn
	Send     chan []byte

	hub    *Hub
	router *Router

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(playerID int64, conn *websocket.Conn, hub *Hub, router *Router) *Client {
	return &Client{
		PlayerID: playerID,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		hub:      hub,
		router:   router,
		done:     make(chan struct{}),
	}
}

// Run registers the client, starts its pumps and blocks until the connection drops.
func (c *Client) Run() {
	c.hub.register(c)
	go c.writePump()

	c.enqueueEvent(protocol.Event{Type: protocol.MsgReady})
	if c.router != nil {
		c.router.Connected(c.PlayerID)
	}

	c.readPump()
}

// enqueue hands a frame to the write pump without blocking. A client that
// cannot keep up is disconnected rather than allowed to stall the engine.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- frame:
		return true
	default:
		logger.Warn("send buffer full, dropping connection", "player_id", c.PlayerID)
		c.Close()
		return false
	}
}

func (c *Client) enqueueEvent(ev protocol.Event) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		logger.Error("encode event", "type", ev.Type, "error", err)
		return
	}
	c.enqueue(frame)
}

// Close stops both pumps. The write pump sends a normal-closure frame and
// then closes the socket. It is safe to call more than once and never blocks.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		if c.hub.unregister(c) && c.router != nil {
			c.router.Disconnected(c.PlayerID)
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("read error", "player_id", c.PlayerID, "error", err)
			}
			return
		}
		if c.router != nil {
			c.router.Dispatch(c, msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("write error", "player_id", c.PlayerID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
