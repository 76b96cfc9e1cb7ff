package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"groupcart/internal/model"
	"groupcart/pkg/log"
)

// Client one websocket connection
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once

	// guarded by hub.mu
	username string
	roomID   string
}

func (h *Hub) newClient(conn *websocket.Conn) *Client {
	buffer := h.cfg.SendBuffer
	if buffer <= 0 {
		buffer = 64
	}
	limit := rate.Inf
	if h.cfg.MessageRate > 0 {
		limit = rate.Limit(h.cfg.MessageRate)
	}
	burst := h.cfg.MessageBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		id:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, buffer),
		limiter: rate.NewLimiter(limit, burst),
		done:    make(chan struct{}),
	}
}

// ID returns the client id
func (c *Client) ID() string {
	return c.id
}

// close signals the write pump, which sends the close frame and releases the
// connection
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump decodes frames and hands them to the dispatcher in order
func (c *Client) readPump() {
	defer c.hub.disconnect(c)

	if c.hub.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	}
	pongWait := c.hub.cfg.PongWait
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithFields(log.Fields{
					"client_id": c.id,
					"error":     err.Error(),
				}).Warn("Websocket closed unexpectedly")
			}
			return
		}

		if !c.limiter.Allow() {
			c.hub.metrics.RecordRateLimited()
			c.hub.Send(c.id, model.EventError, errorEvent("Too many messages, slow down"))
			continue
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
			c.hub.Send(c.id, model.EventError, errorEvent("Malformed message"))
			continue
		}

		if d := c.hub.getDispatcher(); d != nil {
			d.HandleEvent(c.hub.ctx, c.id, env.Event, env.Data)
		}
	}
}

// writePump drains the send buffer and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.close()
	}()

	writeWait := c.hub.cfg.WriteWait
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
