package server

import (
	"sync"
	"time"

	"alphatrak-observer/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	id   string
	hub  *APIServer
	conn *websocket.Conn
	send chan interface{}

	mu   sync.RWMutex
	pets map[int64]bool // nil means every pet
}

// -----------------------------------------------------------------------------

func (c *Client) subscribe(petIDs []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(petIDs) == 0 {
		c.pets = nil
		return
	}
	c.pets = make(map[int64]bool, len(petIDs))
	for _, id := range petIDs {
		c.pets[id] = true
	}
}

// filter narrows a broadcast to the subscribed pets. Returns nil when nothing
// is left to send.
func (c *Client) filter(message *models.MLatestData) *models.MLatestData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pets == nil {
		return message
	}

	results := make(map[int64]models.MCycleResult)
	for id, r := range message.Results {
		if c.pets[id] {
			results[id] = r
		}
	}
	if len(results) == 0 {
		return nil
	}
	return &models.MLatestData{Type: message.Type, Results: results, Timestamp: message.Timestamp}
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.hub.Logger.Debug("Client %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
		c.hub.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
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
