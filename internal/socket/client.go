package socket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize int64 = 4096
)

// ClientMessage represents an incoming message from a client
type ClientMessage struct {
	Action string `json:"action"`
}

// NewClient creates a client subscribed to rooms.
func NewClient(hub *Hub, userID string, conn *websocket.Conn, rooms ...string) *Client {
	c := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan []byte, 256),
		Rooms:  make(map[string]bool, len(rooms)),
	}
	for _, room := range rooms {
		c.Rooms[room] = true
	}
	return c
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug("websocket read error", zap.String("user_id", c.UserID), zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// handleMessage processes incoming messages. Subscriptions are decided by
// the server at connect time, so only keepalives are accepted.
func (c *Client) handleMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Hub.log.Debug("unparseable websocket message", zap.String("user_id", c.UserID), zap.Error(err))
		return
	}

	switch msg.Action {
	case "ping":
		c.sendPong()
	case "pong":
	default:
		c.Hub.log.Debug("unknown websocket action", zap.String("action", msg.Action), zap.String("user_id", c.UserID))
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Message{
		Type:      MessagePong,
		Payload:   map[string]interface{}{"time": time.Now().Unix()},
		Timestamp: time.Now(),
	})

	select {
	case c.Send <- data:
	default:
	}
}
