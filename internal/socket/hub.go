package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Client lifecycle messages
	MessageClientCreated  MessageType = "client_created"
	MessageClientUpdated  MessageType = "client_updated"
	MessageClientArchived MessageType = "client_archived"

	// Task messages
	MessageTaskAssigned MessageType = "task_assigned"

	// System messages
	MessagePing MessageType = "ping"
	MessagePong MessageType = "pong"
)

// AdminsRoom is joined automatically by every admin connection.
const AdminsRoom = "admins"

// UserRoom is the personal room every connection of a user joins.
func UserRoom(userID string) string {
	return "user:" + userID
}

// Message represents a WebSocket message
type Message struct {
	Type      MessageType            `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte
	Rooms  map[string]bool // fixed at registration
}

// Hub maintains the set of active clients and fans messages out to rooms.
type Hub struct {
	clients     map[*Client]bool
	roomClients map[string]map[*Client]bool

	register       chan *Client
	unregister     chan *Client
	disconnectUser chan string
	roomBroadcast  chan *RoomMessage
	done           chan struct{}

	log *zap.Logger
	mu  sync.RWMutex
}

// RoomMessage is delivered once to every client in any of Rooms.
type RoomMessage struct {
	Rooms   []string
	Message []byte
	Exclude string // User ID to exclude from broadcast
}

// NewHub creates a new Hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		roomClients:   make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		disconnectUser: make(chan string, 64),
		roomBroadcast:  make(chan *RoomMessage, 256),
		done:           make(chan struct{}),
		log:            log,
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("websocket hub started")

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.log.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case userID := <-h.disconnectUser:
			h.disconnectUserClients(userID)

		case rm := <-h.roomBroadcast:
			h.broadcastToRooms(rm)

		case <-pingTicker.C:
			h.pingClients()
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	for room := range client.Rooms {
		if h.roomClients[room] == nil {
			h.roomClients[room] = make(map[*Client]bool)
		}
		h.roomClients[room][client] = true
	}

	h.log.Debug("client registered",
		zap.String("user_id", client.UserID),
		zap.String("client_id", client.ID),
		zap.Int("total_clients", len(h.clients)),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	for room := range client.Rooms {
		if clients, ok := h.roomClients[room]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.roomClients, room)
			}
		}
	}

	close(client.Send)
	h.log.Debug("client disconnected",
		zap.String("user_id", client.UserID),
		zap.String("client_id", client.ID),
		zap.Int("total_clients", len(h.clients)),
	)
}

// disconnectUserClients closes every connection of userID. Each connection
// joined the user's personal room, so that room lists all of them.
func (h *Hub) disconnectUserClients(userID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.roomClients[UserRoom(userID)]))
	for client := range h.roomClients[UserRoom(userID)] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.unregisterClient(client)
	}
	if len(clients) > 0 {
		h.log.Info("user connections closed", zap.String("user_id", userID), zap.Int("connections", len(clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
	h.roomClients = make(map[string]map[*Client]bool)
}

// drop disconnects a client whose send buffer is full.
func (h *Hub) drop(client *Client) {
	go h.Unregister(client)
}

func (h *Hub) broadcastToRooms(rm *RoomMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]bool)
	for _, room := range rm.Rooms {
		for client := range h.roomClients[room] {
			if seen[client] || (rm.Exclude != "" && client.UserID == rm.Exclude) {
				continue
			}
			seen[client] = true
			select {
			case client.Send <- rm.Message:
			default:
				h.drop(client)
			}
		}
	}
}

func (h *Hub) pingClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, _ := json.Marshal(Message{Type: MessagePing, Timestamp: time.Now()})
	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.drop(client)
		}
	}
}

// ============================================
// Public Methods
// ============================================

// Register hands a client, with its rooms already set, to the hub. It
// reports false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client. It is a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// DisconnectUser closes all open connections of a user, whose rooms no
// longer match their access. The user has to reconnect and re-authenticate.
func (h *Hub) DisconnectUser(userID string) {
	select {
	case h.disconnectUser <- userID:
	case <-h.done:
	}
}

// SendToRooms broadcasts a message once to every client in any of rooms.
// It never blocks the caller: when the hub is saturated the message is dropped.
func (h *Hub) SendToRooms(rooms []string, msgType MessageType, payload map[string]interface{}, excludeUserID string) {
	data, err := json.Marshal(Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.log.Error("marshal websocket message", zap.String("type", string(msgType)), zap.Error(err))
		return
	}

	select {
	case h.roomBroadcast <- &RoomMessage{Rooms: rooms, Message: data, Exclude: excludeUserID}:
	default:
		h.log.Warn("websocket broadcast dropped", zap.String("type", string(msgType)), zap.Strings("rooms", rooms))
	}
}

// GetConnectedClientsCount returns total connected clients
func (h *Hub) GetConnectedClientsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
