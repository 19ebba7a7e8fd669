package socket

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/service"
)

// Handler upgrades authenticated requests to WebSocket connections.
type Handler struct {
	Hub      *Hub
	auth     service.AuthService
	identity service.IdentityResolver
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler builds the handler. An empty allowedOrigins accepts any origin.
func NewHandler(hub *Hub, auth service.AuthService, identity service.IdentityResolver, allowedOrigins []string, log *zap.Logger) *Handler {
	h := &Handler{Hub: hub, auth: auth, identity: identity, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowedOrigins) == 0 || origin == "" || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// HandleWebSocket reads the token from the query string because the
// browser WebSocket API cannot set headers; a bearer header also works.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "No token provided"}})
		return
	}

	userID, err := h.auth.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "Invalid token"}})
		return
	}
	identity, err := h.identity.Resolve(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "User not found or deactivated"}})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	rooms := []string{UserRoom(identity.UserID)}
	if identity.IsAdmin() {
		rooms = append(rooms, AdminsRoom)
	}
	client := NewClient(h.Hub, identity.UserID, conn, rooms...)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
