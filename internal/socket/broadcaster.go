package socket

import "github.com/Marga-Ghale/ora-ops-console/internal/service"

// Broadcaster pushes committed domain events to connected consoles. It
// implements service.EventPublisher.
type Broadcaster struct {
	hub *Hub
}

var _ service.EventPublisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// ============================================
// Client Broadcasting
// ============================================

// clientRooms reaches every admin plus the owner's own connections.
func clientRooms(ownerID string) []string {
	return []string{AdminsRoom, UserRoom(ownerID)}
}

func (b *Broadcaster) BroadcastClientCreated(ownerID string, client map[string]interface{}, actorID string) {
	b.hub.SendToRooms(clientRooms(ownerID), MessageClientCreated, map[string]interface{}{
		"client":    client,
		"createdBy": actorID,
	}, actorID)
}

func (b *Broadcaster) BroadcastClientUpdated(ownerID string, client map[string]interface{}, changes []string, actorID string) {
	b.hub.SendToRooms(clientRooms(ownerID), MessageClientUpdated, map[string]interface{}{
		"client":        client,
		"changedFields": changes,
		"changedBy":     actorID,
	}, actorID)
}

func (b *Broadcaster) BroadcastClientArchived(ownerID string, client map[string]interface{}, archived bool, actorID string) {
	b.hub.SendToRooms(clientRooms(ownerID), MessageClientArchived, map[string]interface{}{
		"client":     client,
		"isArchived": archived,
		"changedBy":  actorID,
	}, actorID)
}

// ============================================
// Task Broadcasting
// ============================================

func (b *Broadcaster) BroadcastTaskAssigned(assigneeID string, task map[string]interface{}, assignedBy string) {
	b.hub.SendToRooms([]string{UserRoom(assigneeID)}, MessageTaskAssigned, map[string]interface{}{
		"task":       task,
		"assignedBy": assignedBy,
	}, "")
}

// ============================================
// Access Changes
// ============================================

// UserAccessChanged closes the user's connections. Rooms are fixed at
// connect time, so a demoted or deactivated user must not keep them.
func (b *Broadcaster) UserAccessChanged(userID string) {
	b.hub.DisconnectUser(userID)
}
