package service

// EventPublisher pushes committed changes to connected consoles.
// socket.Broadcaster implements it.
type EventPublisher interface {
	BroadcastClientCreated(ownerID string, client map[string]interface{}, actorID string)
	BroadcastClientUpdated(ownerID string, client map[string]interface{}, changes []string, actorID string)
	BroadcastClientArchived(ownerID string, client map[string]interface{}, archived bool, actorID string)
	BroadcastTaskAssigned(assigneeID string, task map[string]interface{}, assignedBy string)
	// UserAccessChanged is called after a user's role or active flag changed.
	UserAccessChanged(userID string)
}

type NopEventPublisher struct{}

func (NopEventPublisher) BroadcastClientCreated(string, map[string]interface{}, string) {}
func (NopEventPublisher) BroadcastClientUpdated(string, map[string]interface{}, []string, string) {}
func (NopEventPublisher) BroadcastClientArchived(string, map[string]interface{}, bool, string) {}
func (NopEventPublisher) BroadcastTaskAssigned(string, map[string]interface{}, string) {}
func (NopEventPublisher) UserAccessChanged(string) {}

// Mailer delivers the emails services trigger. email.Service implements it.
type Mailer interface {
	SendTemporaryPassword(to, name, password string) error
}
