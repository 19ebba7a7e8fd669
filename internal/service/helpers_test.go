package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/config"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

type testEnv struct {
	repos    *repository.Repositories
	events   *recordingEvents
	mailer   *recordingMailer
	cfg      *config.Config
	services *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	events := &recordingEvents{}
	mailer := &recordingMailer{}
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTExpiry:        1,
		RefreshExpiry:    1,
		IdentityCacheTTL: time.Minute,
	}
	return &testEnv{
		repos:  repos,
		events: events,
		mailer: mailer,
		cfg:    cfg,
		services: NewServices(&ServiceDeps{
			Config: cfg,
			Repos:  repos,
			Mailer: mailer,
			Events: events,
			Logger: zap.NewNop(),
		}),
	}
}

func (e *testEnv) addUser(t *testing.T, name string, role types.Role, active bool) Identity {
	t.Helper()
	u := &repository.User{
		Email:    name + "@ops.test",
		Name:     name,
		Password: "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinv",
		Role:     role,
		IsActive: active,
	}
	require.NoError(t, e.repos.UserRepo.Create(context.Background(), u))
	return Identity{UserID: u.ID, Role: role, IsActive: active}
}

func (e *testEnv) history(t *testing.T, clientID string) []*repository.ClientHistoryEntry {
	t.Helper()
	entries, err := e.repos.ClientHistoryRepo.ListByClient(context.Background(), clientID)
	require.NoError(t, err)
	return entries
}

func (e *testEnv) createClient(t *testing.T, admin Identity, email, ownerID string) *ClientDetail {
	t.Helper()
	c, err := e.services.Client.Create(context.Background(), admin, &CreateClientRequest{
		Name:        "Acme",
		CompanyName: "Acme Co",
		Email:       email,
		OwnerID:     ownerID,
	})
	require.NoError(t, err)
	return c
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recordingEvents) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingEvents) BroadcastClientCreated(string, map[string]interface{}, string) {
	r.add("client_created")
}

func (r *recordingEvents) BroadcastClientUpdated(string, map[string]interface{}, []string, string) {
	r.add("client_updated")
}

func (r *recordingEvents) BroadcastClientArchived(string, map[string]interface{}, bool, string) {
	r.add("client_archived")
}

func (r *recordingEvents) BroadcastTaskAssigned(string, map[string]interface{}, string) {
	r.add("task_assigned")
}

func (r *recordingEvents) UserAccessChanged(userID string) {
	r.add("access_changed:" + userID)
}

type recordingMailer struct {
	fail      bool
	passwords map[string]string
}

func (m *recordingMailer) SendTemporaryPassword(to, _, password string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	if m.passwords == nil {
		m.passwords = map[string]string{}
	}
	m.passwords[to] = password
	return nil
}

// failingHistoryRepo rejects every append.
type failingHistoryRepo struct {
	repository.ClientHistoryRepository
	panics bool
}

func (f failingHistoryRepo) Append(context.Context, *repository.ClientHistoryEntry) error {
	if f.panics {
		panic("boom")
	}
	return errors.New("history store unavailable")
}
