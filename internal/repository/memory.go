package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// In-memory repositories back the service tests and local runs without
// Postgres. Each store holds one mutex for the whole read-modify-write, which
// gives the same serialization the row locks give in Postgres.

// NewMemoryRepositories wires every repository to an in-memory store.
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		UserRepo:          NewMemoryUserRepository(),
		ClientRepo:        NewMemoryClientRepository(),
		ClientHistoryRepo: NewMemoryClientHistoryRepository(),
		TaskRepo:          NewMemoryTaskRepository(),
	}
}

// ============================================
// Users
// ============================================

type memUserRepository struct {
	mu     sync.Mutex
	users  map[string]*User
	tokens map[string]*RefreshToken
}

func NewMemoryUserRepository() UserRepository {
	return &memUserRepository{
		users:  make(map[string]*User),
		tokens: make(map[string]*RefreshToken),
	}
}

func copyUser(u *User) *User {
	cp := *u
	return &cp
}

func (r *memUserRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := types.NormalizeEmail(user.Email)
	for _, u := range r.users {
		if types.NormalizeEmail(u.Email) == key {
			return ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = copyUser(user)
	return nil
}

func (r *memUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (r *memUserRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := types.NormalizeEmail(email)
	for _, u := range r.users {
		if types.NormalizeEmail(u.Email) == key {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memUserRepository) FindByIDs(_ context.Context, ids []string) (map[string]*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = copyUser(u)
		}
	}
	return out, nil
}

func (r *memUserRepository) FindAll(_ context.Context) ([]*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *memUserRepository) CountActiveAdmins(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeAdminsLocked(), nil
}

func (r *memUserRepository) activeAdminsLocked() int {
	n := 0
	for _, u := range r.users {
		if u.Role == types.RoleAdmin && u.IsActive {
			n++
		}
	}
	return n
}

func (r *memUserRepository) UpdatePassword(_ context.Context, id, passwordHash string, mustChange bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Password = passwordHash
	u.MustChangePassword = mustChange
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memUserRepository) ChangeAccess(_ context.Context, id string, change AccessChange) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	target := copyUser(stored)
	if err := change(target, r.activeAdminsLocked()); err != nil {
		return nil, err
	}
	stored.Role = target.Role
	stored.IsActive = target.IsActive
	stored.UpdatedAt = time.Now()
	return copyUser(stored), nil
}

func (r *memUserRepository) SaveRefreshToken(_ context.Context, token *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.ID = uuid.NewString()
	token.CreatedAt = time.Now()
	cp := *token
	r.tokens[token.Token] = &cp
	return nil
}

func (r *memUserRepository) FindRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *memUserRepository) DeleteRefreshToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *memUserRepository) DeleteUserRefreshTokens(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, rt := range r.tokens {
		if rt.UserID == userID {
			delete(r.tokens, k)
		}
	}
	return nil
}

func (r *memUserRepository) DeleteExpiredRefreshTokens(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, rt := range r.tokens {
		if rt.ExpiresAt.Before(now) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

// ============================================
// Clients
// ============================================

type memClientRepository struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func NewMemoryClientRepository() ClientRepository {
	return &memClientRepository{clients: make(map[string]*Client)}
}

func (r *memClientRepository) Create(_ context.Context, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := types.NormalizeEmail(c.Email)
	for _, existing := range r.clients {
		if types.NormalizeEmail(existing.Email) == key {
			return ErrConflict
		}
	}
	c.ID = uuid.NewString()
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.clients[c.ID] = c.Clone()
	return nil
}

func (r *memClientRepository) FindByID(_ context.Context, id string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (r *memClientRepository) List(_ context.Context, f ClientFilter) ([]*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	archived := false
	if f.IsArchived != nil {
		archived = *f.IsArchived
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var out []*Client
	for _, c := range r.clients {
		switch {
		case c.IsArchived != archived:
			continue
		case f.LifecycleStatus != nil && c.LifecycleStatus != *f.LifecycleStatus:
			continue
		case f.Weightage != nil && c.Weightage != *f.Weightage:
			continue
		case f.OwnerID != nil && c.OwnerID != *f.OwnerID:
			continue
		case search != "" && !matchesSearch(c, search):
			continue
		}
		out = append(out, c.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesSearch(c *Client, search string) bool {
	return strings.Contains(strings.ToLower(c.Name), search) ||
		strings.Contains(strings.ToLower(c.CompanyName), search) ||
		strings.Contains(strings.ToLower(c.Email), search)
}

func (r *memClientRepository) Update(_ context.Context, id string, mutate ClientMutation) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := stored.Clone()
	changed, err := mutate(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return stored.Clone(), nil
	}
	working.UpdatedAt = time.Now()
	r.clients[id] = working
	return working.Clone(), nil
}

// ============================================
// Client history
// ============================================

type memClientHistoryRepository struct {
	mu      sync.Mutex
	seq     int64
	entries []*ClientHistoryEntry
}

func NewMemoryClientHistoryRepository() ClientHistoryRepository {
	return &memClientHistoryRepository{}
}

func (r *memClientHistoryRepository) Append(_ context.Context, e *ClientHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e.Seq = r.seq
	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memClientHistoryRepository) ListByClient(_ context.Context, clientID string) ([]*ClientHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*ClientHistoryEntry
	for _, e := range r.entries {
		if e.ClientID == clientID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq > out[j].Seq
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ============================================
// Tasks
// ============================================

type memTaskRepository struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func NewMemoryTaskRepository() TaskRepository {
	return &memTaskRepository{tasks: make(map[string]*Task)}
}

func copyTask(t *Task) *Task {
	cp := *t
	return &cp
}

func (r *memTaskRepository) Create(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.ID = uuid.NewString()
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.tasks[t.ID] = copyTask(t)
	return nil
}

func (r *memTaskRepository) FindByID(_ context.Context, id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func (r *memTaskRepository) filter(keep func(*Task) bool) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Task
	for _, t := range r.tasks {
		if keep(t) {
			out = append(out, copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memTaskRepository) FindByAssignee(_ context.Context, assigneeID string) ([]*Task, error) {
	return r.filter(func(t *Task) bool {
		return t.AssigneeID != nil && *t.AssigneeID == assigneeID
	}), nil
}

func (r *memTaskRepository) FindByClient(_ context.Context, clientID string) ([]*Task, error) {
	return r.filter(func(t *Task) bool {
		return t.ClientID != nil && *t.ClientID == clientID
	}), nil
}

func (r *memTaskRepository) FindOverdue(_ context.Context, now time.Time) ([]*Task, error) {
	return r.filter(func(t *Task) bool {
		return t.Status != types.TaskDone && t.AssigneeID != nil && t.DueDate != nil && t.DueDate.Before(now)
	}), nil
}

func (r *memTaskRepository) Update(_ context.Context, id string, mutate TaskMutation) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := copyTask(stored)
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	r.tasks[id] = working
	return copyTask(working), nil
}
