package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

func rolePtr(r types.Role) *types.Role { return &r }
func boolPtr(b bool) *bool { return &b }

func TestChangeAccessLastAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.addUser(t, "a1", types.RoleAdmin, true)
	a2 := env.addUser(t, "a2", types.RoleAdmin, true)

	// Two admins: demoting one succeeds and leaves exactly one.
	u, err := env.services.User.ChangeAccess(ctx, a1, a2.UserID, AccessRequest{Role: rolePtr(types.RoleEmployee)})
	require.NoError(t, err)
	assert.Equal(t, types.RoleEmployee, u.Role)

	n, err := env.repos.UserRepo.CountActiveAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a1 is now the last admin; promote a2 back, then a2 tries to remove a1.
	_, err = env.services.User.ChangeAccess(ctx, a1, a2.UserID, AccessRequest{Role: rolePtr(types.RoleAdmin)})
	require.NoError(t, err)
	a2.Role = types.RoleAdmin

	_, err = env.services.User.ChangeAccess(ctx, a2, a1.UserID, AccessRequest{IsActive: boolPtr(false)})
	require.NoError(t, err)

	_, err = env.services.User.ChangeAccess(ctx, a2, a2.UserID, AccessRequest{Role: rolePtr(types.RoleEmployee)})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "cannot modify own role/self-disable")
}

func TestChangeAccessDeniesLastAdminRemoval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.addUser(t, "a1", types.RoleAdmin, true)
	a2 := env.addUser(t, "a2", types.RoleAdmin, true)

	_, err := env.services.User.ChangeAccess(ctx, a1, a2.UserID, AccessRequest{IsActive: boolPtr(false)})
	require.NoError(t, err)

	// a2 still holds an identity resolved before deactivation; a1 is now
	// the only active admin and must stay that way.
	for _, req := range []AccessRequest{
		{Role: rolePtr(types.RoleEmployee)},
		{IsActive: boolPtr(false)},
	} {
		_, err := env.services.User.ChangeAccess(ctx, a2, a1.UserID, req)
		require.ErrorIs(t, err, ErrForbidden)
		assert.Contains(t, err.Error(), "cannot remove the last active admin")
	}

	u, err := env.repos.UserRepo.FindByID(ctx, a1.UserID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, u.Role)
	assert.True(t, u.IsActive)
}

func TestLastAdminGuardUnderRepository(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.addUser(t, "a1", types.RoleAdmin, true)
	_ = env.addUser(t, "a2", types.RoleAdmin, true)

	// Drive the guard directly against the store so the actor differs from
	// the last remaining admin.
	actor := Identity{UserID: "external", Role: types.RoleAdmin, IsActive: true}
	_, err := env.repos.UserRepo.ChangeAccess(ctx, a1.UserID, func(target *repository.User, admins int) error {
		return CanChangeRoleOrActivity(actor, Identity{UserID: target.ID, Role: target.Role, IsActive: target.IsActive},
			AccessRequest{IsActive: boolPtr(false)}, admins)
	})
	require.NoError(t, err)

	n, err := env.repos.UserRepo.CountActiveAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentDemotionsKeepOneAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.addUser(t, "a1", types.RoleAdmin, true)
	a2 := env.addUser(t, "a2", types.RoleAdmin, true)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	// Each admin demotes the other at the same time.
	for _, pair := range [][2]Identity{{a1, a2}, {a2, a1}} {
		wg.Add(1)
		go func(actor, target Identity) {
			defer wg.Done()
			_, err := env.services.User.ChangeAccess(ctx, actor, target.UserID, AccessRequest{Role: rolePtr(types.RoleEmployee)})
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrForbidden)
		}(pair[0], pair[1])
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	n, err := env.repos.UserRepo.CountActiveAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChangeAccessValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", types.RoleAdmin, true)
	staff := env.addUser(t, "staff", types.RoleEmployee, true)

	_, err := env.services.User.ChangeAccess(ctx, staff, admin.UserID, AccessRequest{IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.services.User.ChangeAccess(ctx, admin, staff.UserID, AccessRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.services.User.ChangeAccess(ctx, admin, staff.UserID, AccessRequest{Role: rolePtr("OWNER")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.services.User.ChangeAccess(ctx, admin, "missing", AccessRequest{IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeactivationRevokesSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", types.RoleAdmin, true)
	staff := env.addUser(t, "staff", types.RoleEmployee, true)

	// Warm the identity cache path and store a refresh token.
	_, err := env.services.Identity.Resolve(ctx, staff.UserID)
	require.NoError(t, err)
	require.NoError(t, env.repos.UserRepo.SaveRefreshToken(ctx, &repository.RefreshToken{Token: "rt", UserID: staff.UserID}))

	_, err = env.services.User.ChangeAccess(ctx, admin, staff.UserID, AccessRequest{IsActive: boolPtr(false)})
	require.NoError(t, err)

	_, err = env.services.Identity.Resolve(ctx, staff.UserID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = env.repos.UserRepo.FindRefreshToken(ctx, "rt")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateUserIssuesTemporaryPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", types.RoleAdmin, true)

	created, err := env.services.User.Create(ctx, admin, CreateUserRequest{Name: "Eve", Email: "eve@ops.test"})
	require.NoError(t, err)
	assert.True(t, created.Emailed)
	assert.Empty(t, created.TemporaryPassword)
	assert.Equal(t, types.RoleEmployee, created.User.Role)
	assert.True(t, created.User.MustChangePassword)

	sent := env.mailer.passwords["eve@ops.test"]
	require.NotEmpty(t, sent)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.User.Password), []byte(sent)))

	_, err = env.services.User.Create(ctx, admin, CreateUserRequest{Name: "Eve", Email: "EVE@ops.test"})
	assert.ErrorIs(t, err, ErrConflict)

	env.mailer.fail = true
	created, err = env.services.User.Create(ctx, admin, CreateUserRequest{Name: "Mal", Email: "mal@ops.test", Role: types.RoleAdmin})
	require.NoError(t, err)
	assert.False(t, created.Emailed)
	assert.NotEmpty(t, created.TemporaryPassword)
}

func TestListAssignableOwners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", types.RoleAdmin, true)
	env.addUser(t, "active", types.RoleEmployee, true)
	env.addUser(t, "inactive", types.RoleEmployee, false)

	owners, err := env.services.User.ListAssignableOwners(ctx, admin)
	require.NoError(t, err)

	var names []string
	for _, u := range owners {
		names = append(names, u.Name)
	}
	assert.ElementsMatch(t, []string{"admin", "active"}, names)
}

func TestChangeAccessClosesRealtimeSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a1 := env.addUser(t, "a1", types.RoleAdmin, true)
	a2 := env.addUser(t, "a2", types.RoleAdmin, true)
	staff := env.addUser(t, "staff", types.RoleEmployee, true)

	_, err := env.services.User.ChangeAccess(ctx, a1, a2.UserID, AccessRequest{Role: rolePtr(types.RoleEmployee)})
	require.NoError(t, err)
	assert.Contains(t, env.events.names(), "access_changed:"+a2.UserID)

	_, err = env.services.User.ChangeAccess(ctx, a1, staff.UserID, AccessRequest{IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.Contains(t, env.events.names(), "access_changed:"+staff.UserID)

	// Re-sending the current values changes nothing and keeps sockets open.
	before := len(env.events.names())
	_, err = env.services.User.ChangeAccess(ctx, a1, a2.UserID, AccessRequest{Role: rolePtr(types.RoleEmployee)})
	require.NoError(t, err)
	assert.Len(t, env.events.names(), before)
}
