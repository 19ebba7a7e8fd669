package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

func addUserWithPassword(t *testing.T, env *testEnv, email, password string, active bool) *repository.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &repository.User{Email: email, Name: email, Password: string(hash), Role: types.RoleEmployee, IsActive: active}
	require.NoError(t, env.repos.UserRepo.Create(context.Background(), u))
	return u
}

func TestLoginAndTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := addUserWithPassword(t, env, "kim@ops.test", "correct horse", true)

	_, _, _, err := env.services.Auth.Login(ctx, "kim@ops.test", "wrong")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, _, _, err = env.services.Auth.Login(ctx, "nobody@ops.test", "correct horse")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	user, access, refresh, err := env.services.Auth.Login(ctx, "KIM@ops.test", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)

	sub, err := env.services.Auth.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sub)

	_, err = env.services.Auth.ValidateToken(access + "x")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	newAccess, newRefresh, err := env.services.Auth.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEqual(t, refresh, newRefresh)

	// Refresh tokens rotate.
	_, _, err = env.services.Auth.RefreshToken(ctx, refresh)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, env.services.Auth.Logout(ctx, newRefresh))
	_, _, err = env.services.Auth.RefreshToken(ctx, newRefresh)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	env := newTestEnv(t)
	addUserWithPassword(t, env, "gone@ops.test", "password123", false)

	_, _, _, err := env.services.Auth.Login(context.Background(), "gone@ops.test", "password123")
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Contains(t, err.Error(), "deactivated")
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := addUserWithPassword(t, env, "pat@ops.test", "temporary1", true)
	actor := Identity{UserID: u.ID, Role: u.Role, IsActive: true}

	err := env.services.Auth.ChangePassword(ctx, actor, "temporary1", "short")
	assert.ErrorIs(t, err, ErrValidation)

	err = env.services.Auth.ChangePassword(ctx, actor, "wrong-one", "a-longer-password")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, env.services.Auth.ChangePassword(ctx, actor, "temporary1", "a-longer-password"))

	_, _, _, err = env.services.Auth.Login(ctx, "pat@ops.test", "a-longer-password")
	assert.NoError(t, err)
}

func TestIdentityResolver(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", types.RoleAdmin, true)
	env.addUser(t, "off", types.RoleEmployee, false)

	id, err := env.services.Identity.Resolve(ctx, admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, admin, id)

	_, err = env.services.Identity.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = env.services.Identity.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	users, err := env.repos.UserRepo.FindAll(ctx)
	require.NoError(t, err)
	for _, u := range users {
		if !u.IsActive {
			_, err = env.services.Identity.Resolve(ctx, u.ID)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		}
	}
}
