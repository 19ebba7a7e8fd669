package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/db"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// setupPostgres starts a disposable PostgreSQL container and applies the
// embedded migrations. Set TEST_INTEGRATION to run it.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("ops_test"),
		postgres.WithUsername("ops"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(dsn, zap.NewNop()))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type repoFactory func(t *testing.T) *Repositories

var backends = map[string]repoFactory{
	"memory": func(*testing.T) *Repositories { return NewMemoryRepositories() },
	"postgres": func(t *testing.T) *Repositories {
		return NewRepositories(setupPostgres(t))
	},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, repos *Repositories)) {
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func mustUser(t *testing.T, repos *Repositories, email string, role types.Role) *User {
	t.Helper()
	u := &User{Email: email, Name: email, Password: "x", Role: role, IsActive: true}
	require.NoError(t, repos.UserRepo.Create(context.Background(), u))
	return u
}

func mustClient(t *testing.T, repos *Repositories, email, ownerID string) *Client {
	t.Helper()
	c := &Client{
		Email:             email,
		Name:              "Acme",
		CompanyName:       "Acme Co",
		LifecycleStatus:   types.LifecycleLead,
		Weightage:         types.WeightageRegular,
		RelationshipLevel: types.RelationshipWeak,
		Source:            types.SourceOther,
		OwnerID:           ownerID,
	}
	require.NoError(t, repos.ClientRepo.Create(context.Background(), c))
	return c
}

func TestEmailUniqueness(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		owner := mustUser(t, repos, "owner@ops.test", types.RoleEmployee)

		err := repos.UserRepo.Create(ctx, &User{Email: "OWNER@ops.test", Name: "dup", Password: "x", Role: types.RoleEmployee})
		assert.ErrorIs(t, err, ErrConflict)

		found, err := repos.UserRepo.FindByEmail(ctx, "Owner@Ops.Test")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, found.ID)

		mustClient(t, repos, "a@acme.com", owner.ID)
		err = repos.ClientRepo.Create(ctx, &Client{
			Email: "A@ACME.com", Name: "Dup", CompanyName: "Dup",
			LifecycleStatus: types.LifecycleLead, Weightage: types.WeightageRegular,
			RelationshipLevel: types.RelationshipWeak, Source: types.SourceOther, OwnerID: owner.ID,
		})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestClientUpdateAndList(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		owner := mustUser(t, repos, "owner@ops.test", types.RoleEmployee)
		c := mustClient(t, repos, "a@acme.com", owner.ID)
		mustClient(t, repos, "b@globex.com", owner.ID)

		// A mutation reporting no change leaves the row untouched.
		same, err := repos.ClientRepo.Update(ctx, c.ID, func(*Client) (bool, error) { return false, nil })
		require.NoError(t, err)
		assert.Equal(t, c.UpdatedAt.Unix(), same.UpdatedAt.Unix())

		value := decimal.NewNullDecimal(decimal.RequireFromString("1250.50"))
		updated, err := repos.ClientRepo.Update(ctx, c.ID, func(cur *Client) (bool, error) {
			cur.LifecycleStatus = types.LifecycleActive
			cur.ExpectedValue = value
			cur.IsArchived = true
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, types.LifecycleActive, updated.LifecycleStatus)
		assert.True(t, updated.ExpectedValue.Decimal.Equal(value.Decimal))

		active, err := repos.ClientRepo.List(ctx, ClientFilter{})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "b@globex.com", active[0].Email)

		archived := true
		list, err := repos.ClientRepo.List(ctx, ClientFilter{IsArchived: &archived, Search: "ACME"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, c.ID, list[0].ID)

		_, err = repos.ClientRepo.Update(ctx, "00000000-0000-0000-0000-000000000000",
			func(*Client) (bool, error) { return true, nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConcurrentClientUpdatesSerialize(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		owner := mustUser(t, repos, "owner@ops.test", types.RoleEmployee)
		c := mustClient(t, repos, "a@acme.com", owner.ID)

		const writers = 8
		var wg sync.WaitGroup
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repos.ClientRepo.Update(ctx, c.ID, func(cur *Client) (bool, error) {
					score := 1
					if cur.LeadScore != nil {
						score = *cur.LeadScore + 1
					}
					cur.LeadScore = &score
					return true, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := repos.ClientRepo.FindByID(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LeadScore)
		assert.Equal(t, writers, *got.LeadScore)
	})
}

func TestHistoryNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		owner := mustUser(t, repos, "owner@ops.test", types.RoleEmployee)
		c := mustClient(t, repos, "a@acme.com", owner.ID)

		for _, action := range []types.HistoryAction{types.HistoryCreated, types.HistoryStatusChanged, types.HistoryArchived} {
			require.NoError(t, repos.ClientHistoryRepo.Append(ctx, &ClientHistoryEntry{
				ClientID: c.ID, ActorID: owner.ID, ActionType: action, Description: string(action),
			}))
		}

		entries, err := repos.ClientHistoryRepo.ListByClient(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, types.HistoryArchived, entries[0].ActionType)
		assert.Equal(t, types.HistoryCreated, entries[2].ActionType)
		assert.Greater(t, entries[0].Seq, entries[2].Seq)
	})
}

func TestChangeAccessCountsActiveAdmins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		a1 := mustUser(t, repos, "a1@ops.test", types.RoleAdmin)
		a2 := mustUser(t, repos, "a2@ops.test", types.RoleAdmin)

		// Two admins demote each other concurrently; the guard sees a
		// serialized count so only one demotion goes through.
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			demoted  int
			rejected int
		)
		for _, id := range []string{a1.ID, a2.ID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := repos.UserRepo.ChangeAccess(ctx, id, func(target *User, admins int) error {
					if admins <= 1 {
						return ErrConflict
					}
					target.Role = types.RoleEmployee
					return nil
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					demoted++
				} else {
					assert.ErrorIs(t, err, ErrConflict)
					rejected++
				}
			}(id)
		}
		wg.Wait()

		assert.Equal(t, 1, demoted)
		assert.Equal(t, 1, rejected)
		n, err := repos.UserRepo.CountActiveAdmins(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = repos.UserRepo.ChangeAccess(ctx, "00000000-0000-0000-0000-000000000000",
			func(*User, int) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRefreshTokenLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		u := mustUser(t, repos, "kim@ops.test", types.RoleEmployee)

		require.NoError(t, repos.UserRepo.SaveRefreshToken(ctx, &RefreshToken{
			Token: "live", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour),
		}))
		require.NoError(t, repos.UserRepo.SaveRefreshToken(ctx, &RefreshToken{
			Token: "stale", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Hour),
		}))

		n, err := repos.UserRepo.DeleteExpiredRefreshTokens(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		tok, err := repos.UserRepo.FindRefreshToken(ctx, "live")
		require.NoError(t, err)
		assert.Equal(t, u.ID, tok.UserID)

		require.NoError(t, repos.UserRepo.DeleteUserRefreshTokens(ctx, u.ID))
		_, err = repos.UserRepo.FindRefreshToken(ctx, "live")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
