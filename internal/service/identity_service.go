package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/db"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
)

// ============================================
// Identity Cache
// ============================================

// IdentityCache holds recently resolved identities. Misses and errors
// fall through to the user store.
type IdentityCache interface {
	Get(ctx context.Context, userID string) (*Identity, bool)
	// Version returns the user's eviction counter. ok is false when it
	// cannot be read, and the caller must not cache.
	Version(ctx context.Context, userID string) (version int64, ok bool)
	// SetIfVersion stores identity unless the user was evicted after
	// version was read.
	SetIfVersion(ctx context.Context, identity Identity, version int64, ttl time.Duration)
	Evict(ctx context.Context, userID string)
}

type NopIdentityCache struct{}

func (NopIdentityCache) Get(context.Context, string) (*Identity, bool) { return nil, false }
func (NopIdentityCache) Version(context.Context, string) (int64, bool) { return 0, false }
func (NopIdentityCache) SetIfVersion(context.Context, Identity, int64, time.Duration) {}
func (NopIdentityCache) Evict(context.Context, string) {}

// identityVersionTTL outlives any identity entry so a stale writer always
// sees the bumped counter.
const identityVersionTTL = 24 * time.Hour

type redisIdentityCache struct {
	rdb *db.RedisDB
	log *zap.Logger
}

func NewRedisIdentityCache(rdb *db.RedisDB, log *zap.Logger) IdentityCache {
	return &redisIdentityCache{rdb: rdb, log: log}
}

func identityKey(userID string) string {
	return "identity:" + userID
}

func identityVersionKey(userID string) string {
	return "identity-version:" + userID
}

func (c *redisIdentityCache) Get(ctx context.Context, userID string) (*Identity, bool) {
	var identity Identity
	err := c.rdb.GetCache(ctx, identityKey(userID), &identity)
	if err != nil {
		if !errors.Is(err, db.ErrCacheMiss) {
			c.log.Warn("identity cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, false
	}
	return &identity, true
}

func (c *redisIdentityCache) Version(ctx context.Context, userID string) (int64, bool) {
	v, err := c.rdb.CacheVersion(ctx, identityVersionKey(userID))
	if err != nil {
		c.log.Warn("identity cache version read failed", zap.String("user_id", userID), zap.Error(err))
		return 0, false
	}
	return v, true
}

func (c *redisIdentityCache) SetIfVersion(ctx context.Context, identity Identity, version int64, ttl time.Duration) {
	stored, err := c.rdb.SetCacheIfVersion(ctx,
		identityKey(identity.UserID), identityVersionKey(identity.UserID), version, identity, ttl)
	if err != nil {
		c.log.Warn("identity cache write failed", zap.String("user_id", identity.UserID), zap.Error(err))
		return
	}
	if !stored {
		c.log.Debug("identity changed while resolving, not cached", zap.String("user_id", identity.UserID))
	}
}

func (c *redisIdentityCache) Evict(ctx context.Context, userID string) {
	if err := c.rdb.BumpCacheVersion(ctx, identityKey(userID), identityVersionKey(userID), identityVersionTTL); err != nil {
		c.log.Warn("identity cache evict failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// ============================================
// Identity Resolver
// ============================================

// IdentityResolver turns a verified user id into the caller identity.
type IdentityResolver interface {
	// Resolve fails with ErrUnauthenticated for unknown or inactive users.
	Resolve(ctx context.Context, userID string) (Identity, error)
	Invalidate(ctx context.Context, userID string)
}

type identityResolver struct {
	userRepo repository.UserRepository
	cache    IdentityCache
	ttl      time.Duration
	log      *zap.Logger
}

func NewIdentityResolver(userRepo repository.UserRepository, cache IdentityCache, ttl time.Duration, log *zap.Logger) IdentityResolver {
	return &identityResolver{userRepo: userRepo, cache: cache, ttl: ttl, log: log}
}

func (r *identityResolver) Resolve(ctx context.Context, userID string) (Identity, error) {
	if userID == "" {
		return Identity{}, ErrUnauthenticated
	}
	if cached, ok := r.cache.Get(ctx, userID); ok && cached.IsActive {
		return *cached, nil
	}

	// The version is read before the user row so an eviction racing this
	// lookup keeps the stale row out of the cache.
	var (
		version   int64
		cacheable bool
	)
	if r.ttl > 0 {
		version, cacheable = r.cache.Version(ctx, userID)
	}

	user, err := r.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return Identity{}, internal("resolve identity", err)
	}
	if !user.IsActive {
		return Identity{}, ErrUnauthenticated
	}

	identity := Identity{UserID: user.ID, Role: user.Role, IsActive: user.IsActive}
	if cacheable {
		r.cache.SetIfVersion(ctx, identity, version, r.ttl)
	}
	return identity, nil
}

func (r *identityResolver) Invalidate(ctx context.Context, userID string) {
	r.cache.Evict(ctx, userID)
}
