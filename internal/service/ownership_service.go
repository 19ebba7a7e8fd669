package service

import (
	"context"
	"errors"

	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// ============================================
// Ownership Registry
// ============================================

// OwnershipRegistry validates users referenced as client owners or task assignees.
type OwnershipRegistry interface {
	// Resolve returns ErrNotFound wrapped with what when the user does not exist.
	Resolve(ctx context.Context, userID, what string) (*repository.User, error)
	ResolveMany(ctx context.Context, userIDs []string) (map[string]*repository.User, error)
	IsAssignableOwner(user *repository.User) bool
	IsAssignableTaskAssignee(user *repository.User) bool
}

type ownershipRegistry struct {
	userRepo repository.UserRepository
}

func NewOwnershipRegistry(userRepo repository.UserRepository) OwnershipRegistry {
	return &ownershipRegistry{userRepo: userRepo}
}

func (r *ownershipRegistry) Resolve(ctx context.Context, userID, what string) (*repository.User, error) {
	if userID == "" {
		return nil, notFound(what)
	}
	user, err := r.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(what)
	}
	if err != nil {
		return nil, internal("resolve user", err)
	}
	return user, nil
}

func (r *ownershipRegistry) ResolveMany(ctx context.Context, userIDs []string) (map[string]*repository.User, error) {
	users, err := r.userRepo.FindByIDs(ctx, dedupe(userIDs))
	if err != nil {
		return nil, internal("resolve users", err)
	}
	return users, nil
}

func (r *ownershipRegistry) IsAssignableOwner(user *repository.User) bool {
	return user != nil && user.IsActive &&
		(user.Role == types.RoleAdmin || user.Role == types.RoleEmployee)
}

// IsAssignableTaskAssignee is stricter than client ownership: only active employees.
func (r *ownershipRegistry) IsAssignableTaskAssignee(user *repository.User) bool {
	return user != nil && user.IsActive && user.Role == types.RoleEmployee
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
