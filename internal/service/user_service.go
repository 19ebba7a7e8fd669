package service

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/ora-ops-console/internal/config"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// ============================================
// User Service
// ============================================

type UserService interface {
	GetByID(ctx context.Context, actor Identity, id string) (*repository.User, error)
	Create(ctx context.Context, actor Identity, req CreateUserRequest) (*CreatedUser, error)
	List(ctx context.Context, actor Identity) ([]*repository.User, error)
	ListAssignableOwners(ctx context.Context, actor Identity) ([]*repository.User, error)
	// ChangeAccess updates role and/or active flag under the self-modify
	// and last-admin guards.
	ChangeAccess(ctx context.Context, actor Identity, targetID string, req AccessRequest) (*repository.User, error)
}

type CreateUserRequest struct {
	Name  string
	Email string
	Role  types.Role
}

// CreatedUser carries the temporary password only when it could not be mailed.
type CreatedUser struct {
	User              *repository.User
	TemporaryPassword string
	Emailed           bool
}

type userService struct {
	userRepo  repository.UserRepository
	ownership OwnershipRegistry
	identity  IdentityResolver
	mailer    Mailer
	events    EventPublisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	ownership OwnershipRegistry,
	identity IdentityResolver,
	mailer Mailer,
	events EventPublisher,
	cfg *config.Config,
	log *zap.Logger,
) UserService {
	return &userService{
		userRepo:  userRepo,
		ownership: ownership,
		identity:  identity,
		mailer:    mailer,
		events:    events,
		cfg:       cfg,
		log:       log,
	}
}

func requireAdmin(actor Identity) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return forbidden("insufficient permissions")
	}
	return nil
}

func (s *userService) GetByID(ctx context.Context, actor Identity, id string) (*repository.User, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if id != actor.UserID && !actor.IsAdmin() {
		return nil, forbidden("insufficient permissions")
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("user")
	}
	if err != nil {
		return nil, internal("find user", err)
	}
	return user, nil
}

func (s *userService) Create(ctx context.Context, actor Identity, req CreateUserRequest) (*CreatedUser, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" {
		return nil, invalid("name is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = types.RoleEmployee
	}
	if !types.IsValidRole(req.Role) {
		return nil, invalid("invalid role")
	}

	tempPassword := issueTemporaryPassword()
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, internal("hash password", err)
	}

	user := &repository.User{
		Email:              email,
		Name:               name,
		Password:           string(hash),
		Role:               req.Role,
		IsActive:           true,
		MustChangePassword: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflict("a user with this email already exists")
		}
		return nil, internal("create user", err)
	}

	out := &CreatedUser{User: user}
	if s.mailer != nil {
		if err := s.mailer.SendTemporaryPassword(user.Email, user.Name, tempPassword); err != nil {
			s.log.Warn("temporary password email failed", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			out.Emailed = true
		}
	}
	if !out.Emailed {
		out.TemporaryPassword = tempPassword
	}

	s.log.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("actor_id", actor.UserID),
	)
	return out, nil
}

// issueTemporaryPassword returns a random one-time credential.
func issueTemporaryPassword() string {
	return rand.Text()
}

func (s *userService) List(ctx context.Context, actor Identity) ([]*repository.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, internal("list users", err)
	}
	return users, nil
}

func (s *userService) ListAssignableOwners(ctx context.Context, actor Identity) ([]*repository.User, error) {
	users, err := s.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	out := make([]*repository.User, 0, len(users))
	for _, u := range users {
		if s.ownership.IsAssignableOwner(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *userService) ChangeAccess(ctx context.Context, actor Identity, targetID string, req AccessRequest) (*repository.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Role == nil && req.IsActive == nil {
		return nil, invalid("role or isActive is required")
	}
	if req.Role != nil && !types.IsValidRole(*req.Role) {
		return nil, invalid("invalid role")
	}

	var before Identity
	updated, err := s.userRepo.ChangeAccess(ctx, targetID, func(target *repository.User, activeAdmins int) error {
		current := Identity{UserID: target.ID, Role: target.Role, IsActive: target.IsActive}
		before = current
		if err := CanChangeRoleOrActivity(actor, current, req, activeAdmins); err != nil {
			return err
		}
		if req.Role != nil {
			target.Role = *req.Role
		}
		if req.IsActive != nil {
			target.IsActive = *req.IsActive
		}
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("user")
	case errors.Is(err, ErrForbidden):
		return nil, err
	case err != nil:
		return nil, internal("change user access", err)
	}

	s.identity.Invalidate(ctx, updated.ID)
	if before.Role != updated.Role || before.IsActive != updated.IsActive {
		// Open sockets joined rooms under the old access.
		s.events.UserAccessChanged(updated.ID)
	}
	if !updated.IsActive {
		if err := s.userRepo.DeleteUserRefreshTokens(ctx, updated.ID); err != nil {
			s.log.Error("revoke refresh tokens", zap.String("user_id", updated.ID), zap.Error(err))
		}
	}

	s.log.Info("user access changed",
		zap.String("user_id", updated.ID),
		zap.String("role", string(updated.Role)),
		zap.Bool("is_active", updated.IsActive),
		zap.String("actor_id", actor.UserID),
	)
	return updated, nil
}
