package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/config"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// Error taxonomy. Reasons are attached with fmt.Errorf("%w: reason", ErrX)
// so callers classify with errors.Is and still see the message.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrInternal        = errors.New("internal error")

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
)

// Identity is the resolved caller passed explicitly into every core call.
type Identity struct {
	UserID   string     `json:"userId"`
	Role     types.Role `json:"role"`
	IsActive bool       `json:"isActive"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == types.RoleAdmin
}

func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}

// ============================================
// Services Container
// ============================================

type Services struct {
	Auth      AuthService
	Identity  IdentityResolver
	User      UserService
	Client    ClientService
	Task      TaskService
	Ownership OwnershipRegistry
	History   HistoryLedger
}

// ServiceDeps contains all dependencies needed to create services
type ServiceDeps struct {
	Config        *config.Config
	Repos         *repository.Repositories
	IdentityCache IdentityCache
	Mailer        Mailer
	Events        EventPublisher
	Logger        *zap.Logger
}

func NewServices(deps *ServiceDeps) *Services {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NopEventPublisher{}
	}
	cache := deps.IdentityCache
	if cache == nil {
		cache = NopIdentityCache{}
	}

	ownership := NewOwnershipRegistry(deps.Repos.UserRepo)
	history := NewHistoryLedger(deps.Repos.ClientHistoryRepo, log)
	identity := NewIdentityResolver(deps.Repos.UserRepo, cache, deps.Config.IdentityCacheTTL, log)

	return &Services{
		Auth:      NewAuthService(deps.Config, deps.Repos.UserRepo, identity),
		Identity:  identity,
		User:      NewUserService(deps.Repos.UserRepo, ownership, identity, deps.Mailer, events, deps.Config, log),
		Client:    NewClientService(deps.Repos.ClientRepo, ownership, history, events, log),
		Task:      NewTaskService(deps.Repos.TaskRepo, deps.Repos.ClientRepo, ownership, events, log),
		Ownership: ownership,
		History:   history,
	}
}
