package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// EnsureAdmin guarantees at least one active admin exists so the console
// can be administered. An existing account with the seed email is
// promoted and reactivated instead of duplicated.
func EnsureAdmin(ctx context.Context, users repository.UserRepository, email, password string, log *zap.Logger) (*repository.User, error) {
	n, err := users.CountActiveAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil, nil
	}

	existing, err := users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		promoted, err := users.ChangeAccess(ctx, existing.ID, func(target *repository.User, _ int) error {
			target.Role = types.RoleAdmin
			target.IsActive = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("promote seed admin: %w", err)
		}
		log.Info("seed admin promoted", zap.String("email", email))
		return promoted, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find seed admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	admin := &repository.User{
		Email:              email,
		Password:           string(hash),
		Name:               "Console Admin",
		Role:               types.RoleAdmin,
		IsActive:           true,
		MustChangePassword: true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("create seed admin: %w", err)
	}
	log.Info("seed admin created", zap.String("email", email))
	return admin, nil
}

// DemoData creates an employee with a few clients when the client book is
// empty. Everything goes through the services so history is recorded.
func DemoData(ctx context.Context, repos *repository.Repositories, services *service.Services, admin service.Identity, log *zap.Logger) error {
	existing, err := repos.ClientRepo.List(ctx, repository.ClientFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("list clients: %w", err)
	}
	if len(existing) > 0 {
		log.Debug("demo data already present, skipping")
		return nil
	}

	created, err := services.User.Create(ctx, admin, service.CreateUserRequest{
		Name:  "Demo Employee",
		Email: "employee@ora-console.com",
		Role:  types.RoleEmployee,
	})
	if err != nil && !errors.Is(err, service.ErrConflict) {
		return fmt.Errorf("create demo employee: %w", err)
	}
	ownerID := admin.UserID
	if created != nil {
		ownerID = created.User.ID
		if created.TemporaryPassword != "" {
			log.Info("demo employee created",
				zap.String("email", created.User.Email),
				zap.String("temporary_password", created.TemporaryPassword),
			)
		}
	}

	clients := []service.CreateClientRequest{
		{Name: "Jane Cooper", CompanyName: "Acme Co", Email: "jane@acme.example", OwnerID: ownerID},
		{Name: "Wade Warren", CompanyName: "Globex", Email: "wade@globex.example", OwnerID: ownerID,
			LifecycleStatus: types.LifecycleActive, Weightage: types.WeightageVIP, Source: types.SourceReferral},
		{Name: "Esther Howard", CompanyName: "Initech", Email: "esther@initech.example", OwnerID: admin.UserID,
			IsHighRisk: true},
	}
	for i := range clients {
		if _, err := services.Client.Create(ctx, admin, &clients[i]); err != nil {
			return fmt.Errorf("create demo client %s: %w", clients[i].Email, err)
		}
	}

	log.Info("demo data seeded", zap.Int("clients", len(clients)))
	return nil
}
