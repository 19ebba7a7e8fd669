package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/ora-ops-console/internal/config"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
)

const minPasswordLength = 8

// ============================================
// Auth Service
// ============================================

type AuthService interface {
	Login(ctx context.Context, email, password string) (*repository.User, string, string, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context, refreshToken string) error
	// ValidateToken verifies an access token and returns its subject.
	ValidateToken(token string) (string, error)
	ChangePassword(ctx context.Context, actor Identity, currentPassword, newPassword string) error
}

type authService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	identity IdentityResolver
}

func NewAuthService(cfg *config.Config, userRepo repository.UserRepository, identity IdentityResolver) AuthService {
	return &authService{cfg: cfg, userRepo: userRepo, identity: identity}
}

func (s *authService) Login(ctx context.Context, email, password string) (*repository.User, string, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", "", internal("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", "", fmt.Errorf("%w: account is deactivated", ErrUnauthenticated)
	}

	accessToken, refreshToken, err := s.generateTokens(ctx, user.ID)
	if err != nil {
		return nil, "", "", internal("generate tokens", err)
	}

	return user, accessToken, refreshToken, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	rt, err := s.userRepo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	// Refresh tokens are single use.
	if err := s.userRepo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return "", "", internal("rotate refresh token", err)
	}
	if time.Now().After(rt.ExpiresAt) {
		return "", "", ErrInvalidToken
	}

	if _, err := s.identity.Resolve(ctx, rt.UserID); err != nil {
		return "", "", err
	}

	accessToken, newRefreshToken, err := s.generateTokens(ctx, rt.UserID)
	if err != nil {
		return "", "", internal("generate tokens", err)
	}

	return accessToken, newRefreshToken, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.userRepo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return internal("logout", err)
	}
	return nil
}

func (s *authService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	userID, err := token.Claims.GetSubject()
	if err != nil || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

func (s *authService) ChangePassword(ctx context.Context, actor Identity, currentPassword, newPassword string) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if len(newPassword) < minPasswordLength {
		return invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user, err := s.userRepo.FindByID(ctx, actor.UserID)
	if err != nil {
		return ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return internal("hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash), false); err != nil {
		return internal("update password", err)
	}
	return nil
}

func (s *authService) generateTokens(ctx context.Context, userID string) (string, string, error) {
	now := time.Now()
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour * time.Duration(s.cfg.JWTExpiry))),
		IssuedAt:  jwt.NewNumericDate(now),
	})

	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", "", err
	}

	rt := &repository.RefreshToken{
		Token:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: now.Add(time.Hour * 24 * time.Duration(s.cfg.RefreshExpiry)),
	}
	if err := s.userRepo.SaveRefreshToken(ctx, rt); err != nil {
		return "", "", err
	}

	return accessTokenString, rt.Token, nil
}
