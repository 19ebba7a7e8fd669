package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/models"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
)

const identityKey = "identity"

// AuthMiddleware validates the bearer token and resolves it into the
// caller identity. Unknown or deactivated users are rejected here.
func AuthMiddleware(authService service.AuthService, resolver service.IdentityResolver, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		userID, err := authService.ValidateToken(parts[1])
		if err != nil {
			log.Debug("invalid token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), userID)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				log.Error("identity resolution failed", zap.String("user_id", userID), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
					Error: models.ErrorDetail{Code: "INTERNAL_ERROR", Message: "internal server error"},
				})
				return
			}
			abortUnauthorized(c, "User not found or deactivated")
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: models.ErrorDetail{Code: "UNAUTHORIZED", Message: message},
	})
}

// SetIdentity stores an already resolved identity on the context.
func SetIdentity(c *gin.Context, identity service.Identity) {
	c.Set(identityKey, identity)
}

// GetIdentity returns the caller identity set by AuthMiddleware, or the
// zero Identity when the route is unauthenticated.
func GetIdentity(c *gin.Context) service.Identity {
	v, exists := c.Get(identityKey)
	if !exists {
		return service.Identity{}
	}
	identity, _ := v.(service.Identity)
	return identity
}
