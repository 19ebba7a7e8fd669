// Package api wires the HTTP surface of the console.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/api/handlers"
	"github.com/Marga-Ghale/ora-ops-console/internal/api/middleware"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
)

// RouterDeps is everything the router needs.
type RouterDeps struct {
	Services    *service.Services
	Health      *handlers.HealthHandler
	WebSocket   gin.HandlerFunc // nil disables /api/ws
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	h := handlers.NewHandlers(deps.Services, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.RequestLogger(log))
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	if deps.Health != nil {
		r.GET("/health", deps.Health.Health)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// ============================================
		// Public routes (no auth required)
		// ============================================
		auth := api.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.POST("/logout", h.Auth.Logout)
		}

		// The socket authenticates from the query string itself.
		if deps.WebSocket != nil {
			api.GET("/ws", deps.WebSocket)
		}

		// ============================================
		// Protected routes
		// ============================================
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(deps.Services.Auth, deps.Services.Identity, log))
		{
			protected.POST("/auth/change-password", h.Auth.ChangePassword)

			users := protected.Group("/users")
			{
				users.GET("/me", h.User.GetCurrentUser)
				users.GET("", h.User.List)
				users.POST("", h.User.Create)
				users.GET("/assignable-owners", h.User.ListAssignableOwners)
				users.PATCH("/:id/access", h.User.ChangeAccess)
			}

			clients := protected.Group("/clients")
			{
				clients.GET("", h.Client.List)
				clients.POST("", h.Client.Create)
				clients.GET("/:id", h.Client.Get)
				clients.PATCH("/:id", h.Client.Update)
				clients.PATCH("/:id/archive", h.Client.SetArchived)
				clients.GET("/:id/history", h.Client.History)
				clients.GET("/:id/tasks", h.Client.Tasks)
			}

			tasks := protected.Group("/tasks")
			{
				tasks.POST("", h.Task.Create)
				tasks.GET("/my", h.Task.ListMine)
				tasks.GET("/:id", h.Task.Get)
				tasks.PATCH("/:id/assign", h.Task.Assign)
				tasks.PATCH("/:id/status", h.Task.UpdateStatus)
			}
		}
	}

	return r
}
