package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/api"
	"github.com/Marga-Ghale/ora-ops-console/internal/api/handlers"
	"github.com/Marga-Ghale/ora-ops-console/internal/config"
	"github.com/Marga-Ghale/ora-ops-console/internal/cron"
	"github.com/Marga-Ghale/ora-ops-console/internal/db"
	"github.com/Marga-Ghale/ora-ops-console/internal/email"
	"github.com/Marga-Ghale/ora-ops-console/internal/logger"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/seed"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
	"github.com/Marga-Ghale/ora-ops-console/internal/socket"
)

func main() {
	// ============================================
	// Load environment and configuration
	// ============================================
	envErr := godotenv.Load()
	cfg := config.Load()

	zlog, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if envErr != nil {
		zlog.Debug("no .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		zlog.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ============================================
	// Database: migrations first, then the pool
	// ============================================
	if err := db.RunMigrations(cfg.DatabaseURL, zlog); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}

	pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	repos := repository.NewRepositories(pg.Pool)

	// ============================================
	// Redis identity cache (optional)
	// ============================================
	var (
		identityCache service.IdentityCache
		cachePinger   handlers.Pinger
	)
	if cfg.RedisURL != "" {
		redisDB, err := db.NewRedisDB(ctx, cfg.RedisURL, zlog)
		if err != nil {
			zlog.Warn("redis unavailable, continuing without identity cache", zap.Error(err))
		} else {
			defer redisDB.Close()
			identityCache = service.NewRedisIdentityCache(redisDB, zlog)
			cachePinger = redisDB
		}
	}

	// ============================================
	// Email (optional)
	// ============================================
	var (
		mailer    service.Mailer
		reminders cron.ReminderSender
	)
	if cfg.SMTPHost != "" {
		emailSvc := email.NewService(&email.Config{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			User:        cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			From:        cfg.SMTPFrom,
			FromName:    cfg.SMTPFromName,
			UseTLS:      cfg.SMTPUseTLS,
			FrontendURL: cfg.FrontendURL,
		}, zlog)
		mailer = emailSvc
		reminders = emailSvc
		zlog.Info("email service initialized", zap.String("host", cfg.SMTPHost))
	} else {
		zlog.Warn("email not configured (SMTP_HOST not set); temporary passwords are returned to the admin")
	}

	// ============================================
	// WebSocket hub
	// ============================================
	hub := socket.NewHub(zlog)
	go hub.Run(ctx)

	// ============================================
	// Services
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Config:        cfg,
		Repos:         repos,
		IdentityCache: identityCache,
		Mailer:        mailer,
		Events:        socket.NewBroadcaster(hub),
		Logger:        zlog,
	})

	// ============================================
	// Seed (non-production only)
	// ============================================
	if !cfg.IsProduction() {
		admin, err := seed.EnsureAdmin(ctx, repos.UserRepo, cfg.SeedAdminEmail, cfg.SeedAdminPassword, zlog)
		if err != nil {
			zlog.Fatal("seeding admin failed", zap.Error(err))
		}
		if admin != nil {
			actor := service.Identity{UserID: admin.ID, Role: admin.Role, IsActive: admin.IsActive}
			if err := seed.DemoData(ctx, repos, services, actor, zlog); err != nil {
				zlog.Warn("seeding demo data failed", zap.Error(err))
			}
		}
	}

	// ============================================
	// Cron
	// ============================================
	scheduler := cron.NewScheduler(repos.UserRepo, services.Task, services.Ownership, reminders, zlog)
	if err := scheduler.Start(); err != nil {
		zlog.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	// ============================================
	// HTTP server
	// ============================================
	wsHandler := socket.NewHandler(hub, services.Auth, services.Identity, cfg.CORSOrigins, zlog)
	router := api.NewRouter(api.RouterDeps{
		Services:    services,
		Health:      handlers.NewHealthHandler(pg, cachePinger, hub.GetConnectedClientsCount, mailer != nil),
		WebSocket:   wsHandler.HandleWebSocket,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      zlog,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}
	zlog.Info("server exited")
}
