package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/session-api/api/swagger"
	"github.com/noah-isme/session-api/internal/handler"
	"github.com/noah-isme/session-api/internal/middleware"
	"github.com/noah-isme/session-api/internal/repository"
	"github.com/noah-isme/session-api/internal/service"
	"github.com/noah-isme/session-api/pkg/cache"
	"github.com/noah-isme/session-api/pkg/config"
	"github.com/noah-isme/session-api/pkg/database"
	"github.com/noah-isme/session-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/session-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/session-api/pkg/middleware/requestid"
)

// @title Session API
// @version 0.1.0
// @description Session and refresh-token lifecycle service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionRepo := repository.NewSessionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	auditSink := service.NewQueueAuditSink(auditRepo, logr, cfg.Audit, metricsSvc)
	auditSink.Start(ctx)
	defer auditSink.Stop()

	sessionSvc := service.NewSessionService(sessionRepo, cacheRepo, auditSink, nil, logr, metricsSvc, cfg.Session)
	cleanupSvc := service.NewCleanupService(sessionRepo, auditSink, logr, metricsSvc, cfg.Cleanup)
	cleanupSvc.Start(ctx)

	sessionHandler := handler.NewSessionHandler(sessionSvc, logr)
	maintenanceHandler := handler.NewMaintenanceHandler(cleanupSvc, auditRepo, cfg.Cleanup)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		sessions := api.Group("/sessions")
		{
			// Issued and validated by trusted services only.
			sessions.POST("", middleware.RequireAdmin(cfg.Admin.Token), sessionHandler.Create)
			sessions.GET("/validate", middleware.RequireAdmin(cfg.Admin.Token), sessionHandler.Validate)

			// Client-facing lifecycle.
			sessions.POST("/rotate", sessionHandler.Rotate)
			sessions.GET("", middleware.RequireSession(sessionSvc), sessionHandler.ListActive)
			sessions.DELETE("", middleware.RequireSession(sessionSvc), sessionHandler.Revoke)
			sessions.DELETE("/all", middleware.RequireSession(sessionSvc), sessionHandler.RevokeAll)
		}
	}

	internal := r.Group("/internal", middleware.RequireAdmin(cfg.Admin.Token))
	{
		internal.POST("/cleanup", maintenanceHandler.Cleanup)
		internal.GET("/sessions/:session_id/events", maintenanceHandler.AuditTrail)
		internal.DELETE("/users/:user_id/sessions", sessionHandler.AdminRevokeAll)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "lifecycle", sessionSvc.String())

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
