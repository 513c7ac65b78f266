package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schoolops/staff-leave-api/api/swagger"
	"github.com/schoolops/staff-leave-api/internal/handler"
	"github.com/schoolops/staff-leave-api/internal/middleware"
	"github.com/schoolops/staff-leave-api/internal/models"
	"github.com/schoolops/staff-leave-api/internal/notify"
	"github.com/schoolops/staff-leave-api/internal/repository"
	"github.com/schoolops/staff-leave-api/internal/service"
	"github.com/schoolops/staff-leave-api/internal/worker"
	"github.com/schoolops/staff-leave-api/pkg/cache"
	"github.com/schoolops/staff-leave-api/pkg/config"
	"github.com/schoolops/staff-leave-api/pkg/database"
	"github.com/schoolops/staff-leave-api/pkg/logger"
	corsmiddleware "github.com/schoolops/staff-leave-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schoolops/staff-leave-api/pkg/middleware/requestid"
)

// @title Staff Leave API
// @version 1.0.0
// @description Leave requests, auto-approval and substitute teacher assignment
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The service degrades to uncached config reads without Redis.
		logr.Sugar().Warnw("redis unavailable, config caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	leaveRepo := repository.NewLeaveRepository(db)
	logRepo := repository.NewApprovalLogRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	substitutionRepo := repository.NewSubstitutionRepository(db)
	configRepo := repository.NewAutoApprovalConfigRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metrics := service.NewMetricsService()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := notify.NewQueueNotifier(cfg.Notifications, logr)
	notifier.Start(rootCtx)

	configSvc := service.NewAutoApprovalService(configRepo, cacheRepo, leaveRepo, cfg.Monitor.ConfigCacheTTL, validate, logr)
	finderSvc := service.NewFinderService(scheduleRepo, teacherRepo, leaveRepo, substitutionRepo, notifier, metrics, cfg.Substitutions.SkipWeekends, logr)
	leaveSvc := service.NewLeaveService(leaveRepo, logRepo, teacherRepo, configSvc, finderSvc, notifier, metrics, validate, logr)
	substitutionSvc := service.NewSubstitutionService(substitutionRepo, notifier, logr)

	monitor := worker.NewAutoApprovalMonitor(worker.MonitorOptions{
		Leaves:        leaveRepo,
		Logs:          logRepo,
		Substitutions: substitutionRepo,
		ConfigSource:  configSvc,
		Finder:        finderSvc,
		Notifier:      notifier,
		Metrics:       metrics,
		Interval:      cfg.Monitor.ScanInterval,
		Logger:        logr,
	})
	if cfg.Monitor.Enabled {
		monitor.Start(rootCtx)
	}

	leaveHandler := handler.NewLeaveHandler(leaveSvc, configSvc)
	substitutionHandler := handler.NewSubstitutionHandler(substitutionSvc)
	configHandler := handler.NewAutoApprovalHandler(configSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		leaves := api.Group("/leaves")
		{
			leaves.POST("", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), leaveHandler.Submit)
			leaves.GET("", middleware.RequireRoles(models.RoleAdmin), leaveHandler.List)
			leaves.GET("/mine", middleware.RequireRoles(models.RoleTeacher), leaveHandler.ListMine)
			leaves.GET("/:id", leaveHandler.Get)
			leaves.GET("/:id/auto-approval", leaveHandler.Countdown)
			leaves.POST("/:id/approve", middleware.RequireRoles(models.RoleAdmin), leaveHandler.Approve)
			leaves.POST("/:id/reject", middleware.RequireRoles(models.RoleAdmin), leaveHandler.Reject)
		}

		substitutions := api.Group("/substitutions")
		{
			substitutions.GET("", middleware.RequireRoles(models.RoleAdmin), substitutionHandler.List)
			substitutions.GET("/mine", middleware.RequireRoles(models.RoleTeacher), substitutionHandler.ListMine)
			substitutions.GET("/:id", substitutionHandler.Get)
			substitutions.POST("/:id/accept", middleware.RequireRoles(models.RoleTeacher), substitutionHandler.Accept)
			substitutions.POST("/:id/reject", middleware.RequireRoles(models.RoleTeacher), substitutionHandler.Reject)
		}

		autoApproval := api.Group("/auto-approval", middleware.RequireRoles(models.RoleAdmin))
		{
			autoApproval.GET("/config", configHandler.GetConfig)
			autoApproval.PUT("/config", configHandler.UpdateConfig)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	if cfg.Monitor.Enabled {
		monitor.Stop()
	}
	notifier.Stop()
	logr.Sugar().Infow("stopped")
}
