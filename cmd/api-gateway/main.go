package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ScepterCode/Project-Nest3-sub010/api/swagger"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/handler"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/middleware"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/realtime"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/repository"
	"github.com/ScepterCode/Project-Nest3-sub010/internal/service"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/cache"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/config"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/database"
	"github.com/ScepterCode/Project-Nest3-sub010/pkg/logger"
	corsmiddleware "github.com/ScepterCode/Project-Nest3-sub010/pkg/middleware/cors"
	reqidmiddleware "github.com/ScepterCode/Project-Nest3-sub010/pkg/middleware/requestid"
)

// @title Enrollment Coordination API
// @version 1.0.0
// @description Real-time class enrollment and waitlist coordination service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, snapshot caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	validate := validator.New()

	capacityRepo := repository.NewCapacityRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Enrollment.SnapshotCacheTTL, logr, redisClient != nil)

	hub := realtime.NewHub(cfg.Realtime.SendBufferSize, metrics, logr)

	notifications := service.NewNotificationService(service.NewLogSender(logr), cfg.Notifications, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	enrollments := service.NewEnrollmentService(service.EnrollmentServiceConfig{
		Capacities:  capacityRepo,
		Enrollments: enrollmentRepo,
		Waitlist:    waitlistRepo,
		Coordinator: service.NewClassCoordinator(),
		Events:      hub,
		Notifier:    notifications,
		Cache:       cacheService,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		OfferWindow: cfg.Enrollment.OfferWindow,
		SnapshotTTL: cfg.Enrollment.SnapshotCacheTTL,
	})

	sweeper := service.NewOfferSweeper(enrollments, cfg.Enrollment.SweepInterval, logr)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	enrollmentHandler := handler.NewEnrollmentHandler(enrollments)
	classHandler := handler.NewClassHandler(enrollments)
	realtimeHandler := handler.NewRealtimeHandler(hub, enrollments, metrics, cfg.Realtime, logr)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/ws", realtimeHandler.Connect)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/enrollments", enrollmentHandler.List)
		api.POST("/enrollments", enrollmentHandler.Request)
		api.DELETE("/enrollments", enrollmentHandler.Drop)
		api.POST("/enrollments/offer-response", enrollmentHandler.OfferResponse)

		api.POST("/classes", classHandler.Create)
		api.GET("/classes/:id/capacity", classHandler.Capacity)
		api.PUT("/classes/:id/capacity", classHandler.AdjustCapacity)
		api.GET("/classes/:id/waitlist", classHandler.Waitlist)
		api.GET("/classes/:id/roster/export", classHandler.ExportRoster)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
