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

	_ "github.com/edupulse/edupulse-api/api/swagger"
	"github.com/edupulse/edupulse-api/internal/handler"
	"github.com/edupulse/edupulse-api/internal/middleware"
	"github.com/edupulse/edupulse-api/internal/repository"
	"github.com/edupulse/edupulse-api/internal/service"
	"github.com/edupulse/edupulse-api/pkg/cache"
	"github.com/edupulse/edupulse-api/pkg/config"
	"github.com/edupulse/edupulse-api/pkg/database"
	"github.com/edupulse/edupulse-api/pkg/jobs"
	"github.com/edupulse/edupulse-api/pkg/logger"
	corsmiddleware "github.com/edupulse/edupulse-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edupulse/edupulse-api/pkg/middleware/requestid"
	"github.com/edupulse/edupulse-api/pkg/storage"
)

// @title EduPulse API
// @version 1.0.0
// @description Student performance tracking and prediction service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	modelStore, err := storage.NewArtifactStore(cfg.ML.ModelDir)
	if err != nil {
		logr.Sugar().Fatalw("model store init failed", "error", err)
	}
	reportStore, err := storage.NewArtifactStore(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("report store init failed", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	behaviorRepo := repository.NewBehaviorRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	predictionRepo := repository.NewPredictionRepository(db)
	recommendationRepo := repository.NewRecommendationRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, studentRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, validate, logr)
	behaviorSvc := service.NewBehaviorService(behaviorRepo, validate, logr)

	featureSvc := service.NewFeatureService(studentRepo, gradeRepo, attendanceRepo, behaviorRepo, logr)
	predictionSvc := service.NewPredictionService(
		predictionRepo, studentRepo, featureSvc, modelStore,
		validate, logr, cfg.ML.Seed, cfg.ML.NumTrees,
	)

	notificationSvc := service.NewNotificationService(
		notificationRepo, userRepo, service.DefaultSenders(logr),
		validate, logr, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		},
	)

	ruleSvc := service.NewRuleService(
		ruleRepo, studentRepo, gradeRepo, attendanceRepo, behaviorRepo,
		predictionRepo, recommendationRepo, userRepo, notificationSvc,
		validate, logr, cfg.Notifications.BatchDeadline,
	)

	recommendationSvc := service.NewRecommendationService(
		recommendationRepo, studentRepo, gradeRepo, attendanceRepo, behaviorRepo, logr,
	)

	reportSvc := service.NewReportService(predictionRepo, studentRepo, recommendationSvc, reportStore, logr)

	// Redis is optional: when unavailable the cache degrades to a no-op
	// instead of aborting startup.
	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, cache disabled", "error", err)
			cacheSvc = service.NewCacheService(nil, cfg.Cache.TTL, false, logr)
		} else {
			defer redisClient.Close()
			cacheSvc = service.NewCacheService(redisClient, cfg.Cache.TTL, true, logr)
		}
	} else {
		cacheSvc = service.NewCacheService(nil, cfg.Cache.TTL, false, logr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	if err := predictionSvc.LoadActiveModel(ctx); err != nil {
		logr.Sugar().Warnw("no active model loaded at startup", "error", err)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	handlers := handler.Handlers{
		Auth:            handler.NewAuthHandler(authSvc, userSvc),
		Users:           handler.NewUserHandler(userSvc),
		Students:        handler.NewStudentHandler(studentSvc, featureSvc),
		Grades:          handler.NewGradeHandler(gradeSvc),
		Attendance:      handler.NewAttendanceHandler(attendanceSvc),
		Behavior:        handler.NewBehaviorHandler(behaviorSvc),
		Notifications:   handler.NewNotificationHandler(notificationSvc),
		Rules:           handler.NewRuleHandler(ruleSvc),
		Predictions:     handler.NewPredictionHandler(predictionSvc, metricsSvc, cacheSvc),
		Recommendations: handler.NewRecommendationHandler(recommendationSvc, predictionSvc, studentSvc),
		Reports:         handler.NewReportHandler(reportSvc),
		Metrics:         handler.NewMetricsHandler(metricsSvc),
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, authSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
