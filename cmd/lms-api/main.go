package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/lms-go-api/api/swagger"
	"github.com/noah-isme/lms-go-api/internal/handler"
	"github.com/noah-isme/lms-go-api/internal/middleware"
	"github.com/noah-isme/lms-go-api/internal/repository"
	"github.com/noah-isme/lms-go-api/internal/service"
	"github.com/noah-isme/lms-go-api/pkg/cache"
	"github.com/noah-isme/lms-go-api/pkg/config"
	"github.com/noah-isme/lms-go-api/pkg/database"
	"github.com/noah-isme/lms-go-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-go-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-go-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-go-api/pkg/render"
	"github.com/noah-isme/lms-go-api/pkg/storage"
)

// @title LMS API
// @version 0.1.0
// @description Enrollment, progress and certificate backend
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, progress cache disabled", "error", err)
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ProgressTTL, logr, true)
		}
	}

	localStorage, err := storage.NewLocalStorage(cfg.Certificates.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare certificate storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Certificates.SignedURLSecret, cfg.Certificates.SignedURLTTL)

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	breakpointRepo := repository.NewBreakpointRepository(db)
	configurationRepo := repository.NewConfigurationRepository(db)

	validate := validator.New()

	settingsSvc := service.NewSettingsService(configurationRepo, logr)
	progressSvc := service.NewProgressService(progressRepo, courseRepo, quizRepo, activityRepo, enrollmentRepo, cacheSvc, metricsSvc, validate, logr)
	gradingSvc := service.NewGradingService(courseRepo, quizRepo, activityRepo, settingsSvc, logr)
	certificateSvc := service.NewCertificateService(certificateRepo, enrollmentRepo, progressSvc, gradingSvc, settingsSvc, render.NewCertificateRenderer(), localStorage, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, progressSvc, certificateSvc, validate, logr)
	breakpointSvc := service.NewBreakpointService(breakpointRepo, enrollmentRepo, courseRepo, logr)
	quizSvc := service.NewQuizService(quizRepo, enrollmentRepo, breakpointSvc, progressSvc, enrollmentSvc, validate, logr)
	activitySvc := service.NewActivityService(activityRepo, enrollmentRepo, enrollmentSvc, validate, logr)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	progressHandler := handler.NewProgressHandler(progressSvc, enrollmentSvc)
	quizHandler := handler.NewQuizHandler(quizSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc, signer)
	breakpointHandler := handler.NewBreakpointHandler(breakpointSvc, enrollmentSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/status", metricsHandler.Status)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/enrollments", enrollmentHandler.List)
		api.POST("/enrollments", enrollmentHandler.Create)
		api.GET("/enrollments/:id", enrollmentHandler.Get)
		api.POST("/enrollments/:id/refresh", enrollmentHandler.Refresh)
		api.DELETE("/enrollments/:id", enrollmentHandler.Delete)

		api.POST("/progress/track", progressHandler.Track)
		api.POST("/progress/complete", progressHandler.Complete)
		api.POST("/progress/:id/start", progressHandler.Start)
		api.GET("/enrollments/:id/progress", progressHandler.List)
		api.GET("/enrollments/:id/progress/summary", progressHandler.Summary)

		api.POST("/quiz-attempts", quizHandler.Start)
		api.GET("/quiz-attempts/:id", quizHandler.Get)
		api.POST("/quiz-attempts/:id/submit", quizHandler.Submit)
		api.POST("/quiz-attempts/:id/abandon", quizHandler.Abandon)

		api.POST("/activity-submissions", activityHandler.Submit)
		api.GET("/activity-submissions/:id", activityHandler.Get)
		api.PUT("/activity-submissions/:id/grade", activityHandler.Grade)
		api.PUT("/activity-submissions/:id/return", activityHandler.Return)

		api.GET("/enrollments/:id/certificates", certificateHandler.List)
		api.POST("/enrollments/:id/certificates", certificateHandler.Generate)
		api.GET("/enrollments/:id/certificates/eligibility", certificateHandler.Eligibility)
		api.GET("/certificates/download", certificateHandler.Download)
		api.GET("/certificates/:id", certificateHandler.Get)
		api.POST("/certificates/:id/download-url", certificateHandler.SignDownload)
		api.PUT("/certificates/:id/invalidate", certificateHandler.Invalidate)

		api.POST("/breakpoints", breakpointHandler.Record)
		api.GET("/enrollments/:id/units/:unitId/breakpoints", breakpointHandler.List)
		api.GET("/enrollments/:id/units/:unitId/final-quiz-access", breakpointHandler.FinalQuizAccess)

		api.GET("/settings", settingsHandler.List)
		api.PUT("/settings/:key", settingsHandler.Update)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
