package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campuskit/institute-cms-api/api/swagger"
	"github.com/campuskit/institute-cms-api/internal/handler"
	"github.com/campuskit/institute-cms-api/internal/middleware"
	"github.com/campuskit/institute-cms-api/internal/models"
	"github.com/campuskit/institute-cms-api/internal/repository"
	"github.com/campuskit/institute-cms-api/internal/service"
	"github.com/campuskit/institute-cms-api/pkg/cache"
	"github.com/campuskit/institute-cms-api/pkg/config"
	"github.com/campuskit/institute-cms-api/pkg/database"
	"github.com/campuskit/institute-cms-api/pkg/jobs"
	"github.com/campuskit/institute-cms-api/pkg/logger"
	corsmiddleware "github.com/campuskit/institute-cms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/institute-cms-api/pkg/middleware/requestid"
	"github.com/campuskit/institute-cms-api/pkg/storage"
)

// @title Institute CMS API
// @version 1.0.0
// @description Backend for the institute events page and gallery CMS
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.PageCache.Enabled {
		redisClient, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			logr.Warn("redis unavailable, page cache disabled", zap.Error(redisErr))
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.PageCache.CacheTTL, logr, cfg.PageCache.Enabled && cacheRepo != nil)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	docRepo := repository.NewEventsDocumentRepository(db)
	sectionRepo := repository.NewSectionRepository(db)

	migrator := service.NewGalleryMigrator(sectionRepo, logr)
	eventsSvc := service.NewEventsService(docRepo, sectionRepo, migrator, cacheSvc, userRepo, validate, logr)
	sectionSvc := service.NewSectionService(sectionRepo, docRepo, cacheSvc, userRepo, logr)
	mediaSvc := service.NewMediaService(uploads, docRepo, sectionRepo, metricsSvc, logr, service.MediaServiceConfig{
		MaxFileSize:   cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:  cfg.Uploads.AllowedMIMEs,
		PublicBaseURL: cfg.Uploads.PublicBaseURL,
		SweepGrace:    cfg.Sweep.GracePeriod,
	})
	exportSvc := service.NewExportService(eventsSvc, nil, nil, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "institute-cms-api",
	})

	var sweepQueue *jobs.Queue
	if cfg.Sweep.Enabled {
		sweepQueue = jobs.NewQueue("upload-sweep", func(ctx context.Context, job jobs.Job) error {
			result, sweepErr := mediaSvc.Sweep(ctx)
			if sweepErr != nil {
				return sweepErr
			}
			metricsSvc.RecordSweepDeleted(result.Deleted)
			payload, _ := json.Marshal(result)
			if auditErr := userRepo.CreateAuditLog(ctx, &models.AuditLog{
				Action:    models.AuditActionUploadSweep,
				Resource:  "uploads",
				NewValues: payload,
			}); auditErr != nil {
				logr.Warn("failed to record sweep audit log", zap.Error(auditErr))
			}
			return nil
		}, jobs.QueueConfig{
			Workers: cfg.Sweep.Workers,
			Logger:  logr,
		})
		sweepQueue.Start(context.Background())
		defer sweepQueue.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	eventsHandler := handler.NewEventsHandler(eventsSvc, mediaSvc, cacheSvc)
	sectionHandler := handler.NewSectionHandler(sectionSvc, mediaSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	maintenanceHandler := handler.NewMaintenanceHandler(nil)
	if sweepQueue != nil {
		maintenanceHandler = handler.NewMaintenanceHandler(sweepQueue)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static(cfg.Uploads.PublicBaseURL, cfg.Uploads.StorageDir)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	events := api.Group("/events")
	{
		events.GET("", eventsHandler.Get)

		protected := events.Group("", middleware.JWT(authSvc))
		editors := protected.Group("", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleEditor))
		{
			editors.PUT("", eventsHandler.Update)
			editors.POST("/banner", eventsHandler.UploadBanner)
			editors.POST("/sections", sectionHandler.Create)
			editors.PUT("/sections/:id", sectionHandler.Rename)
			editors.DELETE("/sections/:id", sectionHandler.Delete)
			editors.POST("/images", sectionHandler.AddImages)
			editors.DELETE("/sections/:id/images/:imageId", sectionHandler.DeleteImage)
		}

		if cfg.Exports.Enabled {
			protected.GET("/export",
				middleware.Audit(userRepo, models.AuditActionExportDownload, "events"),
				exportHandler.Download)
		}
		protected.POST("/maintenance/sweep",
			middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin),
			maintenanceHandler.Sweep)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	srv := &http.Server{Addr: addr, Handler: r}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
