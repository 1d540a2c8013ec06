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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Aashu-1911/sutra-backend/api/swagger"
	"github.com/Aashu-1911/sutra-backend/internal/events"
	"github.com/Aashu-1911/sutra-backend/internal/handler"
	internalmiddleware "github.com/Aashu-1911/sutra-backend/internal/middleware"
	"github.com/Aashu-1911/sutra-backend/internal/models"
	"github.com/Aashu-1911/sutra-backend/internal/repository"
	"github.com/Aashu-1911/sutra-backend/internal/service"
	"github.com/Aashu-1911/sutra-backend/internal/textgen"
	"github.com/Aashu-1911/sutra-backend/migrations"
	"github.com/Aashu-1911/sutra-backend/pkg/cache"
	"github.com/Aashu-1911/sutra-backend/pkg/config"
	"github.com/Aashu-1911/sutra-backend/pkg/database"
	"github.com/Aashu-1911/sutra-backend/pkg/jobs"
	"github.com/Aashu-1911/sutra-backend/pkg/logger"
	corsmiddleware "github.com/Aashu-1911/sutra-backend/pkg/middleware/cors"
	reqidmiddleware "github.com/Aashu-1911/sutra-backend/pkg/middleware/requestid"
	"github.com/Aashu-1911/sutra-backend/pkg/storage"
)

// @title Sutra Timetable API
// @version 1.0.0
// @description Weekly timetable generation, storage and export for college divisions.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(ctx, db.DB); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
		logr.Info("migrations applied")
	}

	metrics := service.NewMetricsService()

	var redisClient redis.UniversalClient
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			redisClient = client
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)

	var generator textgen.Client
	if cfg.TextGen.Enabled {
		generator = textgen.NewHTTPClient(textgen.Config{
			URL:        cfg.TextGen.URL,
			Model:      cfg.TextGen.Model,
			Timeout:    cfg.TextGen.Timeout,
			MaxRetries: cfg.TextGen.MaxRetries,
			RetryDelay: cfg.TextGen.RetryDelay,
		}, logr)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue, logr)
	}
	defer publisher.Close() //nolint:errcheck

	timetables := service.NewTimetableService(
		repository.NewTimetableRepository(db),
		db,
		cacheSvc,
		generator,
		publisher,
		metrics,
		validator.New(),
		logr,
		service.TimetableServiceConfig{
			Engine:         service.EngineConfig(cfg.Scheduler),
			OverflowPolicy: cfg.Scheduler.OverflowPolicy,
			UseExternal:    cfg.TextGen.Enabled,
			MaxParallel:    cfg.Scheduler.MaxParallel,
			CacheTTL:       cfg.Cache.TTL,
		},
	)

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("export storage unavailable", zap.Error(err))
	}
	exportsSvc := service.NewExportService(
		timetables,
		files,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		metrics,
		logr,
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
	)
	exportQueue := jobs.NewQueue("exports", exportsSvc.Process, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		JobTimeout: cfg.Exports.JobTimeout,
		Logger:     logr,
		OnFailure:  exportsSvc.HandleFailure,
	})
	exportsSvc.AttachQueue(exportQueue)
	exportQueue.Start(ctx)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := exportQueue.Stop(drainCtx); err != nil {
			logr.Warn("export queue did not drain", zap.Error(err))
		}
	}()
	startCleanupLoop(ctx, exportsSvc, cfg.Exports.CleanupInterval, logr)

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.Auth.Secret, Expiry: cfg.Auth.Expiration})

	router := newRouter(cfg, logr, routerDeps{
		db:         db,
		redis:      redisClient,
		metrics:    metrics,
		tokens:     tokens,
		timetables: handler.NewTimetableHandler(timetables),
		exports:    handler.NewExportHandler(exportsSvc),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Warn("http shutdown error", zap.Error(err))
		}
	}()

	logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "auth", cfg.Auth.Enabled, "textgen", cfg.TextGen.Enabled)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Fatal("server failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type routerDeps struct {
	db         *sqlx.DB
	redis      redis.UniversalClient
	metrics    *service.MetricsService
	tokens     *service.TokenService
	timetables *handler.TimetableHandler
	exports    *handler.ExportHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins, MaxAge: cfg.CORS.MaxAge}))
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(deps.metrics, "/health", "/ready", "/metrics"))
	}

	checks := map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return deps.db.PingContext(ctx) },
	}
	if deps.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, deps.redis) }
	}
	observability := handler.NewMetricsHandler(deps.metrics, checks)
	r.GET("/health", observability.Health)
	r.GET("/ready", observability.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", observability.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/exports/download/:token", deps.exports.Download)

	secured := api.Group("")
	var writers, admins gin.HandlerFunc = passThrough, passThrough
	if cfg.Auth.Enabled {
		secured.Use(internalmiddleware.JWT(deps.tokens))
		writers = internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)
		admins = internalmiddleware.RequireRoles(models.RoleAdmin)
	}

	tt := secured.Group("/timetables")
	tt.POST("/generate", writers, internalmiddleware.Audit(logr, "generate", "timetable"), deps.timetables.Generate)
	tt.POST("/generate/batch", writers, internalmiddleware.Audit(logr, "generate_batch", "timetable"), deps.timetables.GenerateBatch)
	tt.POST("/preview", deps.timetables.Preview)
	tt.POST("/normalize", deps.timetables.Normalize)
	tt.GET("", deps.timetables.List)
	tt.GET("/:id", deps.timetables.Get)
	tt.DELETE("/:id", admins, internalmiddleware.Audit(logr, "delete", "timetable"), deps.timetables.Delete)
	tt.POST("/:id/exports", internalmiddleware.Audit(logr, "export", "timetable"), deps.exports.Request)

	secured.GET("/exports/:jobId", deps.exports.Status)
	return r
}

func passThrough(c *gin.Context) { c.Next() }

func startCleanupLoop(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := exports.Cleanup(0); err != nil {
					logr.Warn("export cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}
