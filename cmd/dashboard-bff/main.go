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

	_ "github.com/noah-isme/crm-dashboard/api/swagger"
	"github.com/noah-isme/crm-dashboard/internal/client"
	"github.com/noah-isme/crm-dashboard/internal/handler"
	"github.com/noah-isme/crm-dashboard/internal/middleware"
	"github.com/noah-isme/crm-dashboard/internal/repository"
	"github.com/noah-isme/crm-dashboard/internal/service"
	"github.com/noah-isme/crm-dashboard/internal/session"
	"github.com/noah-isme/crm-dashboard/pkg/cache"
	"github.com/noah-isme/crm-dashboard/pkg/config"
	"github.com/noah-isme/crm-dashboard/pkg/database"
	"github.com/noah-isme/crm-dashboard/pkg/logger"
	corsmiddleware "github.com/noah-isme/crm-dashboard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/crm-dashboard/pkg/middleware/requestid"
)

// @title CRM Dashboard BFF
// @version 1.0.0
// @description Backend-for-frontend of the CRM dashboard: sessions, role-gated pages, list screens, forms and exports over the CRM REST API
// @BasePath /api/v1
// @schemes http https

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.ReadinessCheck{}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var db *sqlx.DB
	if cfg.Database.Enabled && cfg.Audit.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()
		checks["database"] = db.PingContext
	}

	metrics := service.NewMetricsService()

	backend := session.Backend(session.NewMemoryBackend())
	if cfg.Session.Backend == config.SessionBackendRedis {
		if redisClient == nil {
			logr.Fatal("session backend redis requires REDIS_ENABLED=true")
		}
		backend = session.NewRedisBackend(redisClient, cfg.Session.KeyPrefix)
	}
	sessions := session.NewManager(backend, cfg.Session.TTL, logr)

	upstream := client.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout,
		client.WithLogger(logr),
		client.WithMetrics(metrics),
	)

	auditCfg := service.AuditConfig{
		Workers:    cfg.Audit.WorkerConcurrency,
		MaxRetries: cfg.Audit.WorkerRetries,
	}
	audit := service.NewAuditService(nil, metrics, logr, auditCfg)
	if db != nil {
		audit = service.NewAuditService(repository.NewAuditRepository(db), metrics, logr, auditCfg)
	}
	audit.Start(ctx)
	defer audit.Stop()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)
	}

	validate := validator.New()
	authSvc := service.NewAuthService(upstream, sessions, validate, audit, logr, service.AuthConfig{
		Secret: cfg.Session.Secret,
		TTL:    cfg.Session.TTL,
	})
	screensSvc := service.NewScreensService(upstream, sessions, cacheSvc, audit, metrics, logr, service.ScreensConfig{
		PageSize:   cfg.List.DefaultPageSize,
		Debounce:   cfg.List.SearchDebounce,
		MaxVisible: cfg.List.MaxVisiblePages,
		IdleTTL:    cfg.List.ScreenIdleTTL,
	})
	defer screensSvc.Close()
	go screensSvc.Run(ctx, cfg.List.SweepInterval)

	statsSvc := service.NewStatsService(upstream, sessions, cacheSvc, cfg.Stats.CacheTTL)
	formsSvc := service.NewFormsService(upstream, sessions, authSvc, screensSvc, statsSvc, audit, metrics, logr, cfg.List.ScreenIdleTTL)
	defer formsSvc.Shutdown()
	go sweepForms(ctx, formsSvc, cfg.List.SweepInterval, logr)

	recordsSvc := service.NewRecordsService(upstream, sessions, authSvc, screensSvc, statsSvc, audit, logr)
	exportSvc := service.NewExportService(screensSvc, audit, service.ExportConfig{
		MaxRows:  cfg.Export.MaxRows,
		PageSize: cfg.Export.PageSize,
	}, logr)

	var loginLimit gin.HandlerFunc
	if cfg.RateLimit.Login != "" {
		lim, err := middleware.NewLimiter(cfg.RateLimit.Login, redisClient)
		if err != nil {
			logr.Fatal("invalid login rate limit", zap.Error(err))
		}
		loginLimit = middleware.RateLimit(lim, logr)
	}

	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Session(authSvc, cfg.Session.CookieName))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Auth:       handler.NewAuthHandler(authSvc, handler.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.Secure}),
		Pages:      handler.NewPageHandler(),
		Screens:    handler.NewScreenHandler(screensSvc, exportSvc),
		Forms:      handler.NewFormHandler(formsSvc),
		Stats:      handler.NewStatsHandler(statsSvc),
		Records:    handler.NewRecordHandler(recordsSvc, formsSvc),
		Audit:      handler.NewAuditHandler(audit),
		Metrics:    metricsHandler,
		LoginLimit: loginLimit,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func sweepForms(ctx context.Context, forms *service.FormsService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := forms.Sweep(); n > 0 {
				logr.Debug("idle form drafts discarded", zap.Int("count", n))
			}
		}
	}
}
