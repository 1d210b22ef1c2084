package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/cache"
	"patrimonio-api/internal/config"
	"patrimonio-api/internal/handler"
	"patrimonio-api/internal/label"
	"patrimonio-api/internal/lock"
	"patrimonio-api/internal/logging"
	"patrimonio-api/internal/media"
	"patrimonio-api/internal/middleware"
	"patrimonio-api/internal/repository"
	"patrimonio-api/internal/router"
	"patrimonio-api/internal/rowproxy"
	"patrimonio-api/internal/service"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	log := logging.Component(logger, "main")
	log.WithFields(logrus.Fields{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("Starting patrimonio API")

	// Row store backing both sheets
	wb, err := openWorkbook(cfg, logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to open row store")
	}
	defer wb.Close()
	log.WithField("store", cfg.Store.Type).Info("Row store initialized")

	// Cache and writer lock. Redis is optional; the process falls back to
	// in-memory state when it is not configured.
	var (
		appCache    cache.Cache
		locker      rowproxy.Locker = lock.NewLocal()
		redisClient *redis.Client
	)
	if strings.EqualFold(cfg.Cache.Type, "redis") {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.WithError(err).Warn("Redis connection failed, using in-memory cache")
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		appCache = cache.NewRedisCache(redisClient, cfg.Cache.RedisPrefix)
		locker = lock.NewRedis(redisClient, cfg.Cache.RedisPrefix, cfg.Cache.LockTTL, logger)
		log.Info("Redis cache and writer lock initialized")
	} else {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		appCache = memCache
	}

	// Repositories
	items := repository.NewSheetItemRepository(wb, cfg.Store.ItemsSheet, locker)
	users := repository.NewSheetUserRepository(wb, cfg.Store.UsersSheet, locker)

	// Store health
	monitor := rowproxy.NewMonitor(wb, cfg.Store.HealthInterval)
	prober := service.NewStoreProber(monitor, service.ProbeConfig{
		Interval: cfg.Store.HealthInterval,
	}, logger)
	prober.Start()

	// Photo uploads
	photos, uploadsDir, closeMedia, err := openMedia(cfg, logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize media store")
	}
	if closeMedia != nil {
		defer closeMedia.Close()
	}

	renderer, err := label.NewRenderer()
	if err != nil {
		log.WithError(err).Fatal("Failed to load label template")
	}

	// Services
	inventoryService := service.NewInventoryService(items, photos, appCache, cfg.Cache.IdempotencyTTL, logger)
	authService := service.NewAuthService(users, logger)
	sessionService := service.NewSessionService(cfg.Session.Secret, cfg.Session.TTL, appCache, logger)

	// Handlers
	cookie := handler.SessionCookie{Name: cfg.Session.CookieName, Secure: cfg.Session.Secure}
	healthHandler := handler.New(monitor, cfg.App.Name, cfg.App.Version)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, cfg.Media.MaxUploadBytes, logger)
	adminHandler := handler.NewAdminHandler(items, users, monitor, cfg.Store.Type, cfg.Media.Type, logger)
	authHandler := handler.NewAuthHandler(authService, sessionService, cookie, logger)
	labelHandler := handler.NewLabelHandler(renderer, router.QRCodePath, logger)

	var oauthHandler *handler.OAuthHandler
	if cfg.OAuth.Enabled() {
		flow := service.NewGoogleOAuth(
			cfg.OAuth.GoogleClientID,
			cfg.OAuth.GoogleClientSecret,
			cfg.OAuth.GoogleRedirectURL,
			appCache,
			cfg.OAuth.StateTTL,
			logger,
		)
		oauthHandler = handler.NewOAuthHandler(flow, authService, sessionService, cookie, "/", logger)
		log.Info("Google sign-in enabled")
	}

	r := router.New(router.Config{
		Logger:           logger,
		AllowedOrigins:   cfg.App.AllowedOrigins,
		Handler:          healthHandler,
		InventoryHandler: inventoryHandler,
		AdminHandler:     adminHandler,
		AuthHandler:      authHandler,
		OAuthHandler:     oauthHandler,
		LabelHandler:     labelHandler,
		SessionAuth:      middleware.NewSessionMiddleware(sessionService, cfg.Session.CookieName),
		StoreGate:        middleware.NewStoreGate(monitor, logger),
		UploadsDir:       uploadsDir,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", cfg.Server.Address()).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown error")
	}
	prober.Stop()

	log.Info("Server stopped")
}

func openWorkbook(cfg *config.Config, logger logrus.FieldLogger) (rowproxy.Workbook, error) {
	switch strings.ToLower(cfg.Store.Type) {
	case "google", "sheets":
		// The client keeps ctx for token refresh, so it must outlive startup.
		return repository.NewGoogleWorkbook(context.Background(), cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, logger)
	case "sqlite":
		return repository.OpenSQLite(cfg.Store.SQLitePath, logger)
	case "mysql":
		return repository.OpenMySQL(cfg.Store.MySQLDSN(), logger)
	case "postgres", "postgresql":
		return repository.OpenPostgres(cfg.Store.PostgresDSN(), logger)
	case "excel", "xlsx", "":
		return repository.NewExcelWorkbook(cfg.Store.ExcelPath, logger)
	default:
		return nil, fmt.Errorf("unknown STORE_TYPE %q", cfg.Store.Type)
	}
}

// openMedia builds the photo resolver. It returns the directory to serve
// under /uploads for the local store, and a closer for remote clients.
func openMedia(cfg *config.Config, logger logrus.FieldLogger) (service.PhotoResolver, string, io.Closer, error) {
	opts := media.Options{
		MaxBytes:     cfg.Media.MaxUploadBytes,
		MaxDimension: cfg.Media.MaxDimension,
		KeyPrefix:    cfg.Media.KeyPrefix,
	}
	log := logging.Component(logger, "media")

	switch strings.ToLower(cfg.Media.Type) {
	case "none", "":
		log.Info("Photo uploads disabled")
		return nil, "", nil, nil
	case "gcs":
		store, err := media.NewGCSStore(context.Background(), cfg.Media.GCSBucket, cfg.Media.GCSCredentialsJSON, cfg.Media.PublicBaseURL)
		if err != nil {
			return nil, "", nil, err
		}
		log.WithField("bucket", cfg.Media.GCSBucket).Info("GCS media store initialized")
		return media.NewResolver(store, opts), "", store, nil
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := media.NewS3Store(ctx, media.S3Config{
			Endpoint:      cfg.Media.S3Endpoint,
			Bucket:        cfg.Media.S3Bucket,
			Region:        cfg.Media.S3Region,
			AccessKey:     cfg.Media.S3AccessKey,
			SecretKey:     cfg.Media.S3SecretKey,
			PublicBaseURL: cfg.Media.PublicBaseURL,
		})
		if err != nil {
			return nil, "", nil, err
		}
		log.WithField("bucket", cfg.Media.S3Bucket).Info("S3 media store initialized")
		return media.NewResolver(store, opts), "", nil, nil
	case "local":
		baseURL := cfg.Media.PublicBaseURL
		if baseURL == "" {
			baseURL = "/uploads"
		}
		store, err := media.NewLocalStore(cfg.Media.LocalDir, baseURL)
		if err != nil {
			return nil, "", nil, err
		}
		dir := ""
		if baseURL == "/uploads" {
			dir = store.Dir()
		}
		log.WithField("dir", store.Dir()).Info("Local media store initialized")
		return media.NewResolver(store, opts), dir, nil, nil
	default:
		return nil, "", nil, fmt.Errorf("unknown MEDIA_TYPE %q", cfg.Media.Type)
	}
}
