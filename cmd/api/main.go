package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"absensi/internal/absensi"
	"absensi/internal/auth"
	"absensi/internal/clock"
	"absensi/internal/cloudinary"
	"absensi/internal/config"
	"absensi/internal/handler"
	"absensi/internal/httpmiddleware"
	"absensi/internal/logging"
	"absensi/internal/master"
	"absensi/internal/memstore"
	"absensi/internal/notify"
	"absensi/internal/queue"
	"absensi/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Env, "absensi-api")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := map[string]handler.HealthCheck{}

	// Reference data and attendance events share one backend.
	var (
		ref    master.Store
		events absensi.Store
	)
	switch cfg.StoreBackend {
	case "memory":
		mem := memstore.New()
		ref, events = mem, mem
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		ref, events = master.NewRepository(db.Client), absensi.NewRepository(db.Client)
		health["db"] = db.Healthy
	}

	// Redis backs the queue, the rate limiter and the report cache whenever
	// the queue runs on it.
	var (
		redisClient *store.Redis
		q           queue.Queue
		limiter     httpmiddleware.Limiter
		cache       absensi.Cache
	)
	switch cfg.QueueBackend {
	case "memory":
		mem := queue.NewInMemory(256)
		q = mem
		limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
		// No separate worker can reach an in-process queue, so dispatch here.
		dispatcher := notify.NewDispatcher(ref, notify.New(cfg.FCMEndpoint, cfg.FCMServerKey, cfg.PushSkip, logger), logger)
		go func() {
			if err := dispatcher.Run(ctx, mem); err != nil {
				logger.Error("in-process dispatcher stopped", zap.Error(err))
			}
		}()
	default:
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
		cache = absensi.NewRedisCache(redisClient.Client, cfg.RiwayatCacheTTL)
		health["redis"] = redisClient.Healthy
	}

	// The only place the process decides what "today" means.
	resolver := clock.NewResolver(cfg.TZOffsetHours)
	logger.Info("date resolver ready",
		zap.String("zone", resolver.Location().String()),
		zap.String("today", resolver.Today()))

	svc := absensi.NewService(events, ref, resolver, absensi.Options{
		Cache:     cache,
		Publisher: q,
		Logger:    logger,
	})

	signer := auth.NewSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	authn := auth.NewAuthenticator(ref, signer)

	opts := handler.Options{Health: health, Logger: logger}
	if cfg.CloudinaryEnabled() {
		opts.Photos = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logger.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryCloudName))
	} else {
		logger.Info("cloudinary not configured; photo upload disabled")
	}

	h := handler.New(svc, ref, authn, opts)
	r := handler.Router(h, handler.RouterConfig{Limiter: limiter, Logger: logger})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
