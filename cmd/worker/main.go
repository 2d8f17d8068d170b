package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"absensi/internal/config"
	"absensi/internal/logging"
	"absensi/internal/master"
	"absensi/internal/notify"
	"absensi/internal/queue"
	"absensi/internal/store"
)

// Worker consumes absensi.recorded messages and pushes them to guardian devices.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, "absensi-worker")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.QueueBackend != "redis" || cfg.StoreBackend != "postgres" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis and STORE_BACKEND=postgres; the api dispatches in-process otherwise")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet; consume will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	sender := notify.New(cfg.FCMEndpoint, cfg.FCMServerKey, cfg.PushSkip, logger)
	if cfg.PushSkip {
		logger.Info("PUSH_SKIP set; pushes are logged, not sent")
	}
	dispatcher := notify.NewDispatcher(master.NewRepository(db.Client), sender, logger)

	logger.Info("worker started, waiting for messages", zap.String("queue", cfg.QueueKey))
	if err := dispatcher.Run(ctx, q); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		return
	}
	logger.Info("worker stopped")
}
