package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"dashEditor/internal/config"
	"dashEditor/internal/metrics"
	"dashEditor/internal/storage"
	"dashEditor/internal/tasks"
	"dashEditor/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if !cfg.OffsiteBackups() {
		log.Fatal("worker requires REDIS_ENABLED=true and MINIO_ENABLED=true")
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", storageClient.Bucket())

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		logger.Error("close redis client failed", slog.Any("error", err))
	}

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
	})

	backupHandler := worker.NewBackupTaskHandler(storageClient, logger)
	pruneHandler := worker.NewBackupPruneHandler(storageClient, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeBackupUpload, backupHandler)
	mux.Handle(tasks.TypeBackupPrune, pruneHandler)

	if days := cfg.MinIO.RetentionDays; days > 0 {
		pruneTask, err := tasks.NewBackupPruneTask(days)
		if err != nil {
			log.Fatalf("build prune task: %v", err)
		}
		scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Location: time.UTC})
		if _, err := scheduler.Register("@daily", pruneTask); err != nil {
			log.Fatalf("register prune schedule: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("start scheduler: %v", err)
		}
		defer scheduler.Shutdown()
		logger.Info("backup pruning scheduled", slog.Int("retention_days", days))
	}

	logger.Info("worker service started", slog.String("redis_addr", redisAddr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
