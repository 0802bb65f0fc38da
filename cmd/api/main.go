package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"dashEditor/internal/api"
	"dashEditor/internal/auth"
	"dashEditor/internal/config"
	"dashEditor/internal/configfile"
	"dashEditor/internal/database"
	"dashEditor/internal/editor"
	"dashEditor/internal/history"
	"dashEditor/internal/notify"
	"dashEditor/internal/tasks"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sinks       notify.Multi
		events      notify.Source
		rateCounter *redis.Client
		journal     *database.Journal
	)

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("close redis client failed", slog.Any("error", err))
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("ping redis: %v", err)
		}
		broker := notify.NewRedisBroker(redisClient, cfg.Redis.Channel, logger)
		sinks = append(sinks, broker)
		events = broker
		rateCounter = redisClient
		logger.Info("redis change broker ready", slog.String("channel", broker.Channel()))
	} else {
		hub := notify.NewHub(0, logger)
		sinks = append(sinks, hub)
		events = hub
	}

	if cfg.Database.Enabled {
		db, err := database.InitDatabase(cfg.Database)
		if err != nil {
			log.Fatalf("init database: %v", err)
		}
		if err := database.Migrate(db); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
		journal = database.NewJournal(db)
		sinks = append(sinks, journal)
		logger.Info("revision journal ready", slog.String("db", cfg.Database.Name))
	}

	if cfg.OffsiteBackups() {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
		defer asynqClient.Close()
		sinks = append(sinks, tasks.NewBackupEnqueuer(asynqClient))
		logger.Info("offsite backups enabled", slog.String("bucket", cfg.MinIO.Bucket))
	}

	store := configfile.New(cfg.Editor.ConfigPath, configfile.WithLogger(logger))
	coord := editor.New(store,
		editor.WithDebounce(cfg.Editor.Debounce),
		editor.WithHistory(history.NewStore(cfg.Editor.HistoryCapacity)),
		editor.WithSink(sinks),
		editor.WithLogger(logger),
	)
	if err := coord.Load(ctx); err != nil {
		if !configfile.IsNotFound(err) {
			log.Fatalf("load configuration: %v", err)
		}
		logger.Warn("configuration file does not exist yet", slog.String("path", cfg.Editor.ConfigPath))
	}

	if cfg.Editor.Watch {
		watcher, err := editor.NewWatcher(cfg.Editor.ConfigPath, coord, 0, logger)
		if err != nil {
			log.Fatalf("init watcher: %v", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("configuration watcher stopped", slog.Any("error", err))
			}
		}()
	}

	var authService *auth.AuthService
	if cfg.Auth.Enabled() {
		var err error
		authService, err = auth.NewAuthService(cfg.Auth.PasswordHash, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			log.Fatalf("init auth service: %v", err)
		}
	}

	router := api.NewRouter(logger)
	deps := api.Dependencies{
		Editor:         coord,
		Events:         events,
		Auth:           authService,
		Logger:         logger,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}
	if rateCounter != nil {
		deps.RateCounter = rateCounter
	}
	if journal != nil {
		deps.Journal = journal
	}
	api.RegisterRoutes(router, deps)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			slog.String("addr", server.Addr),
			slog.String("config_path", cfg.Editor.ConfigPath),
			slog.Bool("password_gate", authService != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start api server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.Any("error", err))
	}
	if err := coord.Close(shutdownCtx); err != nil {
		logger.Error("flush pending edit failed", slog.Any("error", err))
	}
}
