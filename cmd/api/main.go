package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskmanager/configs"
	"taskmanager/internal/api"
	"taskmanager/internal/api/handlers"
	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/repository"
	"taskmanager/internal/websocket"
	"taskmanager/pkg/auth"
	"taskmanager/pkg/database"
	"taskmanager/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return err
	}

	logs, err := logger.New(cfg.LogDir)
	if err != nil {
		return err
	}
	defer logs.Sync()
	logs.System.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectDB(ctx, cfg)
	if err != nil {
		logs.Error.Error("Database connection failed", zap.Error(err))
		return err
	}
	defer db.Close()
	logs.System.Info("Database connected")

	if err := repository.CreateTableIfNotExists(ctx, db); err != nil {
		logs.Error.Error("Schema setup failed", zap.Error(err))
		return err
	}

	var taskCache cache.TaskCache = cache.Nop{}
	if cfg.RedisEnabled() {
		client, err := database.ConnectRedis(ctx, cfg)
		if err != nil {
			logs.Error.Error("Redis connection failed", zap.Error(err))
			return err
		}
		defer client.Close()
		taskCache = cache.NewRedisTaskCache(client, cfg.CacheTTL)
		logs.System.Info("Redis connected, task cache enabled")
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	deps := &config.Dependencies{
		Users:     repository.NewUserRepository(db, cfg.DBQueryTimeout),
		Tasks:     repository.NewTaskRepository(db, cfg.DBQueryTimeout),
		DB:        db,
		Cache:     taskCache,
		Hub:       hub,
		Passwords: auth.NewPasswordHasher(cfg.BcryptCost),
		Tokens:    auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Validate:  handlers.NewValidator(),
		Log:       logs,
	}

	app := api.NewApp(cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		logs.System.Info("Listening", zap.String("port", cfg.Port))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		logs.Error.Error("Server stopped", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	logs.System.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logs.Error.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
