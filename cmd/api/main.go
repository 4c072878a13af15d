package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"authgate-prototype/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()
	defer func() { _ = logger.Sync() }()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := core.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	var users core.UserRepository = core.NewPgUserRepository(db)
	if cfg.RedisURL != "" {
		redisClient, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		users = core.NewCachedUserRepository(users, redisClient, cfg.UserCacheTTL, logger)
		logger.Info("user cache enabled", zap.Duration("ttl", cfg.UserCacheTTL))
	}

	hasher := core.NewBcryptHasher(cfg.BcryptCost)
	tokens := core.NewTokenService(cfg.JWTSecret)
	authService := core.NewRepositoryAuthService(users, hasher, tokens, cfg.AccessTokenTTL, logger)

	if err := core.BootstrapAdmin(ctx, users, hasher, cfg, logger); err != nil {
		logger.Fatal("bootstrap admin failed", zap.Error(err))
	}

	router := core.NewRouter(cfg, core.RouterDeps{
		Auth:    authService,
		DB:      db,
		Metrics: core.NewMetrics(),
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting api server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("api server stopped")
}
