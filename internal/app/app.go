package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/greyfinance/limitguard/internal/api"
	"github.com/greyfinance/limitguard/internal/api/middleware"
	"github.com/greyfinance/limitguard/internal/config"
	"github.com/greyfinance/limitguard/internal/db"
	"github.com/greyfinance/limitguard/internal/engine"
	"github.com/greyfinance/limitguard/internal/graylist"
	"github.com/greyfinance/limitguard/internal/limits"
	"github.com/greyfinance/limitguard/internal/notify"
	"github.com/greyfinance/limitguard/internal/observability"
	"github.com/greyfinance/limitguard/internal/repository"
	"github.com/greyfinance/limitguard/internal/worker"
)

// Run bootstraps the limits engine: HTTP server, cache refresh worker and
// notification dispatcher, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewStore(pool)
	limitRepo := repository.NewLimitRepository(store)
	trxRepo := repository.NewTransactionRepository(store)
	alertRepo := repository.NewAlertRepository(store)
	ctrl := repository.NewOutcomeController(store)

	cache := limits.NewCache(limitRepo, cfg.LimitCacheTTL, nil)
	grayList := graylist.NewRedisGrayList(redisClient, cfg.GrayListSetKey)
	eng := engine.New(cache, grayList, trxRepo)

	dispatcher := notify.NewDispatcher(notify.LogSender{}, cfg.NotifyWorkers, cfg.NotifyQueueSize)
	notifyRouter := notify.NewRouter(cfg.SlackRegularChannel, cfg.SlackCriticalChannel, dispatcher, alertRepo)

	refreshWorker := worker.NewRefreshWorker(cache).WithInterval(cfg.CacheRefreshInterval)
	stopWorker := refreshWorker.Run(ctx)
	logger.Info("limit cache refresh worker started", zap.Duration("interval", cfg.CacheRefreshInterval))

	router := api.NewRouter(cfg, logger, pool, redisClient, eng, ctrl, notifyRouter, cache)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping cache refresh worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("notification dispatcher shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
