package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/cache"
	"wallet-ledger/internal/database"
	"wallet-ledger/internal/router"
	"wallet-ledger/internal/service"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	if err := database.SeedSettings(ctx, db, cfg.Ledger); err != nil {
		logger.Fatal("seed settings", zap.Error(err))
	}
	// A missing collector is logged, not fatal: reads and withdrawals keep
	// working and splits fail until it is fixed.
	platformID, err := database.ResolvePlatformAccount(ctx, db, cfg.Ledger)
	if err != nil {
		logger.Error("platform revenue account unresolved", zap.Error(err))
	}

	var stats service.StatsCache
	if c := cache.New(cfg.Redis); c != nil {
		if err := c.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, stats cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			stats = c
			defer c.Close()
		}
	}

	engine, err := router.Setup(ctx, cfg, db, platformID, stats, logger)
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.Uint("platform_account_id", platformID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
