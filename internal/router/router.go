package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/handler"
	"wallet-ledger/internal/middleware"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Setup wires repositories, services and handlers onto a gin engine.
// stats may be nil. Background janitors stop when ctx is done.
func Setup(ctx context.Context, cfg *config.Config, db *gorm.DB, platformID uint, stats service.StatsCache, logger *zap.Logger) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	ledger, err := service.NewLedgerService(db, cfg.Ledger, platformID, logger.Named("ledger"))
	if err != nil {
		return nil, err
	}
	minWithdrawal, err := money.Parse(cfg.Ledger.MinWithdrawalAmount)
	if err != nil {
		return nil, fmt.Errorf("min withdrawal amount %q: %w", cfg.Ledger.MinWithdrawalAmount, err)
	}
	withdrawals := service.NewWithdrawalService(db, ledger, userRepo, minWithdrawal, logger.Named("withdrawals"))
	reporting := service.NewReportingService(db, ledger.Currency(), stats, cfg.Redis.StatsTTL, logger.Named("reporting"))
	notifications := service.NewNotificationService(notificationRepo)

	// Handlers
	walletHandler := handler.NewWalletHandler(ledger, reporting, logger)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawals, reporting, logger)
	notificationHandler := handler.NewNotificationHandler(notifications, logger)
	adminHandler := handler.NewAdminHandler(withdrawals, reporting, settingRepo, auditRepo, logger)
	webhookHandler := handler.NewPaymentWebhookHandler(ledger, cfg.Payment.WebhookSecret, logger.Named("webhook"))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := middleware.NewInMemoryRateLimiter(ctx, 100, time.Minute)
	withdrawLimiter := middleware.NewInMemoryRateLimiter(ctx, 10, time.Minute)

	v1 := r.Group("/api/v1")
	v1.POST("/webhooks/payments/captured", middleware.RateLimit(limiter), webhookHandler.Captured)

	me := v1.Group("/me")
	me.Use(middleware.AuthRequired(&cfg.JWT), middleware.RateLimit(limiter))
	{
		me.GET("/wallet", walletHandler.GetWallet)
		me.GET("/wallet/transactions", walletHandler.Transactions)
		me.POST("/withdrawals", middleware.RateLimit(withdrawLimiter), withdrawalHandler.Create)
		me.GET("/withdrawals", withdrawalHandler.List)
		me.GET("/withdrawals/:id", withdrawalHandler.Get)
		me.POST("/withdrawals/:id/cancel", withdrawalHandler.Cancel)
		me.GET("/notifications", notificationHandler.List)
		me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(&cfg.JWT), middleware.RequireRole(domain.RoleAdmin))
	{
		admin.GET("/dashboard", adminHandler.Dashboard)
		admin.GET("/transactions", adminHandler.Transactions)
		admin.GET("/withdrawals", adminHandler.Withdrawals)
		admin.POST("/withdrawals/:id/processing", adminHandler.MarkProcessing)
		admin.POST("/withdrawals/:id/process", adminHandler.ProcessWithdrawal)
		admin.GET("/wallets/:owner_id/reconcile", adminHandler.Reconcile)
		admin.GET("/settings", adminHandler.GetSettings)
		admin.PUT("/settings", adminHandler.UpdateSetting)
	}
	return r, nil
}
