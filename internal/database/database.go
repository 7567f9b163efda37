package database

import (
	"context"
	"fmt"
	"strings"

	"wallet-ledger/config"
	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/repository"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate creates or updates every ledger table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.Transaction{},
		&models.Withdrawal{},
		&models.Notification{},
		&models.AuditLog{},
		&models.SystemSetting{},
	)
}

// SeedSettings inserts the admin-editable defaults that are missing.
func SeedSettings(ctx context.Context, db *gorm.DB, cfg config.LedgerConfig) error {
	return repository.NewSettingRepository(db).SeedDefaults(ctx, map[string]string{
		domain.SettingMinWithdrawal: cfg.MinWithdrawalAmount,
	})
}

// ResolvePlatformAccount returns the id of the revenue-collector account.
// An explicit PLATFORM_ACCOUNT_ID must name a PLATFORM user. Otherwise the
// single PLATFORM user is used, and one is created when none exists.
func ResolvePlatformAccount(ctx context.Context, db *gorm.DB, cfg config.LedgerConfig) (uint, error) {
	users := repository.NewUserRepository(db)
	if cfg.PlatformAccountID != 0 {
		u, err := users.GetByID(ctx, cfg.PlatformAccountID)
		if err != nil {
			return 0, fmt.Errorf("platform account %d: %w", cfg.PlatformAccountID, err)
		}
		if !u.IsPlatform() {
			return 0, fmt.Errorf("platform account %d has role %s, want %s", u.ID, u.Role, domain.RolePlatform)
		}
		return u.ID, nil
	}

	list, err := users.ListByRole(ctx, domain.RolePlatform)
	if err != nil {
		return 0, err
	}
	switch len(list) {
	case 0:
		email := cfg.PlatformAccountEmail
		username, _, _ := strings.Cut(email, "@")
		u := &models.User{Username: "platform-" + username, Email: email, Role: domain.RolePlatform}
		if err := users.Create(ctx, u); err != nil {
			return 0, fmt.Errorf("seed platform account: %w", err)
		}
		return u.ID, nil
	case 1:
		return list[0].ID, nil
	default:
		return 0, fmt.Errorf("%d users hold the %s role; set PLATFORM_ACCOUNT_ID", len(list), domain.RolePlatform)
	}
}
