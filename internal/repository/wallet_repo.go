package repository

import (
	"context"
	"errors"
	"time"

	"wallet-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.WithContext(ctx).Where("owner_id = ? AND currency = ?", ownerID, currency).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreate returns the owner's wallet, inserting a zero-balance one if absent.
// A concurrent insert of the same (owner, currency) is absorbed by the unique index.
func (r *WalletRepository) GetOrCreate(ctx context.Context, ownerID uint, currency string, isPlatform bool) (*models.Wallet, error) {
	w, err := r.GetByOwner(ctx, ownerID, currency)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := r.insertIfAbsent(ctx, ownerID, currency, isPlatform); err != nil {
		return nil, err
	}
	return r.GetByOwner(ctx, ownerID, currency)
}

// LockOrCreate is GetOrCreate with a row lock held until the surrounding
// transaction ends. The repository must be bound to that transaction.
func (r *WalletRepository) LockOrCreate(ctx context.Context, ownerID uint, currency string, isPlatform bool) (*models.Wallet, error) {
	if err := r.insertIfAbsent(ctx, ownerID, currency, isPlatform); err != nil {
		return nil, err
	}
	var w models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND currency = ?", ownerID, currency).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) insertIfAbsent(ctx context.Context, ownerID uint, currency string, isPlatform bool) error {
	w := &models.Wallet{
		OwnerID:        ownerID,
		Currency:       currency,
		IsPlatform:     isPlatform,
		Balance:        decimal.Zero,
		PendingBalance: decimal.Zero,
		TotalEarned:    decimal.Zero,
		TotalWithdrawn: decimal.Zero,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(w).Error
}

// SaveBalances writes the four balance columns of w and stamps the last
// transaction time.
func (r *WalletRepository) SaveBalances(ctx context.Context, w *models.Wallet) error {
	now := time.Now()
	w.LastTransactionAt = &now
	return r.db.WithContext(ctx).Model(&models.Wallet{}).Where("id = ?", w.ID).Updates(map[string]interface{}{
		"balance":             w.Balance,
		"pending_balance":     w.PendingBalance,
		"total_earned":        w.TotalEarned,
		"total_withdrawn":     w.TotalWithdrawn,
		"last_transaction_at": now,
		"updated_at":          now,
	}).Error
}

func (r *WalletRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Wallet, error) {
	var list []models.Wallet
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("currency ASC").Find(&list).Error
	return list, err
}
