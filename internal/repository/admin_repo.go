package repository

import (
	"context"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardStats aggregates wallet and ledger totals for the operations dashboard.
type DashboardStats struct {
	WalletCount          int64           `json:"wallet_count"`
	TotalBalance         decimal.Decimal `json:"total_balance"`
	TotalPendingBalance  decimal.Decimal `json:"total_pending_balance"`
	TotalEarned          decimal.Decimal `json:"total_earned"`
	TotalWithdrawn       decimal.Decimal `json:"total_withdrawn"`
	PlatformBalance      decimal.Decimal `json:"platform_balance"`
	PlatformRevenue      decimal.Decimal `json:"platform_revenue"`
	TotalTransactions    int64           `json:"total_transactions"`
	OpenWithdrawals      int64           `json:"open_withdrawals"`
	OpenWithdrawalAmount decimal.Decimal `json:"open_withdrawal_amount"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetDashboardStats(ctx context.Context, currency string) (*DashboardStats, error) {
	db := r.db.WithContext(ctx)
	var s DashboardStats

	var wallets struct {
		Count          int64
		Balance        decimal.Decimal
		PendingBalance decimal.Decimal
		TotalEarned    decimal.Decimal
		TotalWithdrawn decimal.Decimal
	}
	err := db.Model(&models.Wallet{}).
		Select("COUNT(*) AS count, COALESCE(SUM(balance), 0) AS balance, COALESCE(SUM(pending_balance), 0) AS pending_balance, "+
			"COALESCE(SUM(total_earned), 0) AS total_earned, COALESCE(SUM(total_withdrawn), 0) AS total_withdrawn").
		Where("currency = ?", currency).
		Scan(&wallets).Error
	if err != nil {
		return nil, err
	}
	s.WalletCount = wallets.Count
	s.TotalBalance = wallets.Balance
	s.TotalPendingBalance = wallets.PendingBalance
	s.TotalEarned = wallets.TotalEarned
	s.TotalWithdrawn = wallets.TotalWithdrawn

	var platform struct{ Total decimal.Decimal }
	if err := db.Model(&models.Wallet{}).Select("COALESCE(SUM(balance), 0) AS total").
		Where("is_platform = ? AND currency = ?", true, currency).Scan(&platform).Error; err != nil {
		return nil, err
	}
	s.PlatformBalance = platform.Total

	var revenue struct{ Total decimal.Decimal }
	if err := db.Model(&models.Transaction{}).Select("COALESCE(SUM(amount), 0) AS total").
		Where("type = ? AND status = ? AND currency = ?", domain.TxTypePlatformFee, domain.TxStatusCompleted, currency).
		Scan(&revenue).Error; err != nil {
		return nil, err
	}
	s.PlatformRevenue = revenue.Total

	if err := db.Model(&models.Transaction{}).Count(&s.TotalTransactions).Error; err != nil {
		return nil, err
	}

	count, total, err := NewWithdrawalRepository(r.db).OpenTotals(ctx)
	if err != nil {
		return nil, err
	}
	s.OpenWithdrawals = count
	s.OpenWithdrawalAmount = total
	return &s, nil
}
