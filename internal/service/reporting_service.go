package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/repository"
	"wallet-ledger/pkg/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatsCache stores serialized dashboard aggregates for a short time.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Page is one page of a listing plus the unpaged total.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// ReconcileReport compares a wallet's stored balances with the sum of its
// ledger entries.
type ReconcileReport struct {
	OwnerID        uint            `json:"owner_id"`
	Currency       string          `json:"currency"`
	Balance        decimal.Decimal `json:"balance"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	LedgerTotal    decimal.Decimal `json:"ledger_total"`
	Drift          decimal.Decimal `json:"drift"`
	Consistent     bool            `json:"consistent"`
}

// ReportingService serves read-only views. Results may trail in-flight writes.
type ReportingService struct {
	db       *gorm.DB
	currency string
	cache    StatsCache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewReportingService builds the query surface. cache may be nil.
func NewReportingService(db *gorm.DB, currency string, cache StatsCache, ttl time.Duration, logger *zap.Logger) *ReportingService {
	return &ReportingService{db: db, currency: currency, cache: cache, ttl: ttl, logger: logger}
}

// ListTransactions pages an owner's ledger entries, newest first. A nil
// ownerID lists every owner.
func (s *ReportingService) ListTransactions(ctx context.Context, ownerID *uint, page, limit int, typ domain.TxType, status domain.TxStatus) (*Page[models.Transaction], error) {
	if typ != "" && !typ.Valid() {
		return nil, ErrInvalidType
	}
	page, limit = repository.NormalizePage(page, limit)
	list, total, err := repository.NewTransactionRepository(s.db).List(ctx, repository.TransactionFilter{
		OwnerID: ownerID,
		Type:    typ,
		Status:  status,
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	return &Page[models.Transaction]{Items: list, Total: total, Page: page, Limit: limit}, nil
}

// ListWithdrawals pages withdrawals, newest first. A nil ownerID lists every owner.
func (s *ReportingService) ListWithdrawals(ctx context.Context, ownerID *uint, page, limit int, status domain.WithdrawalStatus) (*Page[models.Withdrawal], error) {
	page, limit = repository.NormalizePage(page, limit)
	list, total, err := repository.NewWithdrawalRepository(s.db).List(ctx, repository.WithdrawalFilter{
		OwnerID: ownerID,
		Status:  status,
		Page:    page,
		Limit:   limit,
	})
	if err != nil {
		return nil, storageErr("list withdrawals", err)
	}
	return &Page[models.Withdrawal]{Items: list, Total: total, Page: page, Limit: limit}, nil
}

// WalletStats returns platform-wide aggregates, served from the cache when a
// fresh copy exists. Cache failures fall through to the database.
func (s *ReportingService) WalletStats(ctx context.Context) (*repository.DashboardStats, error) {
	key := "ledger:stats:" + s.currency
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
		if ok {
			var cached repository.DashboardStats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	stats, err := repository.NewAdminRepository(s.db).GetDashboardStats(ctx, s.currency)
	if err != nil {
		return nil, storageErr("wallet stats", err)
	}
	if s.cache != nil && s.ttl > 0 {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
				s.logger.Warn("stats cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

// Reconcile recomputes balance + pendingBalance from the ledger and reports
// the difference. A missing wallet reconciles as zero.
func (s *ReportingService) Reconcile(ctx context.Context, ownerID uint, currency string) (*ReconcileReport, error) {
	if ownerID == 0 {
		return nil, ErrInvalidOwner
	}
	if currency = normalizeCurrency(currency); currency == "" {
		currency = s.currency
	}
	report := &ReconcileReport{OwnerID: ownerID, Currency: currency}
	w, err := repository.NewWalletRepository(s.db).GetByOwner(ctx, ownerID, currency)
	switch {
	case err == nil:
		report.Balance = w.Balance
		report.PendingBalance = w.PendingBalance
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, storageErr("reconcile", err)
	}
	sum, err := repository.NewTransactionRepository(s.db).LedgerSum(ctx, ownerID, currency)
	if err != nil {
		return nil, storageErr("reconcile", err)
	}
	report.LedgerTotal = money.Round2(sum)
	report.Drift = money.Round2(report.Balance.Add(report.PendingBalance).Sub(report.LedgerTotal))
	report.Consistent = report.Drift.IsZero()
	if !report.Consistent {
		s.logger.Error("wallet drift detected",
			zap.Uint("owner_id", ownerID),
			zap.String("currency", currency),
			zap.String("drift", report.Drift.StringFixed(money.Places)))
	}
	return report, nil
}
