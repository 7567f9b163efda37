package repository

import (
	"context"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithdrawalFilter narrows a withdrawal listing. A nil OwnerID lists all owners.
type WithdrawalFilter struct {
	OwnerID *uint
	Status  domain.WithdrawalStatus
	Page    int
	Limit   int
}

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := r.db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// LockByID reads the withdrawal with a row lock held until the surrounding
// transaction ends.
func (r *WithdrawalRepository) LockByID(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Transition applies updates only while the withdrawal is still in one of
// from, returning the number of rows changed.
func (r *WithdrawalRepository) Transition(ctx context.Context, id uint, from []domain.WithdrawalStatus, updates map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *WithdrawalRepository) List(ctx context.Context, f WithdrawalFilter) ([]models.Withdrawal, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Withdrawal{})
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Withdrawal
	err := q.Scopes(Paginate(f.Page, f.Limit)).Order("created_at DESC, id DESC").Find(&list).Error
	return list, total, err
}

// OpenTotals counts withdrawals still holding reserved funds and sums their amounts.
func (r *WithdrawalRepository) OpenTotals(ctx context.Context) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status IN ?", []domain.WithdrawalStatus{domain.WithdrawalPending, domain.WithdrawalProcessing}).
		Scan(&row).Error
	return row.Count, row.Total, err
}
