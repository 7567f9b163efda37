package repository

import (
	"context"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionFilter narrows a transaction listing. A nil OwnerID lists all owners.
type TransactionFilter struct {
	OwnerID *uint
	Type    domain.TxType
	Status  domain.TxStatus
	Page    int
	Limit   int
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("idempotency_key = ?", key).Count(&c).Error
	return c > 0, err
}

// Transition moves a transaction out of status from. It returns the number of
// rows changed, which is zero when the transaction was no longer in from.
func (r *TransactionRepository) Transition(ctx context.Context, id uint, from, to domain.TxStatus, reason string) (int64, error) {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now()}
	switch to {
	case domain.TxStatusCompleted:
		updates["completed_at"] = time.Now()
	case domain.TxStatusFailed, domain.TxStatusCancelled:
		updates["failed_reason"] = reason
	}
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// FindStaged returns the oldest still-pending staged credit recorded under ref.
func (r *TransactionRepository) FindStaged(ctx context.Context, ownerID uint, currency string, ref models.Reference) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND currency = ? AND ref_type = ? AND ref_id = ?", ownerID, currency, ref.Kind, ref.ID).
		Where("status = ? AND type NOT IN ?", domain.TxStatusPending, []domain.TxType{domain.TxTypeWithdrawal, domain.TxTypePendingRelease}).
		Order("id ASC").
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]models.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Transaction{})
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Transaction
	err := q.Scopes(Paginate(f.Page, f.Limit)).Order("created_at DESC, id DESC").Find(&list).Error
	return list, total, err
}

// LedgerSum is the net of every entry that still affects the owner's funds:
// failed and cancelled entries are excluded, and pending releases only move
// money between the owner's own buckets.
func (r *TransactionRepository) LedgerSum(ctx context.Context, ownerID uint, currency string) (decimal.Decimal, error) {
	var row struct{ Total decimal.Decimal }
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("owner_id = ? AND currency = ?", ownerID, currency).
		Where("status NOT IN ?", []domain.TxStatus{domain.TxStatusFailed, domain.TxStatusCancelled}).
		Where("type <> ?", domain.TxTypePendingRelease).
		Scan(&row).Error
	return row.Total, err
}
