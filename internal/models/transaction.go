package models

import (
	"time"

	"wallet-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Reference points a Transaction back at the business object that caused it.
type Reference struct {
	Kind domain.RefKind
	ID   string
}

// Transaction is an append-only ledger entry. Only Status, CompletedAt and
// FailedReason change after creation.
type Transaction struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OwnerID        uint            `gorm:"not null;index" json:"owner_id"`
	Type           domain.TxType   `gorm:"size:30;not null;index" json:"type"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"` // positive = credit, negative = debit
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	Status         domain.TxStatus `gorm:"size:20;not null;index" json:"status"`
	Description    string          `gorm:"size:255" json:"description"`
	RefType        domain.RefKind  `gorm:"size:30;index:idx_tx_ref" json:"ref_type,omitempty"`
	RefID          string          `gorm:"size:128;index:idx_tx_ref" json:"ref_id,omitempty"`
	Metadata       datatypes.JSON  `json:"metadata,omitempty"`
	BalanceAfter   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance_after"`
	IdempotencyKey *string         `gorm:"size:160;uniqueIndex" json:"-"`
	CompletedAt    *time.Time      `json:"completed_at"`
	FailedReason   string          `gorm:"size:255" json:"failed_reason,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// SetReference stores ref on the flat RefType/RefID columns.
func (t *Transaction) SetReference(ref *Reference) {
	if ref == nil {
		return
	}
	t.RefType = ref.Kind
	t.RefID = ref.ID
}

// Reference returns the typed reference, or nil when none was recorded.
func (t *Transaction) Reference() *Reference {
	if t.RefType == "" {
		return nil
	}
	return &Reference{Kind: t.RefType, ID: t.RefID}
}
