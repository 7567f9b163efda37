package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet holds one owner's balances in a single currency. The platform wallet
// belongs to the revenue-collector account and is flagged IsPlatform.
type Wallet struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	OwnerID           uint            `gorm:"not null;uniqueIndex:idx_wallet_owner_currency" json:"owner_id"`
	Currency          string          `gorm:"size:3;not null;uniqueIndex:idx_wallet_owner_currency" json:"currency"`
	IsPlatform        bool            `gorm:"not null;default:false;index" json:"is_platform"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	PendingBalance    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"pending_balance"`
	TotalEarned       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_earned"`
	TotalWithdrawn    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_withdrawn"`
	LastTransactionAt *time.Time      `json:"last_transaction_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}
