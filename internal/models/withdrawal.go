package models

import (
	"time"

	"wallet-ledger/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PayoutDetails carries the method-specific destination of a payout.
type PayoutDetails struct {
	BankName         string `json:"bank_name,omitempty"`
	AccountName      string `json:"account_name,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
	RoutingCode      string `json:"routing_code,omitempty"`
	PayPalEmail      string `json:"paypal_email,omitempty"`
	GatewayAccountID string `json:"gateway_account_id,omitempty"`
}

type Withdrawal struct {
	ID              uint                              `gorm:"primaryKey" json:"id"`
	OwnerID         uint                              `gorm:"not null;index" json:"owner_id"`
	Reference       string                            `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	Amount          decimal.Decimal                   `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency        string                            `gorm:"size:3;not null" json:"currency"`
	Method          domain.WithdrawalMethod           `gorm:"size:20;not null" json:"method"`
	PayoutDetails   datatypes.JSONType[PayoutDetails] `json:"payout_details"`
	Status          domain.WithdrawalStatus           `gorm:"size:20;not null;index" json:"status"`
	ProcessedBy     *uint                             `json:"processed_by"`
	ProcessedAt     *time.Time                        `json:"processed_at"`
	RejectionReason string                            `gorm:"size:255" json:"rejection_reason,omitempty"`
	TransactionID   *uint                             `gorm:"index" json:"transaction_id"`
	Notes           string                            `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time                         `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time                         `json:"updated_at"`
	DeletedAt       gorm.DeletedAt                    `gorm:"index" json:"-"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
