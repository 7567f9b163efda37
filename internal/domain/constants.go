package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
	// RolePlatform marks the single revenue-collector account.
	RolePlatform = "PLATFORM"
)

// TxType is the kind of balance-affecting event a Transaction records.
type TxType string

const (
	TxTypeRoomPayment     TxType = "room_payment"
	TxTypeProductPurchase TxType = "product_purchase"
	TxTypeWithdrawal      TxType = "withdrawal"
	TxTypeRefund          TxType = "refund"
	TxTypePlatformFee     TxType = "platform_fee"
	// TxTypePendingRelease moves staged earnings into the available balance.
	TxTypePendingRelease TxType = "pending_release"
)

func (t TxType) Valid() bool {
	switch t {
	case TxTypeRoomPayment, TxTypeProductPurchase, TxTypeWithdrawal,
		TxTypeRefund, TxTypePlatformFee, TxTypePendingRelease:
		return true
	}
	return false
}

// IsDebit reports whether amounts of this type must be negative.
func (t TxType) IsDebit() bool { return t == TxTypeWithdrawal }

// IsRevenue reports whether the type may be split between seller and platform.
func (t TxType) IsRevenue() bool {
	return t == TxTypeRoomPayment || t == TxTypeProductPurchase
}

type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusCancelled TxStatus = "cancelled"
)

// RefKind names the business object a Transaction points back to.
type RefKind string

const (
	RefOrder       RefKind = "order"
	RefWithdrawal  RefKind = "withdrawal"
	RefRoomPayment RefKind = "room_payment"
)

func (k RefKind) Valid() bool {
	return k == RefOrder || k == RefWithdrawal || k == RefRoomPayment
}

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
	WithdrawalCancelled  WithdrawalStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalRejected || s == WithdrawalCancelled
}

// Decidable reports whether an admin may approve or reject from this state.
func (s WithdrawalStatus) Decidable() bool {
	return s == WithdrawalPending || s == WithdrawalProcessing
}

type WithdrawalMethod string

const (
	MethodBankTransfer WithdrawalMethod = "bank_transfer"
	MethodPayPal       WithdrawalMethod = "paypal"
	MethodGateway      WithdrawalMethod = "gateway"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

const (
	NotificationWithdrawalCompleted = "WITHDRAWAL_COMPLETED"
	NotificationWithdrawalRejected  = "WITHDRAWAL_REJECTED"
	NotificationEarningsCredited    = "EARNINGS_CREDITED"
)

// SettingMinWithdrawal is the system_settings key holding the minimum payout.
const SettingMinWithdrawal = "withdrawal.min_amount"
