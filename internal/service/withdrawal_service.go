package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/repository"
	"wallet-ledger/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RoleChecker answers whether a user holds the elevated admin role.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID uint) (bool, error)
}

// WithdrawalService runs the payout state machine on top of the ledger.
// Funds are debited when the request is made; rejection and cancellation
// return them.
type WithdrawalService struct {
	db        *gorm.DB
	ledger    *LedgerService
	roles     RoleChecker
	minAmount decimal.Decimal
	logger    *zap.Logger
}

// NewWithdrawalService builds the workflow. minAmount is the fallback used
// when the withdrawal.min_amount setting is missing or unreadable.
func NewWithdrawalService(db *gorm.DB, ledger *LedgerService, roles RoleChecker, minAmount decimal.Decimal, logger *zap.Logger) *WithdrawalService {
	return &WithdrawalService{db: db, ledger: ledger, roles: roles, minAmount: minAmount, logger: logger}
}

type WithdrawalRequest struct {
	OwnerID       uint
	Amount        decimal.Decimal
	Currency      string
	Method        domain.WithdrawalMethod
	PayoutDetails models.PayoutDetails
	Notes         string
}

// RequestWithdrawal reserves the amount from the owner's available balance and
// records a pending Withdrawal together with its pending debit entry.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (w *models.Withdrawal, err error) {
	start := time.Now()
	defer func() { observe("request_withdrawal", start, err) }()

	if req.OwnerID == 0 {
		return nil, ErrInvalidOwner
	}
	if !validAmount(req.Amount) {
		return nil, ErrInvalidAmount
	}
	if err := validatePayout(req.Method, req.PayoutDetails); err != nil {
		return nil, err
	}
	floor := s.minimum(ctx)
	if req.Amount.LessThan(floor) {
		return nil, fmt.Errorf("%w of %s", ErrBelowMinimum, floor.StringFixed(money.Places))
	}
	currency, err := s.ledger.resolveCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.ledger.reserve(ctx, tx, req.OwnerID, currency, req.Amount)
		if err != nil {
			return err
		}
		ref := "wd-" + uuid.NewString()
		debit := s.ledger.newTransaction(req.OwnerID, domain.TxTypeWithdrawal, req.Amount.Neg(), currency,
			domain.TxStatusPending, "Withdrawal via "+string(req.Method),
			&models.Reference{Kind: domain.RefWithdrawal, ID: ref}, nil)
		debit.BalanceAfter = wallet.Balance
		if err := repository.NewTransactionRepository(tx).Create(ctx, debit); err != nil {
			return err
		}
		w = &models.Withdrawal{
			OwnerID:       req.OwnerID,
			Reference:     ref,
			Amount:        req.Amount,
			Currency:      currency,
			Method:        req.Method,
			PayoutDetails: datatypes.NewJSONType(req.PayoutDetails),
			Status:        domain.WithdrawalPending,
			TransactionID: &debit.ID,
			Notes:         req.Notes,
		}
		return repository.NewWithdrawalRepository(tx).Create(ctx, w)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			s.logger.Info("withdrawal refused: insufficient funds",
				zap.Uint("owner_id", req.OwnerID), zap.String("amount", req.Amount.String()))
		}
		return nil, storageErr("request withdrawal", err)
	}
	withdrawalTransitions.WithLabelValues(string(domain.WithdrawalPending)).Inc()
	s.logger.Info("withdrawal requested",
		zap.Uint("withdrawal_id", w.ID),
		zap.Uint("owner_id", w.OwnerID),
		zap.String("amount", w.Amount.StringFixed(money.Places)),
		zap.String("method", string(w.Method)))
	return w, nil
}

// CancelWithdrawal returns the reserved funds to the owner. Only the owner may
// cancel, and only while the withdrawal is still pending.
func (s *WithdrawalService) CancelWithdrawal(ctx context.Context, withdrawalID, ownerID uint) (w *models.Withdrawal, err error) {
	start := time.Now()
	defer func() { observe("cancel_withdrawal", start, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewWithdrawalRepository(tx)
		cur, err := lockWithdrawal(ctx, repo, withdrawalID)
		if err != nil {
			return err
		}
		if cur.OwnerID != ownerID {
			return ErrNotOwner
		}
		if cur.Status != domain.WithdrawalPending {
			return ErrNotPending
		}
		now := time.Now()
		n, err := repo.Transition(ctx, cur.ID, []domain.WithdrawalStatus{domain.WithdrawalPending}, map[string]interface{}{
			"status":       domain.WithdrawalCancelled,
			"processed_at": now,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotPending
		}
		if _, err := s.ledger.restore(ctx, tx, cur.OwnerID, cur.Currency, cur.Amount); err != nil {
			return err
		}
		if err := settleDebit(ctx, tx, cur, domain.TxStatusCancelled, "cancelled by owner"); err != nil {
			return err
		}
		if err := audit(ctx, tx, ownerID, "withdrawal.cancel", cur, nil); err != nil {
			return err
		}
		w, err = repo.GetByID(ctx, cur.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			s.logger.Warn("withdrawal cancel conflict", zap.Uint("withdrawal_id", withdrawalID), zap.Uint("owner_id", ownerID))
		}
		return nil, storageErr("cancel withdrawal", err)
	}
	withdrawalTransitions.WithLabelValues(string(domain.WithdrawalCancelled)).Inc()
	s.logger.Info("withdrawal cancelled", zap.Uint("withdrawal_id", w.ID), zap.Uint("owner_id", ownerID))
	return w, nil
}

// MarkProcessing records that an admin has started paying out the withdrawal.
func (s *WithdrawalService) MarkProcessing(ctx context.Context, withdrawalID, adminID uint) (w *models.Withdrawal, err error) {
	start := time.Now()
	defer func() { observe("mark_processing", start, err) }()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewWithdrawalRepository(tx)
		cur, err := lockWithdrawal(ctx, repo, withdrawalID)
		if err != nil {
			return err
		}
		n, err := repo.Transition(ctx, cur.ID, []domain.WithdrawalStatus{domain.WithdrawalPending}, map[string]interface{}{
			"status":       domain.WithdrawalProcessing,
			"processed_by": adminID,
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotPending
		}
		if err := audit(ctx, tx, adminID, "withdrawal.processing", cur, nil); err != nil {
			return err
		}
		w, err = repo.GetByID(ctx, cur.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("mark withdrawal processing", err)
	}
	withdrawalTransitions.WithLabelValues(string(domain.WithdrawalProcessing)).Inc()
	return w, nil
}

// ProcessWithdrawal applies an admin decision. Approval confirms the external
// payout and completes the debit entry. Rejection returns the funds and fails
// the debit entry with the given reason. A withdrawal is decided exactly once.
func (s *WithdrawalService) ProcessWithdrawal(ctx context.Context, withdrawalID, adminID uint, decision domain.Decision, reason string) (w *models.Withdrawal, err error) {
	start := time.Now()
	defer func() { observe("process_withdrawal", start, err) }()

	reason = strings.TrimSpace(reason)
	switch decision {
	case domain.DecisionApprove:
	case domain.DecisionReject:
		if reason == "" {
			return nil, ErrReasonRequired
		}
	default:
		return nil, ErrInvalidDecision
	}
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewWithdrawalRepository(tx)
		cur, err := lockWithdrawal(ctx, repo, withdrawalID)
		if err != nil {
			return err
		}
		if !cur.Status.Decidable() {
			return ErrNotPending
		}
		now := time.Now()
		updates := map[string]interface{}{"processed_by": adminID, "processed_at": now}
		if decision == domain.DecisionApprove {
			updates["status"] = domain.WithdrawalCompleted
		} else {
			updates["status"] = domain.WithdrawalRejected
			updates["rejection_reason"] = reason
		}
		n, err := repo.Transition(ctx, cur.ID, []domain.WithdrawalStatus{domain.WithdrawalPending, domain.WithdrawalProcessing}, updates)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotPending
		}

		notifier := NewNotificationService(repository.NewNotificationRepository(tx))
		if decision == domain.DecisionApprove {
			if err := settleDebit(ctx, tx, cur, domain.TxStatusCompleted, ""); err != nil {
				return err
			}
			if err := notifier.NotifyWithdrawalCompleted(ctx, cur); err != nil {
				return err
			}
		} else {
			if _, err := s.ledger.restore(ctx, tx, cur.OwnerID, cur.Currency, cur.Amount); err != nil {
				return err
			}
			if err := settleDebit(ctx, tx, cur, domain.TxStatusFailed, reason); err != nil {
				return err
			}
			if err := notifier.NotifyWithdrawalRejected(ctx, cur, reason); err != nil {
				return err
			}
		}
		if err := audit(ctx, tx, adminID, "withdrawal."+string(decision), cur, map[string]interface{}{"reason": reason}); err != nil {
			return err
		}
		w, err = repo.GetByID(ctx, cur.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			s.logger.Warn("withdrawal decision conflict",
				zap.Uint("withdrawal_id", withdrawalID), zap.String("decision", string(decision)))
		}
		return nil, storageErr("process withdrawal", err)
	}
	withdrawalTransitions.WithLabelValues(string(w.Status)).Inc()
	s.logger.Info("withdrawal processed",
		zap.Uint("withdrawal_id", w.ID),
		zap.Uint("admin_id", adminID),
		zap.String("status", string(w.Status)))
	return w, nil
}

// GetWithdrawal returns one withdrawal to its owner or to an admin.
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, withdrawalID, requesterID uint) (*models.Withdrawal, error) {
	w, err := repository.NewWithdrawalRepository(s.db).GetByID(ctx, withdrawalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, storageErr("get withdrawal", err)
	}
	if w.OwnerID == requesterID {
		return w, nil
	}
	ok, err := s.roles.IsAdmin(ctx, requesterID)
	if err != nil {
		return nil, storageErr("role lookup", err)
	}
	if !ok {
		return nil, ErrNotOwner
	}
	return w, nil
}

func (s *WithdrawalService) requireAdmin(ctx context.Context, userID uint) error {
	ok, err := s.roles.IsAdmin(ctx, userID)
	if err != nil {
		return storageErr("role lookup", err)
	}
	if !ok {
		return ErrNotAdmin
	}
	return nil
}

// minimum reads the configured minimum payout, falling back to the value the
// service was built with.
func (s *WithdrawalService) minimum(ctx context.Context) decimal.Decimal {
	v, err := repository.NewSettingRepository(s.db).Get(ctx, domain.SettingMinWithdrawal)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("withdrawal minimum setting unavailable, using configured floor",
				zap.String("floor", s.minAmount.StringFixed(money.Places)), zap.Error(err))
		}
		return s.minAmount
	}
	d, err := money.Parse(v)
	if err != nil || d.IsNegative() {
		s.logger.Warn("ignoring invalid withdrawal minimum setting", zap.String("value", v))
		return s.minAmount
	}
	return d
}

func lockWithdrawal(ctx context.Context, repo *repository.WithdrawalRepository, id uint) (*models.Withdrawal, error) {
	w, err := repo.LockByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	return w, err
}

// settleDebit moves the withdrawal's pending debit entry to its final status.
func settleDebit(ctx context.Context, tx *gorm.DB, w *models.Withdrawal, to domain.TxStatus, reason string) error {
	if w.TransactionID == nil {
		return fmt.Errorf("withdrawal %d has no debit entry", w.ID)
	}
	n, err := repository.NewTransactionRepository(tx).Transition(ctx, *w.TransactionID, domain.TxStatusPending, to, reason)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("withdrawal %d: debit entry %d is not pending", w.ID, *w.TransactionID)
	}
	return nil
}

func audit(ctx context.Context, tx *gorm.DB, actorID uint, action string, w *models.Withdrawal, extra map[string]interface{}) error {
	meta := map[string]interface{}{
		"reference": w.Reference,
		"amount":    w.Amount.StringFixed(money.Places),
		"currency":  w.Currency,
		"from":      w.Status,
	}
	for k, v := range extra {
		meta[k] = v
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return repository.NewAuditLogRepository(tx).Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "withdrawal",
		ResourceID: strconv.FormatUint(uint64(w.ID), 10),
		Metadata:   string(b),
	})
}

func validatePayout(method domain.WithdrawalMethod, d models.PayoutDetails) error {
	switch method {
	case domain.MethodBankTransfer:
		if strings.TrimSpace(d.BankName) == "" || strings.TrimSpace(d.AccountName) == "" || strings.TrimSpace(d.AccountNumber) == "" {
			return fmt.Errorf("%w: bank transfer needs bank_name, account_name and account_number", ErrInvalidPayout)
		}
	case domain.MethodPayPal:
		if _, err := mail.ParseAddress(d.PayPalEmail); err != nil {
			return fmt.Errorf("%w: paypal_email is not a valid address", ErrInvalidPayout)
		}
	case domain.MethodGateway:
		if strings.TrimSpace(d.GatewayAccountID) == "" {
			return fmt.Errorf("%w: gateway_account_id required", ErrInvalidPayout)
		}
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidPayout, method)
	}
	return nil
}
