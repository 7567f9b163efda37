package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/repository"
	"wallet-ledger/pkg/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LedgerService is the only writer of wallet balances. Every public method
// that moves money runs as one database transaction that also appends the
// matching Transaction rows.
type LedgerService struct {
	db         *gorm.DB
	currency   string
	currencies map[string]bool
	feeRate    decimal.Decimal
	platformID uint
	logger     *zap.Logger
}

// NewLedgerService builds the ledger. platformID is the revenue-collector
// account resolved at startup; zero leaves splits failing with
// ErrPlatformNotConfigured.
func NewLedgerService(db *gorm.DB, cfg config.LedgerConfig, platformID uint, logger *zap.Logger) (*LedgerService, error) {
	rate, err := money.FeeRate(cfg.PlatformFeePercent)
	if err != nil {
		return nil, fmt.Errorf("platform fee percent %q: %w", cfg.PlatformFeePercent, err)
	}
	currency := normalizeCurrency(cfg.Currency)
	if currency == "" {
		currency = "USD"
	}
	currencies := make(map[string]bool, len(cfg.Currencies)+1)
	for _, c := range append([]string{currency}, cfg.Currencies...) {
		c = normalizeCurrency(c)
		if !isCurrencyCode(c) {
			return nil, fmt.Errorf("ledger currency %q: %w", c, ErrInvalidCurrency)
		}
		currencies[c] = true
	}
	return &LedgerService{
		db:         db,
		currency:   currency,
		currencies: currencies,
		feeRate:    rate,
		platformID: platformID,
		logger:     logger,
	}, nil
}

// Currency is the ledger's default wallet currency.
func (s *LedgerService) Currency() string { return s.currency }

// PlatformID is the revenue-collector account id, zero when unset.
func (s *LedgerService) PlatformID() uint { return s.platformID }

// SplitRequest is a captured revenue event handed over by the payment collaborator.
type SplitRequest struct {
	Amount      decimal.Decimal
	Currency    string
	SellerID    uint
	Type        domain.TxType
	Description string
	Reference   *models.Reference
	Metadata    map[string]interface{}
}

type SplitResult struct {
	SellerAmount        decimal.Decimal     `json:"seller_amount"`
	PlatformFee         decimal.Decimal     `json:"platform_fee"`
	SellerTransaction   *models.Transaction `json:"seller_transaction"`
	PlatformTransaction *models.Transaction `json:"platform_transaction"`
}

// CreditRequest credits one owner, either to available or to pending balance.
type CreditRequest struct {
	OwnerID     uint
	Amount      decimal.Decimal
	Currency    string
	Type        domain.TxType
	Description string
	Reference   *models.Reference
	Metadata    map[string]interface{}
}

// ReleaseRequest moves staged earnings to the available balance. With a
// Reference, the pending entry AddPendingBalance recorded under it is settled
// as completed, and a zero Amount releases that entry's full amount.
type ReleaseRequest struct {
	OwnerID   uint
	Amount    decimal.Decimal
	Currency  string
	Reference *models.Reference
}

// DebitRequest debits one owner's available balance.
type DebitRequest struct {
	OwnerID     uint
	Amount      decimal.Decimal
	Currency    string
	Description string
	Reference   *models.Reference
}

// TransactionRequest records a ledger entry without touching any wallet.
type TransactionRequest struct {
	OwnerID     uint
	Type        domain.TxType
	Amount      decimal.Decimal
	Currency    string
	Status      domain.TxStatus
	Description string
	Reference   *models.Reference
	Metadata    map[string]interface{}
}

func (s *LedgerService) GetOrCreateWallet(ctx context.Context, ownerID uint, currency string) (*models.Wallet, error) {
	if ownerID == 0 {
		return nil, ErrInvalidOwner
	}
	currency, err := s.resolveCurrency(currency)
	if err != nil {
		return nil, err
	}
	w, err := repository.NewWalletRepository(s.db).GetOrCreate(ctx, ownerID, currency, s.isPlatform(ownerID))
	if err != nil {
		return nil, storageErr("get or create wallet", err)
	}
	return w, nil
}

// SplitPayment credits the seller and the platform for one captured amount.
// Both wallets and both Transactions are written in one unit or not at all.
func (s *LedgerService) SplitPayment(ctx context.Context, req SplitRequest) (res *SplitResult, err error) {
	start := time.Now()
	defer func() { observe("split_payment", start, err) }()

	if s.platformID == 0 {
		s.logger.Error("split payment refused: platform revenue account not configured",
			zap.Uint("seller_id", req.SellerID),
			zap.String("amount", req.Amount.String()))
		return nil, ErrPlatformNotConfigured
	}
	if req.SellerID == 0 {
		return nil, ErrInvalidOwner
	}
	if !req.Type.IsRevenue() {
		return nil, ErrInvalidType
	}
	if err := validateReference(req.Reference); err != nil {
		return nil, err
	}
	split := money.SplitAmount(req.Amount, s.feeRate)
	if !split.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	currency, err := s.resolveCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	meta, err := encodeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	var sellerKey, feeKey *string
	if req.Reference != nil {
		base := fmt.Sprintf("split:%s:%s", req.Reference.Kind, req.Reference.ID)
		sk, fk := base+":seller", base+":fee"
		sellerKey, feeKey = &sk, &fk
	}

	res = &SplitResult{SellerAmount: split.SellerAmount, PlatformFee: split.PlatformFee}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := repository.NewWalletRepository(tx)
		txns := repository.NewTransactionRepository(tx)

		if sellerKey != nil {
			seen, err := txns.ExistsByIdempotencyKey(ctx, *sellerKey)
			if err != nil {
				return err
			}
			if seen {
				return ErrDuplicateReference
			}
		}

		locked, err := s.lockWallets(ctx, wallets, currency, req.SellerID, s.platformID)
		if err != nil {
			return err
		}
		seller, platform := locked[req.SellerID], locked[s.platformID]

		credit(seller, split.SellerAmount)
		if err := wallets.SaveBalances(ctx, seller); err != nil {
			return err
		}
		sellerTx := s.newTransaction(req.SellerID, req.Type, split.SellerAmount, currency, domain.TxStatusCompleted, req.Description, req.Reference, meta)
		sellerTx.BalanceAfter = seller.Balance
		sellerTx.IdempotencyKey = sellerKey
		if err := txns.Create(ctx, sellerTx); err != nil {
			return duplicateKey(err)
		}

		credit(platform, split.PlatformFee)
		if err := wallets.SaveBalances(ctx, platform); err != nil {
			return err
		}
		feeTx := s.newTransaction(s.platformID, domain.TxTypePlatformFee, split.PlatformFee, currency, domain.TxStatusCompleted, "Platform fee: "+req.Description, req.Reference, meta)
		feeTx.BalanceAfter = platform.Balance
		feeTx.IdempotencyKey = feeKey
		if err := txns.Create(ctx, feeTx); err != nil {
			return duplicateKey(err)
		}

		if err := NewNotificationService(repository.NewNotificationRepository(tx)).
			NotifyEarningsCredited(ctx, req.SellerID, split.SellerAmount, currency, req.Reference); err != nil {
			return err
		}

		res.SellerTransaction, res.PlatformTransaction = sellerTx, feeTx
		return nil
	})
	if err != nil {
		return nil, storageErr("split payment", err)
	}
	s.logger.Info("payment split",
		zap.Uint("seller_id", req.SellerID),
		zap.String("type", string(req.Type)),
		zap.String("amount", split.Amount.StringFixed(money.Places)),
		zap.String("seller_amount", split.SellerAmount.StringFixed(money.Places)),
		zap.String("platform_fee", split.PlatformFee.StringFixed(money.Places)))
	return res, nil
}

// CreditBalance adds funds straight to the available balance, e.g. a refund.
func (s *LedgerService) CreditBalance(ctx context.Context, req CreditRequest) (w *models.Wallet, t *models.Transaction, err error) {
	start := time.Now()
	defer func() { observe("credit_balance", start, err) }()

	if req.Type == "" {
		req.Type = domain.TxTypeRefund
	}
	if err := validateCredit(req); err != nil {
		return nil, nil, err
	}
	currency, err := s.resolveCurrency(req.Currency)
	if err != nil {
		return nil, nil, err
	}
	meta, err := encodeMetadata(req.Metadata)
	if err != nil {
		return nil, nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := repository.NewWalletRepository(tx)
		wallet, err := wallets.LockOrCreate(ctx, req.OwnerID, currency, s.isPlatform(req.OwnerID))
		if err != nil {
			return err
		}
		credit(wallet, req.Amount)
		if err := wallets.SaveBalances(ctx, wallet); err != nil {
			return err
		}
		t = s.newTransaction(req.OwnerID, req.Type, req.Amount, currency, domain.TxStatusCompleted, req.Description, req.Reference, meta)
		t.BalanceAfter = wallet.Balance
		if err := repository.NewTransactionRepository(tx).Create(ctx, t); err != nil {
			return err
		}
		w = wallet
		return nil
	})
	if err != nil {
		return nil, nil, storageErr("credit balance", err)
	}
	return w, t, nil
}

// AddPendingBalance stages earnings that are not yet spendable. The entry is
// recorded with pending status.
func (s *LedgerService) AddPendingBalance(ctx context.Context, req CreditRequest) (w *models.Wallet, t *models.Transaction, err error) {
	start := time.Now()
	defer func() { observe("add_pending_balance", start, err) }()

	if err := validateCredit(req); err != nil {
		return nil, nil, err
	}
	currency, err := s.resolveCurrency(req.Currency)
	if err != nil {
		return nil, nil, err
	}
	meta, err := encodeMetadata(req.Metadata)
	if err != nil {
		return nil, nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := repository.NewWalletRepository(tx)
		wallet, err := wallets.LockOrCreate(ctx, req.OwnerID, currency, s.isPlatform(req.OwnerID))
		if err != nil {
			return err
		}
		wallet.PendingBalance = wallet.PendingBalance.Add(req.Amount)
		wallet.TotalEarned = wallet.TotalEarned.Add(req.Amount)
		if err := wallets.SaveBalances(ctx, wallet); err != nil {
			return err
		}
		t = s.newTransaction(req.OwnerID, req.Type, req.Amount, currency, domain.TxStatusPending, req.Description, req.Reference, meta)
		t.BalanceAfter = wallet.Balance
		if err := repository.NewTransactionRepository(tx).Create(ctx, t); err != nil {
			return err
		}
		w = wallet
		return nil
	})
	if err != nil {
		return nil, nil, storageErr("add pending balance", err)
	}
	return w, t, nil
}

// ReleasePendingBalance moves staged earnings from pending to available balance.
func (s *LedgerService) ReleasePendingBalance(ctx context.Context, req ReleaseRequest) (w *models.Wallet, t *models.Transaction, err error) {
	start := time.Now()
	defer func() { observe("release_pending_balance", start, err) }()

	if req.OwnerID == 0 {
		return nil, nil, ErrInvalidOwner
	}
	if err := validateReference(req.Reference); err != nil {
		return nil, nil, err
	}
	if !validAmount(req.Amount) && !(req.Reference != nil && req.Amount.IsZero()) {
		return nil, nil, ErrInvalidAmount
	}
	currency, err := s.resolveCurrency(req.Currency)
	if err != nil {
		return nil, nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := repository.NewWalletRepository(tx)
		txns := repository.NewTransactionRepository(tx)
		wallet, err := wallets.LockOrCreate(ctx, req.OwnerID, currency, s.isPlatform(req.OwnerID))
		if err != nil {
			return err
		}
		amount := req.Amount
		if req.Reference != nil {
			staged, err := txns.FindStaged(ctx, req.OwnerID, currency, *req.Reference)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: nothing staged under %s:%s", ErrInvalidReference, req.Reference.Kind, req.Reference.ID)
			}
			if err != nil {
				return err
			}
			if amount.IsZero() {
				amount = staged.Amount
			} else if !amount.Equal(staged.Amount) {
				return fmt.Errorf("%w: staged entry holds %s", ErrInvalidAmount, staged.Amount.StringFixed(money.Places))
			}
			if _, err := txns.Transition(ctx, staged.ID, domain.TxStatusPending, domain.TxStatusCompleted, ""); err != nil {
				return err
			}
		}
		if wallet.PendingBalance.LessThan(amount) {
			return ErrInsufficientPending
		}
		wallet.PendingBalance = wallet.PendingBalance.Sub(amount)
		wallet.Balance = wallet.Balance.Add(amount)
		if err := wallets.SaveBalances(ctx, wallet); err != nil {
			return err
		}
		t = s.newTransaction(req.OwnerID, domain.TxTypePendingRelease, amount, currency, domain.TxStatusCompleted, "Pending earnings released", req.Reference, nil)
		t.BalanceAfter = wallet.Balance
		if err := txns.Create(ctx, t); err != nil {
			return err
		}
		w = wallet
		return nil
	})
	if err != nil {
		return nil, nil, storageErr("release pending balance", err)
	}
	return w, t, nil
}

// DeductBalance debits the available balance and counts it as withdrawn,
// recording a completed withdrawal entry.
func (s *LedgerService) DeductBalance(ctx context.Context, req DebitRequest) (w *models.Wallet, t *models.Transaction, err error) {
	start := time.Now()
	defer func() { observe("deduct_balance", start, err) }()

	if req.OwnerID == 0 {
		return nil, nil, ErrInvalidOwner
	}
	if !validAmount(req.Amount) {
		return nil, nil, ErrInvalidAmount
	}
	if err := validateReference(req.Reference); err != nil {
		return nil, nil, err
	}
	currency, err := s.resolveCurrency(req.Currency)
	if err != nil {
		return nil, nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.reserve(ctx, tx, req.OwnerID, currency, req.Amount)
		if err != nil {
			return err
		}
		t = s.newTransaction(req.OwnerID, domain.TxTypeWithdrawal, req.Amount.Neg(), currency, domain.TxStatusCompleted, req.Description, req.Reference, nil)
		t.BalanceAfter = wallet.Balance
		if err := repository.NewTransactionRepository(tx).Create(ctx, t); err != nil {
			return err
		}
		w = wallet
		return nil
	})
	if err != nil {
		return nil, nil, storageErr("deduct balance", err)
	}
	return w, t, nil
}

// CreateTransaction appends a ledger entry independent of any wallet
// mutation. Entries start pending or completed.
func (s *LedgerService) CreateTransaction(ctx context.Context, req TransactionRequest) (*models.Transaction, error) {
	if req.OwnerID == 0 {
		return nil, ErrInvalidOwner
	}
	if !req.Type.Valid() {
		return nil, ErrInvalidType
	}
	if err := checkSign(req.Type, req.Amount); err != nil {
		return nil, err
	}
	if !validAmount(req.Amount.Abs()) {
		return nil, ErrInvalidAmount
	}
	if err := validateReference(req.Reference); err != nil {
		return nil, err
	}
	currency, err := s.resolveCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = domain.TxStatusPending
	}
	if req.Status != domain.TxStatusPending && req.Status != domain.TxStatusCompleted {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidType, req.Status)
	}
	meta, err := encodeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}
	t := s.newTransaction(req.OwnerID, req.Type, req.Amount, currency, req.Status, req.Description, req.Reference, meta)
	if err := repository.NewTransactionRepository(s.db).Create(ctx, t); err != nil {
		return nil, storageErr("create transaction", err)
	}
	return t, nil
}

// reserve debits amount from the owner's available balance inside tx.
func (s *LedgerService) reserve(ctx context.Context, tx *gorm.DB, ownerID uint, currency string, amount decimal.Decimal) (*models.Wallet, error) {
	wallets := repository.NewWalletRepository(tx)
	wallet, err := wallets.LockOrCreate(ctx, ownerID, currency, s.isPlatform(ownerID))
	if err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}
	wallet.Balance = wallet.Balance.Sub(amount)
	wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(amount)
	if err := wallets.SaveBalances(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// restore reverses a reserve inside tx.
func (s *LedgerService) restore(ctx context.Context, tx *gorm.DB, ownerID uint, currency string, amount decimal.Decimal) (*models.Wallet, error) {
	wallets := repository.NewWalletRepository(tx)
	wallet, err := wallets.LockOrCreate(ctx, ownerID, currency, s.isPlatform(ownerID))
	if err != nil {
		return nil, err
	}
	withdrawn := wallet.TotalWithdrawn.Sub(amount)
	if withdrawn.IsNegative() {
		return nil, fmt.Errorf("wallet %d: reversal of %s exceeds total withdrawn %s", wallet.ID, amount, wallet.TotalWithdrawn)
	}
	wallet.Balance = wallet.Balance.Add(amount)
	wallet.TotalWithdrawn = withdrawn
	if err := wallets.SaveBalances(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// lockWallets locks each distinct owner's wallet in ascending owner order so
// concurrent multi-wallet units cannot deadlock.
func (s *LedgerService) lockWallets(ctx context.Context, wallets *repository.WalletRepository, currency string, owners ...uint) (map[uint]*models.Wallet, error) {
	ids := make([]uint, 0, len(owners))
	seen := make(map[uint]bool, len(owners))
	for _, id := range owners {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[uint]*models.Wallet, len(ids))
	for _, id := range ids {
		w, err := wallets.LockOrCreate(ctx, id, currency, s.isPlatform(id))
		if err != nil {
			return nil, err
		}
		locked[id] = w
	}
	return locked, nil
}

func (s *LedgerService) newTransaction(ownerID uint, typ domain.TxType, amount decimal.Decimal, currency string, status domain.TxStatus, description string, ref *models.Reference, meta datatypes.JSON) *models.Transaction {
	t := &models.Transaction{
		OwnerID:     ownerID,
		Type:        typ,
		Amount:      amount,
		Currency:    currency,
		Status:      status,
		Description: description,
		Metadata:    meta,
	}
	t.SetReference(ref)
	if status == domain.TxStatusCompleted {
		now := time.Now()
		t.CompletedAt = &now
	}
	return t
}

// resolveCurrency normalizes a caller-supplied code and checks it against the
// configured currencies. Empty means the default currency.
func (s *LedgerService) resolveCurrency(currency string) (string, error) {
	currency = normalizeCurrency(currency)
	if currency == "" {
		return s.currency, nil
	}
	if !s.currencies[currency] {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	return currency, nil
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// isCurrencyCode accepts three-letter ISO 4217 style codes.
func isCurrencyCode(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (s *LedgerService) isPlatform(ownerID uint) bool {
	return s.platformID != 0 && ownerID == s.platformID
}

func credit(w *models.Wallet, amount decimal.Decimal) {
	w.Balance = w.Balance.Add(amount)
	w.TotalEarned = w.TotalEarned.Add(amount)
}

// validAmount accepts positive amounts expressed in whole cents.
func validAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(money.Round2(d))
}

func validateCredit(req CreditRequest) error {
	if req.OwnerID == 0 {
		return ErrInvalidOwner
	}
	if !req.Type.Valid() || req.Type.IsDebit() || req.Type == domain.TxTypePendingRelease {
		return ErrInvalidType
	}
	if !validAmount(req.Amount) {
		return ErrInvalidAmount
	}
	return validateReference(req.Reference)
}

func validateReference(ref *models.Reference) error {
	if ref == nil {
		return nil
	}
	if !ref.Kind.Valid() || ref.ID == "" {
		return ErrInvalidReference
	}
	return nil
}

// checkSign enforces that debits are negative and everything else is not.
func checkSign(typ domain.TxType, amount decimal.Decimal) error {
	if typ.IsDebit() {
		if !amount.IsNegative() {
			return ErrSignMismatch
		}
		return nil
	}
	if amount.IsNegative() {
		return ErrSignMismatch
	}
	return nil
}

// duplicateKey maps a unique violation on the idempotency key, raised when a
// concurrent split for the same reference committed first.
func duplicateKey(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateReference
	}
	return err
}

func encodeMetadata(meta map[string]interface{}) (datatypes.JSON, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrInvalidReference, err)
	}
	return datatypes.JSON(b), nil
}
