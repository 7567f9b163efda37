package repository

import (
	"context"
	"errors"
	"testing"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRepoTest(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.User{}, &models.Wallet{}, &models.Transaction{}, &models.Withdrawal{}, &models.SystemSetting{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestWalletGetOrCreateAndLock(t *testing.T) {
	db := setupRepoTest(t)
	ctx := context.Background()
	repo := NewWalletRepository(db)

	if _, err := repo.GetByOwner(ctx, 5, "USD"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("missing wallet want ErrRecordNotFound got %v", err)
	}
	a, err := repo.GetOrCreate(ctx, 5, "USD", false)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		b, err := NewWalletRepository(tx).LockOrCreate(ctx, 5, "USD", false)
		if err != nil {
			return err
		}
		if b.ID != a.ID {
			t.Fatalf("lock returned wallet %d want %d", b.ID, a.ID)
		}
		b.Balance = decimal.RequireFromString("12.34")
		return NewWalletRepository(tx).SaveBalances(ctx, b)
	})
	if err != nil {
		t.Fatalf("locked update: %v", err)
	}
	got, _ := repo.GetByOwner(ctx, 5, "USD")
	if !got.Balance.Equal(decimal.RequireFromString("12.34")) || got.LastTransactionAt == nil {
		t.Fatalf("saved balance want 12.34 with timestamp got %s", got.Balance)
	}

	eur, err := repo.GetOrCreate(ctx, 5, "EUR", false)
	if err != nil || eur.ID == a.ID {
		t.Fatalf("second currency want new wallet, got %v err %v", eur, err)
	}
	list, _ := repo.ListByOwner(ctx, 5)
	if len(list) != 2 || list[0].Currency != "EUR" {
		t.Fatalf("wallets by owner want EUR,USD got %d", len(list))
	}
}

func TestTransactionTransitionIsGuarded(t *testing.T) {
	db := setupRepoTest(t)
	ctx := context.Background()
	repo := NewTransactionRepository(db)
	tx := &models.Transaction{
		OwnerID:  1,
		Type:     domain.TxTypeWithdrawal,
		Amount:   decimal.RequireFromString("-10"),
		Currency: "USD",
		Status:   domain.TxStatusPending,
	}
	if err := repo.Create(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := repo.Transition(ctx, tx.ID, domain.TxStatusPending, domain.TxStatusFailed, "rejected")
	if err != nil || n != 1 {
		t.Fatalf("first transition want 1 row got %d err %v", n, err)
	}
	n, err = repo.Transition(ctx, tx.ID, domain.TxStatusPending, domain.TxStatusCompleted, "")
	if err != nil || n != 0 {
		t.Fatalf("second transition want 0 rows got %d err %v", n, err)
	}
	got, _ := repo.GetByID(ctx, tx.ID)
	if got.Status != domain.TxStatusFailed || got.FailedReason != "rejected" || got.CompletedAt != nil {
		t.Fatalf("want failed/rejected without completion got %s/%q", got.Status, got.FailedReason)
	}
	sum, err := repo.LedgerSum(ctx, 1, "USD")
	if err != nil || !sum.IsZero() {
		t.Fatalf("failed entry must not count, sum %s err %v", sum, err)
	}
}

func TestIdempotencyKeyIsUnique(t *testing.T) {
	db := setupRepoTest(t)
	ctx := context.Background()
	repo := NewTransactionRepository(db)
	key := "split:order:o-1:seller"
	mk := func() *models.Transaction {
		k := key
		return &models.Transaction{OwnerID: 1, Type: domain.TxTypeProductPurchase, Amount: decimal.NewFromInt(1),
			Currency: "USD", Status: domain.TxStatusCompleted, IdempotencyKey: &k}
	}
	if err := repo.Create(ctx, mk()); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := repo.Create(ctx, mk()); err == nil {
		t.Fatalf("duplicate idempotency key accepted")
	}
	seen, err := repo.ExistsByIdempotencyKey(ctx, key)
	if err != nil || !seen {
		t.Fatalf("key want present got %v err %v", seen, err)
	}
}

func TestWithdrawalTransitionFromSet(t *testing.T) {
	db := setupRepoTest(t)
	ctx := context.Background()
	repo := NewWithdrawalRepository(db)
	w := &models.Withdrawal{OwnerID: 1, Reference: "wd-1", Amount: decimal.NewFromInt(5), Currency: "USD",
		Method: domain.MethodGateway, Status: domain.WithdrawalProcessing}
	if err := repo.Create(ctx, w); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, _ := repo.Transition(ctx, w.ID, []domain.WithdrawalStatus{domain.WithdrawalPending}, map[string]interface{}{"status": domain.WithdrawalCancelled})
	if n != 0 {
		t.Fatalf("cancel from processing want 0 rows got %d", n)
	}
	n, _ = repo.Transition(ctx, w.ID, []domain.WithdrawalStatus{domain.WithdrawalPending, domain.WithdrawalProcessing}, map[string]interface{}{"status": domain.WithdrawalCompleted})
	if n != 1 {
		t.Fatalf("complete from processing want 1 row got %d", n)
	}
	count, total, err := repo.OpenTotals(ctx)
	if err != nil || count != 0 || !total.IsZero() {
		t.Fatalf("open totals want 0/0 got %d/%s err %v", count, total, err)
	}
}

func TestSettings(t *testing.T) {
	db := setupRepoTest(t)
	ctx := context.Background()
	repo := NewSettingRepository(db)
	if err := repo.SeedDefaults(ctx, map[string]string{domain.SettingMinWithdrawal: "1.00"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.Set(ctx, domain.SettingMinWithdrawal, "5.00"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := repo.SeedDefaults(ctx, map[string]string{domain.SettingMinWithdrawal: "1.00"}); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	v, err := repo.Get(ctx, domain.SettingMinWithdrawal)
	if err != nil || v != "5.00" {
		t.Fatalf("seeding must not overwrite, want 5.00 got %q err %v", v, err)
	}
	all, _ := repo.GetAll(ctx)
	if len(all) != 1 {
		t.Fatalf("settings want 1 got %d", len(all))
	}
}

func TestNormalizePage(t *testing.T) {
	cases := []struct{ page, limit, wantPage, wantLimit int }{
		{0, 0, 1, DefaultPageSize},
		{3, 50, 3, 50},
		{-1, 500, 1, DefaultPageSize},
	}
	for _, tc := range cases {
		p, l := NormalizePage(tc.page, tc.limit)
		if p != tc.wantPage || l != tc.wantLimit {
			t.Fatalf("NormalizePage(%d,%d) want %d,%d got %d,%d", tc.page, tc.limit, tc.wantPage, tc.wantLimit, p, l)
		}
	}
}
