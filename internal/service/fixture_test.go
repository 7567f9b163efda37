package service

import (
	"context"
	"fmt"
	"testing"

	"wallet-ledger/config"
	"wallet-ledger/internal/database"
	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"
	"wallet-ledger/internal/repository"
	"wallet-ledger/pkg/money"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ledgerFixture struct {
	ctx         context.Context
	db          *gorm.DB
	ledger      *LedgerService
	withdrawals *WithdrawalService
	reporting   *ReportingService

	platform models.User
	seller   models.User
	buyer    models.User
	admin    models.User
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		Currency:            "USD",
		PlatformFeePercent:  "15",
		MinWithdrawalAmount: "1.00",
	}
}

// openTestDB returns a migrated in-memory database on a single connection,
// so concurrent callers serialize the way row locks would serialize them.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupLedgerTest(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{ctx: context.Background(), db: openTestDB(t)}
	users := repository.NewUserRepository(f.db)
	f.platform = mustCreateUser(t, users, "platform", domain.RolePlatform)
	f.seller = mustCreateUser(t, users, "seller", domain.RoleUser)
	f.buyer = mustCreateUser(t, users, "buyer", domain.RoleUser)
	f.admin = mustCreateUser(t, users, "admin", domain.RoleAdmin)

	ledger, err := NewLedgerService(f.db, testLedgerConfig(), f.platform.ID, zap.NewNop())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	f.ledger = ledger
	f.withdrawals = NewWithdrawalService(f.db, ledger, users, money.MustParse("1.00"), zap.NewNop())
	f.reporting = NewReportingService(f.db, "USD", nil, 0, zap.NewNop())
	return f
}

func mustCreateUser(t *testing.T, users *repository.UserRepository, name, role string) models.User {
	t.Helper()
	u := models.User{Username: name, Email: fmt.Sprintf("%s@example.com", name), Role: role}
	if err := users.Create(context.Background(), &u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func amount(s string) decimal.Decimal { return money.MustParse(s) }

// split runs a product purchase for the seller under a unique order reference.
func (f *ledgerFixture) split(t *testing.T, total, orderID string) *SplitResult {
	t.Helper()
	res, err := f.ledger.SplitPayment(f.ctx, SplitRequest{
		Amount:      amount(total),
		SellerID:    f.seller.ID,
		Type:        domain.TxTypeProductPurchase,
		Description: "order " + orderID,
		Reference:   &models.Reference{Kind: domain.RefOrder, ID: orderID},
	})
	if err != nil {
		t.Fatalf("split %s: %v", total, err)
	}
	return res
}

func (f *ledgerFixture) wallet(t *testing.T, ownerID uint) *models.Wallet {
	t.Helper()
	w, err := repository.NewWalletRepository(f.db).GetByOwner(f.ctx, ownerID, "USD")
	if err != nil {
		t.Fatalf("wallet %d: %v", ownerID, err)
	}
	return w
}

func (f *ledgerFixture) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (f *ledgerFixture) bankRequest(ownerID uint, amt string) WithdrawalRequest {
	return WithdrawalRequest{
		OwnerID: ownerID,
		Amount:  amount(amt),
		Method:  domain.MethodBankTransfer,
		PayoutDetails: models.PayoutDetails{
			BankName:      "First Bank",
			AccountName:   "Seller A",
			AccountNumber: "0001112223",
		},
	}
}

func assertDecimal(t *testing.T, what string, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(amount(want)) {
		t.Fatalf("%s want %s got %s", what, want, got)
	}
}

func (f *ledgerFixture) assertConsistent(t *testing.T, ownerID uint) {
	t.Helper()
	r, err := f.reporting.Reconcile(f.ctx, ownerID, "USD")
	if err != nil {
		t.Fatalf("reconcile %d: %v", ownerID, err)
	}
	if !r.Consistent {
		t.Fatalf("owner %d drift %s (balance %s pending %s ledger %s)", ownerID, r.Drift, r.Balance, r.PendingBalance, r.LedgerTotal)
	}
}
