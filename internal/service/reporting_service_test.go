package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/models"

	"go.uber.org/zap"
)

type memoryStatsCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
	sets int
	fail bool
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{data: map[string][]byte{}}
}

func (c *memoryStatsCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, false, errors.New("cache down")
	}
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memoryStatsCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.sets++
	c.data[key] = value
	return nil
}

func TestListTransactionsPagesNewestFirst(t *testing.T) {
	f := setupLedgerTest(t)
	for i := 0; i < 5; i++ {
		f.split(t, "10.00", fmt.Sprintf("o-%d", i))
	}
	if _, err := f.withdrawals.RequestWithdrawal(f.ctx, f.bankRequest(f.seller.ID, "5.00")); err != nil {
		t.Fatalf("request: %v", err)
	}

	page, err := f.reporting.ListTransactions(f.ctx, &f.seller.ID, 1, 4, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 6 || len(page.Items) != 4 {
		t.Fatalf("want total 6 and 4 items got %d/%d", page.Total, len(page.Items))
	}
	if page.Items[0].Type != domain.TxTypeWithdrawal {
		t.Fatalf("newest entry want withdrawal got %s", page.Items[0].Type)
	}

	second, err := f.reporting.ListTransactions(f.ctx, &f.seller.ID, 2, 4, "", "")
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second.Items) != 2 {
		t.Fatalf("page 2 want 2 items got %d", len(second.Items))
	}

	purchases, err := f.reporting.ListTransactions(f.ctx, &f.seller.ID, 1, 0, domain.TxTypeProductPurchase, "")
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if purchases.Total != 5 || purchases.Limit != 20 {
		t.Fatalf("want 5 purchases at default limit got %d at %d", purchases.Total, purchases.Limit)
	}

	all, err := f.reporting.ListTransactions(f.ctx, nil, 1, 100, "", domain.TxStatusCompleted)
	if err != nil {
		t.Fatalf("all owners: %v", err)
	}
	if all.Total != 10 {
		t.Fatalf("completed entries across owners want 10 got %d", all.Total)
	}

	if _, err := f.reporting.ListTransactions(f.ctx, &f.seller.ID, 1, 10, domain.TxType("bogus"), ""); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("bad type filter want ErrInvalidType got %v", err)
	}
}

func TestListWithdrawalsPerOwnerAndAll(t *testing.T) {
	f := fundedSeller(t)
	if _, _, err := f.ledger.CreditBalance(f.ctx, CreditRequest{OwnerID: f.buyer.ID, Amount: amount("30")}); err != nil {
		t.Fatalf("fund buyer: %v", err)
	}
	w1, err := f.withdrawals.RequestWithdrawal(f.ctx, f.bankRequest(f.seller.ID, "10.00"))
	if err != nil {
		t.Fatalf("seller request: %v", err)
	}
	if _, err := f.withdrawals.RequestWithdrawal(f.ctx, f.bankRequest(f.seller.ID, "11.00")); err != nil {
		t.Fatalf("seller request: %v", err)
	}
	if _, err := f.withdrawals.RequestWithdrawal(f.ctx, f.bankRequest(f.buyer.ID, "12.00")); err != nil {
		t.Fatalf("buyer request: %v", err)
	}
	if _, err := f.withdrawals.CancelWithdrawal(f.ctx, w1.ID, f.seller.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	mine, err := f.reporting.ListWithdrawals(f.ctx, &f.seller.ID, 1, 10, "")
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if mine.Total != 2 {
		t.Fatalf("seller withdrawals want 2 got %d", mine.Total)
	}
	pending, err := f.reporting.ListWithdrawals(f.ctx, nil, 1, 10, domain.WithdrawalPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if pending.Total != 2 {
		t.Fatalf("pending withdrawals across owners want 2 got %d", pending.Total)
	}
}

func TestWalletStatsUsesCache(t *testing.T) {
	f := setupLedgerTest(t)
	f.split(t, "100.00", "o-1")
	if _, err := f.withdrawals.RequestWithdrawal(f.ctx, f.bankRequest(f.seller.ID, "20.00")); err != nil {
		t.Fatalf("request: %v", err)
	}

	c := newMemoryStatsCache()
	reporting := NewReportingService(f.db, "USD", c, time.Minute, zap.NewNop())
	stats, err := reporting.WalletStats(f.ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	assertDecimal(t, "total balance", "80.00", stats.TotalBalance)
	assertDecimal(t, "platform balance", "15.00", stats.PlatformBalance)
	assertDecimal(t, "platform revenue", "15.00", stats.PlatformRevenue)
	assertDecimal(t, "total withdrawn", "20.00", stats.TotalWithdrawn)
	assertDecimal(t, "open withdrawal amount", "20.00", stats.OpenWithdrawalAmount)
	if stats.WalletCount != 2 || stats.OpenWithdrawals != 1 || stats.TotalTransactions != 3 {
		t.Fatalf("counts want 2 wallets/1 open/3 tx got %d/%d/%d", stats.WalletCount, stats.OpenWithdrawals, stats.TotalTransactions)
	}
	if c.sets != 1 {
		t.Fatalf("cache sets want 1 got %d", c.sets)
	}

	f.split(t, "100.00", "o-2")
	cached, err := reporting.WalletStats(f.ctx)
	if err != nil {
		t.Fatalf("cached stats: %v", err)
	}
	if c.hits != 1 {
		t.Fatalf("cache hits want 1 got %d", c.hits)
	}
	assertDecimal(t, "cached total balance", "80.00", cached.TotalBalance)
}

func TestWalletStatsSurvivesCacheOutage(t *testing.T) {
	f := setupLedgerTest(t)
	f.split(t, "100.00", "o-1")
	c := newMemoryStatsCache()
	c.fail = true
	stats, err := NewReportingService(f.db, "USD", c, time.Minute, zap.NewNop()).WalletStats(f.ctx)
	if err != nil {
		t.Fatalf("stats with failing cache: %v", err)
	}
	assertDecimal(t, "total balance", "100.00", stats.TotalBalance)
}

func TestReconcileDetectsDrift(t *testing.T) {
	f := fundedSeller(t)
	w, err := f.withdrawals.RequestWithdrawal(f.ctx, f.bankRequest(f.seller.ID, "30.00"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.withdrawals.ProcessWithdrawal(f.ctx, w.ID, f.admin.ID, domain.DecisionReject, "wrong account"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	f.assertConsistent(t, f.seller.ID)

	empty, err := f.reporting.Reconcile(f.ctx, f.buyer.ID, "")
	if err != nil {
		t.Fatalf("reconcile empty: %v", err)
	}
	if !empty.Consistent || !empty.LedgerTotal.IsZero() {
		t.Fatalf("owner without wallet want consistent zero got %+v", empty)
	}

	if err := f.db.Model(&models.Wallet{}).Where("owner_id = ?", f.seller.ID).
		Update("balance", amount("90.00")).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}
	report, err := f.reporting.Reconcile(f.ctx, f.seller.ID, "USD")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Consistent {
		t.Fatalf("tampered wallet reported consistent")
	}
	assertDecimal(t, "drift", "5.00", report.Drift)
	assertDecimal(t, "ledger total", "85.00", report.LedgerTotal)
}
