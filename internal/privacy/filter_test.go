package privacy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mintelli/mintelli/internal/audit"
	"github.com/mintelli/mintelli/internal/findata"
)

func testDataset() findata.Dataset {
	date := time.Date(2025, time.March, 1, 15, 30, 0, 0, time.UTC)
	return findata.Dataset{
		Transactions: []findata.Transaction{
			{ID: "t1", Amount: -120.50, Date: date, Category: "groceries", Merchant: "MegaMart", Description: "weekly shop"},
			{ID: "t2", Amount: 5000, Date: date.AddDate(0, 0, 1), Category: "salary", Merchant: "Acme Corp"},
		},
		Accounts: []findata.Account{
			{ID: "a1", Name: "Everyday Checking 9876", Type: "checking", Balance: 12345.67},
		},
		CreditScore: map[string]any{"score": 760, "bureau": "CTOS"},
	}
}

func newTestFilter(t *testing.T) (*Filter, *Service, *audit.Trail) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	trail := audit.NewTrail(audit.NewMemorySink(), audit.DefaultFlushThreshold, logger)
	repo := NewMemoryRepository()
	svc := NewService(repo, trail, logger).WithClock(testClock())
	gate := NewGate(repo, trail).WithClock(testClock())
	filter := NewFilter(gate, logger, DefaultMinimizationCap).WithClock(testClock())
	return filter, svc, trail
}

func TestFilterDeniedCategoriesAreEmpty(t *testing.T) {
	filter, svc, _ := newTestFilter(t)
	ctx := context.Background()

	profile, err := svc.GetOrCreateProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}

	out := filter.Apply(profile, testDataset())

	// Default credit_score permission is None.
	if out.Metadata.AccessLog["credit_score"] != findata.OutcomeDenied {
		t.Fatalf("expected credit_score denied, got %s", out.Metadata.AccessLog["credit_score"])
	}
	if len(out.CreditScore) != 0 {
		t.Fatalf("denied category must be empty, got %v", out.CreditScore)
	}
	if out.Metadata.AccessLog["transactions"] != findata.OutcomeGranted {
		t.Fatalf("expected transactions granted, got %s", out.Metadata.AccessLog["transactions"])
	}
	if out.Metadata.AccessLog["investments"] != findata.OutcomeNoData {
		t.Fatalf("expected investments no_data, got %s", out.Metadata.AccessLog["investments"])
	}
	if len(out.Metadata.AccessLog) != len(Registry()) {
		t.Fatalf("access log must cover the whole registry, got %d entries", len(out.Metadata.AccessLog))
	}
}

func TestFilterMinimizesLimitedTransactions(t *testing.T) {
	filter, svc, _ := newTestFilter(t)
	ctx := context.Background()

	profile, err := svc.GetOrCreateProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}

	out := filter.Apply(profile, testDataset())
	if len(out.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(out.Transactions))
	}
	for _, tx := range out.Transactions {
		if tx.Merchant != "" || tx.Description != "" {
			t.Fatalf("minimized transaction must drop merchant and description, got %+v", tx)
		}
		if !tx.Date.Equal(tx.Date.Truncate(24 * time.Hour)) {
			t.Fatalf("minimized date must be day-truncated, got %v", tx.Date)
		}
	}

	acc := out.Accounts[0]
	if acc.Name != "****9876" {
		t.Fatalf("expected masked account name, got %q", acc.Name)
	}
	if acc.Balance != 12300 {
		t.Fatalf("expected balance rounded to nearest hundred, got %v", acc.Balance)
	}
}

func TestFilterMinimizationCap(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	trail := audit.NewTrail(audit.NewMemorySink(), audit.DefaultFlushThreshold, logger)
	repo := NewMemoryRepository()
	svc := NewService(repo, trail, logger).WithClock(testClock())
	gate := NewGate(repo, trail).WithClock(testClock())
	filter := NewFilter(gate, logger, 5).WithClock(testClock())
	ctx := context.Background()

	profile, err := svc.GetOrCreateProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}

	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	ds := findata.Dataset{}
	for i := 0; i < 20; i++ {
		ds.Transactions = append(ds.Transactions, findata.Transaction{
			ID:     string(rune('a' + i)),
			Amount: -10,
			Date:   base.AddDate(0, 0, i),
		})
	}

	out := filter.Apply(profile, ds)
	if len(out.Transactions) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(out.Transactions))
	}
	// Most recent first.
	if !out.Transactions[0].Date.After(out.Transactions[4].Date) {
		t.Fatalf("expected most recent transactions kept, got %v .. %v",
			out.Transactions[0].Date, out.Transactions[4].Date)
	}
}

func TestFilterFullGrantSkipsMinimization(t *testing.T) {
	filter, svc, _ := newTestFilter(t)
	ctx := context.Background()

	grant := true
	profile, err := svc.UpdatePermissions(ctx, "user-1", map[string]PermissionUpdate{
		"transactions": {Grant: &grant},
		"accounts":     {Grant: &grant},
	})
	if err != nil {
		t.Fatalf("UpdatePermissions: %v", err)
	}

	out := filter.Apply(profile, testDataset())
	if out.Transactions[0].Merchant == "" {
		t.Fatal("full grant must keep merchant detail")
	}
	if out.Accounts[0].Name != "Everyday Checking 9876" {
		t.Fatalf("full grant must keep account name, got %q", out.Accounts[0].Name)
	}
	if out.Accounts[0].Balance != 12345.67 {
		t.Fatalf("full grant must keep exact balance, got %v", out.Accounts[0].Balance)
	}
}

func TestFilterLogsGrantedAccess(t *testing.T) {
	filter, svc, trail := newTestFilter(t)
	ctx := context.Background()

	profile, err := svc.GetOrCreateProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}

	filter.Apply(profile, testDataset())
	// transactions and accounts carry data and are granted by default.
	if n := trail.CountByAction("user-1", audit.ActionDataAccessed); n != 2 {
		t.Fatalf("expected 2 access entries, got %d", n)
	}
}
