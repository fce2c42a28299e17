package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/mintelli/mintelli/internal/findata"
)

var spendNow = time.Date(2025, time.March, 31, 12, 0, 0, 0, time.UTC)

func expense(id string, amount float64, daysAgo int, category string) findata.Transaction {
	return findata.Transaction{
		ID:       id,
		Amount:   -amount,
		Date:     spendNow.AddDate(0, 0, -daysAgo),
		Category: category,
	}
}

func TestAnalyzeSpendingBreakdown(t *testing.T) {
	txs := []findata.Transaction{
		expense("t1", 300, 2, "groceries"),
		expense("t2", 100, 5, "groceries"),
		expense("t3", 600, 10, "rent"),
		{ID: "t4", Amount: 5000, Date: spendNow.AddDate(0, 0, -3), Category: "salary"},
		expense("t5", 50, 40, "groceries"), // outside the window
	}

	out := AnalyzeSpending(txs, 30, spendNow)
	if out.TotalSpent != 1000 {
		t.Fatalf("expected total 1000, got %v", out.TotalSpent)
	}
	if out.DailyAverage != round2(1000.0/30) {
		t.Fatalf("expected daily average %v, got %v", round2(1000.0/30), out.DailyAverage)
	}
	if len(out.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(out.Categories))
	}
	// Sorted by amount descending.
	if out.Categories[0].Category != "rent" || out.Categories[0].Amount != 600 {
		t.Fatalf("expected rent first, got %+v", out.Categories[0])
	}
	if out.Categories[1].Percent != 40 {
		t.Fatalf("expected groceries at 40%%, got %v", out.Categories[1].Percent)
	}
	if out.Categories[1].Count != 2 || out.Categories[1].Average != 200 {
		t.Fatalf("unexpected groceries stats %+v", out.Categories[1])
	}
}

func TestSpendingTrendRequiresTwoWeeks(t *testing.T) {
	txs := []findata.Transaction{expense("t1", 100, 1, "misc")}
	out := AnalyzeSpending(txs, 7, spendNow)
	if out.Trend != TrendInsufficient {
		t.Fatalf("expected insufficient_data for 7-day window, got %s", out.Trend)
	}
}

func TestSpendingTrendDirections(t *testing.T) {
	cases := []struct {
		name          string
		olderDaily    float64
		newerDaily    float64
		expectedTrend string
	}{
		{"increasing", 10, 20, TrendIncreasing},
		{"decreasing", 20, 10, TrendDecreasing},
		{"stable", 10, 10.5, TrendStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var txs []findata.Transaction
			// 30-day window splits at day 15.
			for d := 1; d <= 15; d++ {
				txs = append(txs, expense(fmt.Sprintf("n%d", d), tc.newerDaily, d-1, "misc"))
			}
			for d := 16; d <= 30; d++ {
				txs = append(txs, expense(fmt.Sprintf("o%d", d), tc.olderDaily, d, "misc"))
			}
			out := AnalyzeSpending(txs, 30, spendNow)
			if out.Trend != tc.expectedTrend {
				t.Fatalf("expected %s, got %s", tc.expectedTrend, out.Trend)
			}
		})
	}
}

func TestDetectAnomaliesFlagsOutlier(t *testing.T) {
	txs := []findata.Transaction{
		expense("t1", 100, 1, "misc"),
		expense("t2", 100, 2, "misc"),
		expense("t3", 100, 3, "misc"),
		expense("t4", 100, 4, "misc"),
		expense("t5", 10000, 5, "electronics"),
	}

	out := AnalyzeSpending(txs, 30, spendNow)
	if len(out.Anomalies) != 1 {
		t.Fatalf("expected exactly one anomaly, got %d", len(out.Anomalies))
	}
	a := out.Anomalies[0]
	if a.TransactionID != "t5" {
		t.Fatalf("expected t5 flagged, got %s", a.TransactionID)
	}
	if a.Severity != "high" {
		t.Fatalf("expected high severity, got %s", a.Severity)
	}
	if a.ZScore <= 3 {
		t.Fatalf("expected z-score above 3, got %v", a.ZScore)
	}
}

func TestDetectAnomaliesZeroVariance(t *testing.T) {
	var txs []findata.Transaction
	for i := 0; i < 10; i++ {
		txs = append(txs, expense(fmt.Sprintf("t%d", i), 100, i, "misc"))
	}
	out := AnalyzeSpending(txs, 30, spendNow)
	if len(out.Anomalies) != 0 {
		t.Fatalf("identical amounts must yield no anomalies, got %d", len(out.Anomalies))
	}
}

func TestDetectAnomaliesNeedsFiveExpenses(t *testing.T) {
	txs := []findata.Transaction{
		expense("t1", 100, 1, "misc"),
		expense("t2", 100, 2, "misc"),
		expense("t3", 10000, 3, "misc"),
	}
	out := AnalyzeSpending(txs, 30, spendNow)
	if len(out.Anomalies) != 0 {
		t.Fatalf("fewer than five expenses must yield no anomalies, got %d", len(out.Anomalies))
	}
}
