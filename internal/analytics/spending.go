package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/mintelli/mintelli/internal/findata"
)

// Spending trend directions.
const (
	TrendIncreasing   = "increasing"
	TrendDecreasing   = "decreasing"
	TrendStable       = "stable"
	TrendInsufficient = "insufficient_data"
)

// CategorySpend is one category's share of spending in the window.
type CategorySpend struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Percent  float64 `json:"percent"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
}

// Anomaly is a statistically unusual expense.
type Anomaly struct {
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Category      string    `json:"category"`
	Date          time.Time `json:"date"`
	ZScore        float64   `json:"z_score"`
	Severity      string    `json:"severity"`
}

// SpendingAnalysis is the spending report for a trailing window.
type SpendingAnalysis struct {
	WindowDays   int             `json:"window_days"`
	TotalSpent   float64         `json:"total_spent"`
	DailyAverage float64         `json:"daily_average"`
	Categories   []CategorySpend `json:"categories"`
	Trend        string          `json:"trend"`
	Anomalies    []Anomaly       `json:"anomalies"`
}

// AnalyzeSpending breaks down expenses over the trailing window ending at
// now. Expenses are transactions with negative amounts; magnitudes are used
// throughout.
func AnalyzeSpending(txs []findata.Transaction, windowDays int, now time.Time) SpendingAnalysis {
	if windowDays <= 0 {
		windowDays = 30
	}
	cutoff := now.AddDate(0, 0, -windowDays)

	var expenses []findata.Transaction
	for _, tx := range txs {
		if tx.Amount < 0 && !tx.Date.Before(cutoff) && !tx.Date.After(now) {
			expenses = append(expenses, tx)
		}
	}

	analysis := SpendingAnalysis{WindowDays: windowDays, Trend: TrendInsufficient}
	var total float64
	byCategory := make(map[string]*CategorySpend)
	for _, tx := range expenses {
		amt := -tx.Amount
		total += amt
		cs, ok := byCategory[tx.Category]
		if !ok {
			cs = &CategorySpend{Category: tx.Category}
			byCategory[tx.Category] = cs
		}
		cs.Amount += amt
		cs.Count++
	}

	analysis.TotalSpent = round2(total)
	analysis.DailyAverage = round2(total / float64(windowDays))

	for _, cs := range byCategory {
		if total > 0 {
			cs.Percent = round2(cs.Amount / total * 100)
		}
		cs.Average = round2(cs.Amount / float64(cs.Count))
		cs.Amount = round2(cs.Amount)
		analysis.Categories = append(analysis.Categories, *cs)
	}
	sort.Slice(analysis.Categories, func(i, j int) bool {
		return analysis.Categories[i].Amount > analysis.Categories[j].Amount
	})

	analysis.Trend = spendingTrend(expenses, windowDays, now)
	analysis.Anomalies = detectAnomalies(expenses)
	return analysis
}

// spendingTrend splits the window in half and compares daily spend rates.
// Windows shorter than 14 days cannot support a trend call.
func spendingTrend(expenses []findata.Transaction, windowDays int, now time.Time) string {
	if windowDays < 14 {
		return TrendInsufficient
	}
	half := windowDays / 2
	mid := now.AddDate(0, 0, -half)

	var older, newer float64
	for _, tx := range expenses {
		if tx.Date.Before(mid) {
			older += -tx.Amount
		} else {
			newer += -tx.Amount
		}
	}

	olderDaily := older / float64(windowDays-half)
	newerDaily := newer / float64(half)
	if olderDaily == 0 {
		if newerDaily == 0 {
			return TrendStable
		}
		return TrendIncreasing
	}
	change := (newerDaily - olderDaily) / olderDaily
	switch {
	case change > 0.10:
		return TrendIncreasing
	case change < -0.10:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// maxZScore caps the reported z-score when the baseline has no variance at
// all, which would otherwise divide by zero.
const maxZScore = 99

// detectAnomalies flags expenses whose magnitude deviates from the rest of
// the expense population, scoring each against the population standard
// deviation of the other expenses so an extreme value cannot drown out its
// own baseline. Fewer than five expenses or an all-identical population
// yields no anomalies.
func detectAnomalies(expenses []findata.Transaction) []Anomaly {
	if len(expenses) < 5 {
		return nil
	}
	amounts := make([]float64, len(expenses))
	for i, tx := range expenses {
		amounts[i] = -tx.Amount
	}
	if populationStdDev(amounts) == 0 {
		return nil
	}

	var sum, sumSq float64
	for _, a := range amounts {
		sum += a
		sumSq += a * a
	}
	n := float64(len(amounts))

	var out []Anomaly
	for i, tx := range expenses {
		rest := n - 1
		restMean := (sum - amounts[i]) / rest
		restVar := (sumSq-amounts[i]*amounts[i])/rest - restMean*restMean
		if restVar < 0 {
			restVar = 0
		}
		restStd := math.Sqrt(restVar)

		var z float64
		switch {
		case restStd > 0:
			z = (amounts[i] - restMean) / restStd
		case amounts[i] != restMean:
			z = math.Copysign(maxZScore, amounts[i]-restMean)
		}
		if math.Abs(z) > maxZScore {
			z = math.Copysign(maxZScore, z)
		}
		if math.Abs(z) <= 2 {
			continue
		}
		severity := "medium"
		if math.Abs(z) > 3 {
			severity = "high"
		}
		out = append(out, Anomaly{
			TransactionID: tx.ID,
			Amount:        round2(amounts[i]),
			Category:      tx.Category,
			Date:          tx.Date,
			ZScore:        round2(z),
			Severity:      severity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].ZScore) > math.Abs(out[j].ZScore)
	})
	return out
}
