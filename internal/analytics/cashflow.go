// Package analytics implements the financial analysis algorithms: spending
// breakdowns, cash-flow forecasting, affordability checks, debt payoff
// simulation, portfolio review, and the composite health score.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/mintelli/mintelli/internal/findata"
)

// MonthlyFlow aggregates one calendar month of transactions.
type MonthlyFlow struct {
	Year     int     `json:"year"`
	Month    int     `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// monthKey identifies a calendar month.
type monthKey struct {
	year  int
	month time.Month
}

// monthlyFlows buckets transactions into calendar months, oldest first.
// Negative amounts count as expenses, positive as income.
func monthlyFlows(txs []findata.Transaction) []MonthlyFlow {
	buckets := make(map[monthKey]*MonthlyFlow)
	for _, tx := range txs {
		key := monthKey{tx.Date.Year(), tx.Date.Month()}
		flow, ok := buckets[key]
		if !ok {
			flow = &MonthlyFlow{Year: key.year, Month: int(key.month)}
			buckets[key] = flow
		}
		if tx.Amount < 0 {
			flow.Expenses += -tx.Amount
		} else {
			flow.Income += tx.Amount
		}
	}

	out := make([]MonthlyFlow, 0, len(buckets))
	for _, flow := range buckets {
		flow.Net = flow.Income - flow.Expenses
		out = append(out, *flow)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// recentFlows keeps at most the last n months of flows.
func recentFlows(flows []MonthlyFlow, n int) []MonthlyFlow {
	if len(flows) <= n {
		return flows
	}
	return flows[len(flows)-n:]
}

// MonthlyAverages returns the average monthly income and expenses over the
// most recent n months with activity.
func MonthlyAverages(txs []findata.Transaction, months int) (avgIncome, avgExpenses float64) {
	flows := recentFlows(monthlyFlows(txs), months)
	if len(flows) == 0 {
		return 0, 0
	}
	var income, expenses float64
	for _, f := range flows {
		income += f.Income
		expenses += f.Expenses
	}
	n := float64(len(flows))
	return income / n, expenses / n
}

// mean returns the arithmetic mean, 0 for empty input.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationStdDev divides by n. Anomaly z-scores use the population form.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// sampleStdDev divides by n-1 and returns 0 when fewer than two values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
