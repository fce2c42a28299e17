package analytics

import (
	"time"

	"github.com/mintelli/mintelli/internal/findata"
)

// Forecast methods.
const (
	ForecastSeasonal     = "seasonal_cash_flow"
	ForecastConservative = "conservative_growth"
)

// seasonalFactors scale the average monthly net flow by calendar month.
var seasonalFactors = map[int]float64{
	1: 0.95, 2: 1.0, 3: 1.05, 4: 1.0, 5: 0.98, 6: 0.97,
	7: 1.02, 8: 1.0, 9: 1.05, 10: 1.1, 11: 1.08, 12: 0.92,
}

// ForecastPoint is one projected month.
type ForecastPoint struct {
	Year       int     `json:"year"`
	Month      int     `json:"month"`
	NetFlow    float64 `json:"net_flow"`
	Balance    float64 `json:"balance"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

// CashFlowForecast projects account balances forward.
type CashFlowForecast struct {
	Method          string          `json:"method"`
	StartingBalance float64         `json:"starting_balance"`
	AvgIncome       float64         `json:"avg_monthly_income"`
	AvgExpenses     float64         `json:"avg_monthly_expenses"`
	AvgNet          float64         `json:"avg_monthly_net"`
	Volatility      float64         `json:"volatility"`
	Points          []ForecastPoint `json:"points"`
}

// ForecastCashFlow projects monthsAhead months from now. With fewer than
// two months of history it falls back to conservative compounding growth
// of 0.5% per month with a flat 5% band.
func ForecastCashFlow(ds findata.Dataset, monthsAhead int, now time.Time) CashFlowForecast {
	if monthsAhead <= 0 {
		monthsAhead = 6
	}
	var balance float64
	for _, acc := range ds.Accounts {
		balance += acc.Balance
	}

	flows := recentFlows(monthlyFlows(ds.Transactions), 6)
	if len(flows) < 2 {
		return conservativeForecast(balance, monthsAhead, now)
	}

	var incomes, expenses, nets []float64
	for _, f := range flows {
		incomes = append(incomes, f.Income)
		expenses = append(expenses, f.Expenses)
		nets = append(nets, f.Net)
	}
	fc := CashFlowForecast{
		Method:          ForecastSeasonal,
		StartingBalance: round2(balance),
		AvgIncome:       round2(mean(incomes)),
		AvgExpenses:     round2(mean(expenses)),
		AvgNet:          round2(mean(nets)),
		Volatility:      round2(sampleStdDev(nets)),
	}

	avgNet := mean(nets)
	volatility := sampleStdDev(nets)
	current := balance
	for i := 1; i <= monthsAhead; i++ {
		at := now.AddDate(0, i, 0)
		factor := seasonalFactors[((int(at.Month())-1)%12)+1]
		flow := avgNet * factor
		current += flow
		band := 1.96 * volatility
		fc.Points = append(fc.Points, ForecastPoint{
			Year:       at.Year(),
			Month:      int(at.Month()),
			NetFlow:    round2(flow),
			Balance:    round2(current),
			LowerBound: round2(current - band),
			UpperBound: round2(current + band),
		})
	}
	return fc
}

func conservativeForecast(balance float64, monthsAhead int, now time.Time) CashFlowForecast {
	fc := CashFlowForecast{
		Method:          ForecastConservative,
		StartingBalance: round2(balance),
	}
	current := balance
	for i := 1; i <= monthsAhead; i++ {
		at := now.AddDate(0, i, 0)
		current *= 1.005
		fc.Points = append(fc.Points, ForecastPoint{
			Year:       at.Year(),
			Month:      int(at.Month()),
			NetFlow:    round2(current - current/1.005),
			Balance:    round2(current),
			LowerBound: round2(current * 0.95),
			UpperBound: round2(current * 1.05),
		})
	}
	return fc
}
