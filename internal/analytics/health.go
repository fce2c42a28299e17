package analytics

import (
	"math"

	"github.com/mintelli/mintelli/internal/findata"
)

// Health score bands.
const (
	HealthExcellent = "excellent"
	HealthGood      = "good"
	HealthFair      = "fair"
	HealthPoor      = "poor"
)

// HealthComponent is one weighted factor of the health score.
type HealthComponent struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// HealthScore is the composite financial health result.
type HealthScore struct {
	Score      float64           `json:"score"`
	Band       string            `json:"band"`
	Components []HealthComponent `json:"components"`
	NetWorth   float64           `json:"net_worth"`
}

// ScoreHealth computes the weighted composite health score. Every component
// is clamped to [0, 100] before weighting, so the composite is too.
func ScoreHealth(ds findata.Dataset) HealthScore {
	flows := recentFlows(monthlyFlows(ds.Transactions), 3)
	var income, expenses float64
	for _, f := range flows {
		income += f.Income
		expenses += f.Expenses
	}
	months := float64(len(flows))
	var avgIncome, avgExpenses float64
	if months > 0 {
		avgIncome = income / months
		avgExpenses = expenses / months
	}

	var balance float64
	for _, acc := range ds.Accounts {
		balance += acc.Balance
	}
	var invested float64
	for _, inv := range ds.Investments {
		invested += inv.CurrentValue
	}
	var assetValue float64
	for _, a := range ds.Assets {
		assetValue += a.Value
	}
	var debt float64
	for _, l := range ds.Liabilities {
		debt += l.Balance
	}

	totalAssets := balance + invested + assetValue
	netWorth := totalAssets - debt

	liquidity := 0.0
	if avgExpenses > 0 {
		liquidity = clamp100(balance / avgExpenses / 6 * 100)
	} else if balance > 0 {
		liquidity = 100
	}

	debtScore := 50.0
	if avgIncome > 0 {
		dti := debt / (avgIncome * 12)
		debtScore = math.Max(0, 100-200*dti)
	}

	savings := 0.0
	if avgIncome > 0 {
		rate := (avgIncome - avgExpenses) / avgIncome * 100
		savings = clamp100(math.Max(0, rate) * 5)
	}

	investment := 0.0
	if totalAssets > 0 {
		investment = clamp100(invested / totalAssets * 100 * 2)
	}

	netWorthScore := 0.0
	if avgIncome > 0 {
		netWorthScore = clamp100(math.Max(0, netWorth/(avgIncome*12)*20))
	} else {
		netWorthScore = clamp100(math.Max(0, netWorth/1000))
	}

	components := []HealthComponent{
		{Name: "liquidity", Score: round2(liquidity), Weight: 0.25},
		{Name: "debt", Score: round2(debtScore), Weight: 0.25},
		{Name: "savings_rate", Score: round2(savings), Weight: 0.20},
		{Name: "investment", Score: round2(investment), Weight: 0.15},
		{Name: "net_worth", Score: round2(netWorthScore), Weight: 0.15},
	}

	var total float64
	for _, c := range components {
		total += c.Score * c.Weight
	}
	hs := HealthScore{
		Score:      round2(total),
		Components: components,
		NetWorth:   round2(netWorth),
	}
	switch {
	case hs.Score >= 80:
		hs.Band = HealthExcellent
	case hs.Score >= 60:
		hs.Band = HealthGood
	case hs.Score >= 40:
		hs.Band = HealthFair
	default:
		hs.Band = HealthPoor
	}
	return hs
}

func clamp100(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
