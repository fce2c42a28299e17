package analytics

import (
	"math"
	"time"

	"github.com/mintelli/mintelli/internal/findata"
)

// Risk levels shared by affordability and portfolio analysis.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// AffordabilityConfig tunes the affordability heuristics.
type AffordabilityConfig struct {
	// LiquidityBuffer is the fraction of total balances treated as
	// spendable, in (0, 1].
	LiquidityBuffer float64
	// EmergencyFundMonths is how many months of average expenses must
	// remain after a comfortable purchase.
	EmergencyFundMonths int
}

// Affordability is the verdict on a prospective purchase.
type Affordability struct {
	Amount               float64 `json:"amount"`
	TotalBalance         float64 `json:"total_balance"`
	LiquidFunds          float64 `json:"liquid_funds"`
	MonthlySurplus       float64 `json:"monthly_surplus"`
	DebtToIncome         float64 `json:"debt_to_income"`
	EmergencyFund        float64 `json:"emergency_fund_target"`
	CanAffordOutright    bool    `json:"can_afford_outright"`
	CanAffordComfortably bool    `json:"can_afford_comfortably"`
	MonthsToSave         int     `json:"months_to_save"`
	Achievable           bool    `json:"achievable"`
	RiskScore            int     `json:"risk_score"`
	RiskLevel            string  `json:"risk_level"`
}

// AssessAffordability judges whether the user can spend amount now. The
// surplus comes from the trailing three months of cash flow, liquidity from
// the configured fraction of total balances.
func AssessAffordability(ds findata.Dataset, amount float64, cfg AffordabilityConfig, now time.Time) Affordability {
	if cfg.LiquidityBuffer <= 0 || cfg.LiquidityBuffer > 1 {
		cfg.LiquidityBuffer = 0.8
	}
	if cfg.EmergencyFundMonths <= 0 {
		cfg.EmergencyFundMonths = 6
	}

	var balance float64
	for _, acc := range ds.Accounts {
		balance += acc.Balance
	}
	liquid := cfg.LiquidityBuffer * balance

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
	surplus := avgIncome - avgExpenses

	var totalDebt float64
	for _, l := range ds.Liabilities {
		totalDebt += l.Balance
	}
	var dti float64
	if avgIncome > 0 {
		dti = totalDebt / (avgIncome * 12)
	}

	emergency := float64(cfg.EmergencyFundMonths) * avgExpenses

	a := Affordability{
		Amount:         round2(amount),
		TotalBalance:   round2(balance),
		LiquidFunds:    round2(liquid),
		MonthlySurplus: round2(surplus),
		DebtToIncome:   round2(dti),
		EmergencyFund:  round2(emergency),
	}

	a.CanAffordOutright = liquid >= amount
	a.CanAffordComfortably = a.CanAffordOutright && balance-amount >= emergency

	if a.CanAffordOutright {
		a.Achievable = true
	} else if surplus > 0 {
		shortfall := amount - liquid
		a.MonthsToSave = int(math.Ceil(shortfall / surplus))
		a.Achievable = true
	}

	a.RiskScore = affordabilityRisk(amount, balance, surplus, dti)
	switch {
	case a.RiskScore >= 60:
		a.RiskLevel = RiskHigh
	case a.RiskScore >= 30:
		a.RiskLevel = RiskMedium
	default:
		a.RiskLevel = RiskLow
	}
	return a
}

func affordabilityRisk(amount, balance, surplus, dti float64) int {
	score := 0

	impact := 1.0
	if balance > 0 {
		impact = amount / balance
	}
	switch {
	case impact > 0.8:
		score += 40
	case impact > 0.5:
		score += 25
	case impact > 0.3:
		score += 10
	}

	switch {
	case surplus <= 0:
		score += 30
	case amount > 6*surplus:
		score += 20
	case amount > 3*surplus:
		score += 10
	}

	switch {
	case dti > 0.4:
		score += 30
	case dti > 0.2:
		score += 15
	}
	return score
}
