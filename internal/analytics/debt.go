package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mintelli/mintelli/internal/findata"
)

// Debt payoff strategies.
const (
	StrategyAvalanche = "avalanche"
	StrategySnowball  = "snowball"
)

// maxPayoffMonths caps the simulation horizon at fifty years.
const maxPayoffMonths = 600

// defaultMinimumRate is applied when a liability carries no explicit
// minimum payment.
var defaultMinimumRate = decimal.NewFromFloat(0.02)

// DebtMilestone is one simulated month of the payoff plan.
type DebtMilestone struct {
	Month            int       `json:"month"`
	Date             time.Time `json:"date"`
	TotalPayment     float64   `json:"total_payment"`
	RemainingBalance float64   `json:"remaining_balance"`
	DebtsRemaining   int       `json:"debts_remaining"`
}

// DebtPlan is the payoff simulation result.
type DebtPlan struct {
	Strategy          string          `json:"strategy"`
	MonthlyBudget     float64         `json:"monthly_budget"`
	TotalMinimum      float64         `json:"total_minimum_payments"`
	Sufficient        bool            `json:"sufficient"`
	Shortfall         float64         `json:"shortfall,omitempty"`
	MonthsToDebtFree  int             `json:"months_to_debt_free"`
	DebtFreeDate      *time.Time      `json:"debt_free_date,omitempty"`
	TotalInterestPaid float64         `json:"total_interest_paid"`
	InterestSaved     float64         `json:"interest_saved"`
	Timeline          []DebtMilestone `json:"timeline"`
}

type simDebt struct {
	id      string
	balance decimal.Decimal
	rate    decimal.Decimal
	minimum decimal.Decimal
}

// PlanDebtPayoff simulates paying down the liabilities with the monthly
// budget under the given strategy. Avalanche orders by interest rate
// descending, snowball by balance ascending. Interest accrues monthly at
// rate/1200 before payments are applied.
func PlanDebtPayoff(liabilities []findata.Liability, monthlyBudget float64, strategy string, now time.Time) DebtPlan {
	if strategy != StrategySnowball {
		strategy = StrategyAvalanche
	}
	plan := DebtPlan{Strategy: strategy, MonthlyBudget: round2(monthlyBudget)}

	debts := make([]simDebt, 0, len(liabilities))
	totalMin := decimal.Zero
	for _, l := range liabilities {
		if l.Balance <= 0 {
			continue
		}
		d := simDebt{
			id:      l.ID,
			balance: decimal.NewFromFloat(l.Balance),
			rate:    decimal.NewFromFloat(l.InterestRate),
			minimum: decimal.NewFromFloat(l.MinimumPayment),
		}
		if d.minimum.LessThanOrEqual(decimal.Zero) {
			d.minimum = d.balance.Mul(defaultMinimumRate)
		}
		totalMin = totalMin.Add(d.minimum)
		debts = append(debts, d)
	}
	plan.TotalMinimum = round2(totalMin.InexactFloat64())

	if len(debts) == 0 {
		plan.Sufficient = true
		return plan
	}

	budget := decimal.NewFromFloat(monthlyBudget)
	if budget.LessThan(totalMin) {
		plan.Shortfall = round2(totalMin.Sub(budget).InexactFloat64())
		return plan
	}
	plan.Sufficient = true

	// Baseline keeps the input order so both strategies measure savings
	// against the same minimum-payments-only simulation.
	baseline := make([]simDebt, len(debts))
	copy(baseline, debts)

	sortDebts(debts, strategy)
	strategyInterest, timeline := simulatePayoff(debts, budget, now)
	plan.TotalInterestPaid = round2(strategyInterest.InexactFloat64())
	plan.Timeline = timeline
	if n := len(timeline); n > 0 && timeline[n-1].DebtsRemaining == 0 {
		plan.MonthsToDebtFree = timeline[n-1].Month
		date := timeline[n-1].Date
		plan.DebtFreeDate = &date
	}

	baselineInterest, _ := simulatePayoff(baseline, totalMin, now)
	saved := baselineInterest.Sub(strategyInterest)
	if saved.IsNegative() {
		saved = decimal.Zero
	}
	plan.InterestSaved = round2(saved.InexactFloat64())
	return plan
}

func sortDebts(debts []simDebt, strategy string) {
	if strategy == StrategySnowball {
		sort.SliceStable(debts, func(i, j int) bool {
			return debts[i].balance.LessThan(debts[j].balance)
		})
		return
	}
	sort.SliceStable(debts, func(i, j int) bool {
		return debts[i].rate.GreaterThan(debts[j].rate)
	})
}

func simulatePayoff(debts []simDebt, budget decimal.Decimal, now time.Time) (decimal.Decimal, []DebtMilestone) {
	monthlyDivisor := decimal.NewFromInt(1200)
	totalInterest := decimal.Zero
	var timeline []DebtMilestone

	for month := 1; month <= maxPayoffMonths; month++ {
		remaining := 0
		for i := range debts {
			if debts[i].balance.IsPositive() {
				remaining++
			}
		}
		if remaining == 0 {
			break
		}

		for i := range debts {
			if !debts[i].balance.IsPositive() {
				continue
			}
			interest := debts[i].balance.Mul(debts[i].rate).Div(monthlyDivisor)
			debts[i].balance = debts[i].balance.Add(interest)
			totalInterest = totalInterest.Add(interest)
		}

		available := budget
		paid := decimal.Zero
		for i := range debts {
			if !debts[i].balance.IsPositive() {
				continue
			}
			pay := decimal.Min(debts[i].minimum, debts[i].balance, available)
			debts[i].balance = debts[i].balance.Sub(pay)
			available = available.Sub(pay)
			paid = paid.Add(pay)
		}
		for i := range debts {
			if !available.IsPositive() {
				break
			}
			if !debts[i].balance.IsPositive() {
				continue
			}
			pay := decimal.Min(available, debts[i].balance)
			debts[i].balance = debts[i].balance.Sub(pay)
			available = available.Sub(pay)
			paid = paid.Add(pay)
			break
		}

		totalRemaining := decimal.Zero
		remaining = 0
		for i := range debts {
			if debts[i].balance.IsPositive() {
				totalRemaining = totalRemaining.Add(debts[i].balance)
				remaining++
			}
		}
		timeline = append(timeline, DebtMilestone{
			Month:            month,
			Date:             now.AddDate(0, month, 0),
			TotalPayment:     round2(paid.InexactFloat64()),
			RemainingBalance: round2(totalRemaining.InexactFloat64()),
			DebtsRemaining:   remaining,
		})
		if remaining == 0 {
			break
		}
	}
	return totalInterest, timeline
}
