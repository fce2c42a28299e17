// Package recommend turns analysis results into prioritised, human-readable
// recommendations.
package recommend

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mintelli/mintelli/internal/analytics"
	"github.com/mintelli/mintelli/internal/findata"
)

// Recommendation categories, in priority order.
const (
	CategoryEmergencyFund   = "emergency_fund"
	CategoryDebt            = "high_interest_debt"
	CategorySavings         = "savings_rate"
	CategoryDiversification = "diversification"
)

// highInterestThreshold is the annual rate above which a debt is urgent.
const highInterestThreshold = 15.0

// lowSavingsThreshold is the savings rate below which saving more is urged.
const lowSavingsThreshold = 10.0

// Recommendation is one prioritised suggestion. Priority 1 is most urgent.
type Recommendation struct {
	Priority int     `json:"priority"`
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Detail   string  `json:"detail"`
	Amount   float64 `json:"amount,omitempty"`
}

// Synthesizer builds recommendations with locale-aware number formatting.
type Synthesizer struct {
	printer             *message.Printer
	emergencyFundMonths int
}

// NewSynthesizer returns a synthesizer formatting amounts for the tag's
// locale.
func NewSynthesizer(tag language.Tag, emergencyFundMonths int) *Synthesizer {
	if emergencyFundMonths <= 0 {
		emergencyFundMonths = 6
	}
	return &Synthesizer{
		printer:             message.NewPrinter(tag),
		emergencyFundMonths: emergencyFundMonths,
	}
}

// Synthesize derives recommendations from the dataset and portfolio review.
// Emergency fund shortfalls outrank expensive debt, which outranks a thin
// savings rate, which outranks poor diversification.
func (s *Synthesizer) Synthesize(ds findata.Dataset, portfolio *analytics.PortfolioReview) []Recommendation {
	var out []Recommendation

	avgIncome, avgExpenses := analytics.MonthlyAverages(ds.Transactions, 6)
	var balance float64
	for _, acc := range ds.Accounts {
		balance += acc.Balance
	}

	target := float64(s.emergencyFundMonths) * avgExpenses
	if avgExpenses > 0 && balance < target {
		shortfall := target - balance
		out = append(out, Recommendation{
			Priority: 1,
			Category: CategoryEmergencyFund,
			Title:    "Build your emergency fund",
			Detail: s.printer.Sprintf("Your balance covers less than %d months of expenses. Set aside another %.2f to reach the %.2f target.",
				s.emergencyFundMonths, shortfall, target),
			Amount: shortfall,
		})
	}

	if worst, ok := highestRateDebt(ds.Liabilities); ok {
		out = append(out, Recommendation{
			Priority: 2,
			Category: CategoryDebt,
			Title:    "Pay down high-interest debt first",
			Detail: s.printer.Sprintf("%s charges %.1f%% per year on a balance of %.2f. Directing spare cash here saves the most interest.",
				worst.Name, worst.InterestRate, worst.Balance),
			Amount: worst.Balance,
		})
	}

	if avgIncome > 0 {
		rate := (avgIncome - avgExpenses) / avgIncome * 100
		if rate < lowSavingsThreshold {
			out = append(out, Recommendation{
				Priority: 3,
				Category: CategorySavings,
				Title:    "Raise your savings rate",
				Detail: s.printer.Sprintf("You are saving %.1f%% of income; aim for at least %.0f%%.",
					rate, lowSavingsThreshold),
			})
		}
	}

	if portfolio != nil && len(portfolio.Allocations) > 0 && portfolio.DiversificationScore < 50 {
		out = append(out, Recommendation{
			Priority: 4,
			Category: CategoryDiversification,
			Title:    "Diversify your portfolio",
			Detail: s.printer.Sprintf("Your diversification score is %d out of 100 and concentration risk is %s. Spreading across more holdings and asset classes reduces it.",
				portfolio.DiversificationScore, portfolio.ConcentrationRisk),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func highestRateDebt(liabilities []findata.Liability) (findata.Liability, bool) {
	var worst findata.Liability
	found := false
	for _, l := range liabilities {
		if l.Balance <= 0 || l.InterestRate <= highInterestThreshold {
			continue
		}
		if !found || l.InterestRate > worst.InterestRate {
			worst = l
			found = true
		}
	}
	return worst, found
}
