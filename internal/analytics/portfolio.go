package analytics

import (
	"math"
	"sort"
	"strings"

	"github.com/mintelli/mintelli/internal/findata"
)

// Risk profiles for target allocations.
const (
	ProfileConservative = "conservative"
	ProfileModerate     = "moderate"
	ProfileAggressive   = "aggressive"
)

// Asset classes used for allocation.
const (
	ClassEquity = "equity"
	ClassDebt   = "debt"
	ClassOther  = "other"
)

// Allocation is one asset class's share of the portfolio.
type Allocation struct {
	Class   string  `json:"class"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// RebalanceStep is a suggested allocation adjustment.
type RebalanceStep struct {
	Class        string  `json:"class"`
	CurrentPct   float64 `json:"current_pct"`
	TargetPct    float64 `json:"target_pct"`
	DeviationPct float64 `json:"deviation_pct"`
	Adjustment   float64 `json:"adjustment"`
}

// PortfolioReview is the portfolio analysis result.
type PortfolioReview struct {
	TotalInvested        float64         `json:"total_invested"`
	CurrentValue         float64         `json:"current_value"`
	AbsoluteReturn       float64         `json:"absolute_return"`
	ReturnPct            float64         `json:"return_pct"`
	Allocations          []Allocation    `json:"allocations"`
	RiskLevel            string          `json:"risk_level"`
	DiversificationScore int             `json:"diversification_score"`
	ConcentrationRisk    string          `json:"concentration_risk"`
	RiskProfile          string          `json:"risk_profile"`
	Rebalancing          []RebalanceStep `json:"rebalancing"`
}

// classify maps an investment type to an asset class by substring match.
func classify(investmentType string) string {
	t := strings.ToLower(investmentType)
	switch {
	case strings.Contains(t, "equity"), strings.Contains(t, "stock"):
		return ClassEquity
	case strings.Contains(t, "debt"), strings.Contains(t, "bond"):
		return ClassDebt
	default:
		return ClassOther
	}
}

// targetAllocations maps a risk profile to target equity and debt
// percentages.
func targetAllocations(riskProfile string) map[string]float64 {
	switch riskProfile {
	case ProfileConservative:
		return map[string]float64{ClassEquity: 30, ClassDebt: 70}
	case ProfileAggressive:
		return map[string]float64{ClassEquity: 80, ClassDebt: 20}
	default:
		return map[string]float64{ClassEquity: 60, ClassDebt: 40}
	}
}

// ReviewPortfolio analyses holdings against the target allocation for the
// risk profile. Rebalancing steps appear only for deviations over five
// percentage points.
func ReviewPortfolio(investments []findata.Investment, riskProfile string) PortfolioReview {
	switch riskProfile {
	case ProfileConservative, ProfileModerate, ProfileAggressive:
	default:
		riskProfile = ProfileModerate
	}
	review := PortfolioReview{RiskProfile: riskProfile}
	if len(investments) == 0 {
		review.ConcentrationRisk = RiskLow
		return review
	}

	byClass := make(map[string]float64)
	var invested, current float64
	for _, inv := range investments {
		invested += inv.InvestedAmount
		current += inv.CurrentValue
		byClass[classify(inv.Type)] += inv.CurrentValue
	}

	review.TotalInvested = round2(invested)
	review.CurrentValue = round2(current)
	review.AbsoluteReturn = round2(current - invested)
	if invested > 0 {
		review.ReturnPct = round2((current - invested) / invested * 100)
	}

	var maxPct, equityPct float64
	for _, class := range []string{ClassEquity, ClassDebt, ClassOther} {
		value, ok := byClass[class]
		if !ok {
			continue
		}
		pct := 0.0
		if current > 0 {
			pct = value / current * 100
		}
		review.Allocations = append(review.Allocations, Allocation{
			Class:   class,
			Value:   round2(value),
			Percent: round2(pct),
		})
		if pct > maxPct {
			maxPct = pct
		}
		if class == ClassEquity {
			equityPct = pct
		}
	}

	switch {
	case equityPct > 80:
		review.RiskLevel = RiskHigh
	case equityPct > 50:
		review.RiskLevel = RiskMedium
	default:
		review.RiskLevel = RiskLow
	}

	review.DiversificationScore = diversificationScore(len(investments), maxPct)

	switch {
	case maxPct > 70:
		review.ConcentrationRisk = RiskHigh
	case maxPct > 50:
		review.ConcentrationRisk = "moderate"
	default:
		review.ConcentrationRisk = RiskLow
	}

	targets := targetAllocations(riskProfile)
	currentPct := make(map[string]float64)
	for _, alloc := range review.Allocations {
		currentPct[alloc.Class] = alloc.Percent
	}
	classes := make([]string, 0, len(targets))
	for class := range targets {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		deviation := currentPct[class] - targets[class]
		if math.Abs(deviation) <= 5 {
			continue
		}
		review.Rebalancing = append(review.Rebalancing, RebalanceStep{
			Class:        class,
			CurrentPct:   round2(currentPct[class]),
			TargetPct:    targets[class],
			DeviationPct: round2(deviation),
			Adjustment:   round2(-deviation / 100 * current),
		})
	}
	return review
}

func diversificationScore(holdings int, maxPct float64) int {
	score := 80
	switch {
	case holdings < 3:
		score = 30
	case holdings < 10:
		score = 60
	}
	if maxPct > 70 {
		score -= 30
		if score < 20 {
			score = 20
		}
	}
	return score
}
