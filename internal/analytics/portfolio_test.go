package analytics

import (
	"testing"

	"github.com/mintelli/mintelli/internal/findata"
)

func testHoldings() []findata.Investment {
	return []findata.Investment{
		{ID: "i1", Name: "Index Fund", Type: "Equity Fund", CurrentValue: 60000, InvestedAmount: 50000},
		{ID: "i2", Name: "Gov Bonds", Type: "Bond Fund", CurrentValue: 30000, InvestedAmount: 28000},
		{ID: "i3", Name: "Gold", Type: "Commodity", CurrentValue: 10000, InvestedAmount: 12000},
	}
}

func TestReviewPortfolioReturnsAndAllocation(t *testing.T) {
	review := ReviewPortfolio(testHoldings(), ProfileModerate)

	if review.TotalInvested != 90000 || review.CurrentValue != 100000 {
		t.Fatalf("unexpected totals %+v", review)
	}
	if review.AbsoluteReturn != 10000 {
		t.Fatalf("expected absolute return 10000, got %v", review.AbsoluteReturn)
	}
	if review.ReturnPct != round2(10000.0/90000*100) {
		t.Fatalf("unexpected return pct %v", review.ReturnPct)
	}

	byClass := make(map[string]float64)
	for _, alloc := range review.Allocations {
		byClass[alloc.Class] = alloc.Percent
	}
	if byClass[ClassEquity] != 60 || byClass[ClassDebt] != 30 || byClass[ClassOther] != 10 {
		t.Fatalf("unexpected allocation %v", byClass)
	}
}

func TestReviewPortfolioTypeClassification(t *testing.T) {
	cases := []struct {
		investmentType string
		class          string
	}{
		{"Blue Chip Stocks", ClassEquity},
		{"equity mutual fund", ClassEquity},
		{"Corporate Bond", ClassDebt},
		{"debt fund", ClassDebt},
		{"REIT", ClassOther},
	}
	for _, tc := range cases {
		if got := classify(tc.investmentType); got != tc.class {
			t.Fatalf("%s: expected %s, got %s", tc.investmentType, tc.class, got)
		}
	}
}

func TestReviewPortfolioRiskLevels(t *testing.T) {
	allEquity := []findata.Investment{
		{ID: "i1", Type: "stocks", CurrentValue: 100000, InvestedAmount: 90000},
	}
	review := ReviewPortfolio(allEquity, ProfileModerate)
	if review.RiskLevel != RiskHigh {
		t.Fatalf("100%% equity must be high risk, got %s", review.RiskLevel)
	}
	if review.ConcentrationRisk != RiskHigh {
		t.Fatalf("single holding must be concentrated, got %s", review.ConcentrationRisk)
	}
	// Fewer than 3 holdings scores 30, minus the concentration penalty.
	if review.DiversificationScore != 20 {
		t.Fatalf("expected diversification floor 20, got %d", review.DiversificationScore)
	}
}

func TestReviewPortfolioRebalancing(t *testing.T) {
	review := ReviewPortfolio(testHoldings(), ProfileConservative)

	// Conservative targets 30/70; equity sits at 60, debt at 30.
	if len(review.Rebalancing) != 2 {
		t.Fatalf("expected 2 rebalance steps, got %d", len(review.Rebalancing))
	}
	for _, step := range review.Rebalancing {
		switch step.Class {
		case ClassEquity:
			if step.DeviationPct != 30 || step.Adjustment != -30000 {
				t.Fatalf("unexpected equity step %+v", step)
			}
		case ClassDebt:
			if step.DeviationPct != -40 || step.Adjustment != 40000 {
				t.Fatalf("unexpected debt step %+v", step)
			}
		}
	}

	// Moderate targets 60/40: equity matches, only debt deviates.
	moderate := ReviewPortfolio(testHoldings(), ProfileModerate)
	if len(moderate.Rebalancing) != 1 || moderate.Rebalancing[0].Class != ClassDebt {
		t.Fatalf("expected only debt step, got %+v", moderate.Rebalancing)
	}
}

func TestReviewPortfolioEmpty(t *testing.T) {
	review := ReviewPortfolio(nil, "bogus")
	if review.RiskProfile != ProfileModerate {
		t.Fatalf("unknown profile must default to moderate, got %s", review.RiskProfile)
	}
	if review.CurrentValue != 0 || len(review.Allocations) != 0 {
		t.Fatalf("empty portfolio must be zeroed, got %+v", review)
	}
}
