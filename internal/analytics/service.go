package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mintelli/mintelli/internal/findata"
	"github.com/mintelli/mintelli/internal/platform/httpx"
	"github.com/mintelli/mintelli/internal/privacy"
)

// Config tunes the analysis heuristics.
type Config struct {
	LiquidityBuffer     float64
	EmergencyFundMonths int
}

// Recorder receives analysis timings, for metrics.
type Recorder interface {
	ObserveAnalysis(name string, elapsed time.Duration)
}

// Service runs analyses over permission-filtered datasets. Every analysis
// requires the analyze access type on the categories it consumes; denied
// required categories abort with a forbidden error.
type Service struct {
	profiles *privacy.Service
	gate     *privacy.Gate
	data     findata.Repository
	cache    *Cache
	logger   *slog.Logger
	cfg      Config
	clock    func() time.Time
	recorder Recorder
}

// NewService wires the analytics service.
func NewService(profiles *privacy.Service, gate *privacy.Gate, data findata.Repository, cache *Cache, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		profiles: profiles,
		gate:     gate,
		data:     data,
		cache:    cache,
		logger:   logger,
		cfg:      cfg,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// WithRecorder registers a metrics hook.
func (s *Service) WithRecorder(rec Recorder) *Service {
	s.recorder = rec
	return s
}

// AnalysisDataset returns the sanitized dataset restricted to categories
// the user granted analyze access on. No category is required, so denied
// categories simply come back empty.
func (s *Service) AnalysisDataset(ctx context.Context, userID string) (findata.Dataset, error) {
	return s.datasetFor(ctx, userID)
}

// datasetFor loads and sanitizes the user's data, then blanks every
// category lacking analyze permission. Required categories must be granted.
func (s *Service) datasetFor(ctx context.Context, userID string, required ...string) (findata.Dataset, error) {
	profile, err := s.profiles.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return findata.Dataset{}, err
	}

	for _, categoryID := range required {
		if !s.gate.CheckWithProfile(profile, categoryID, privacy.AccessAnalyze, true) {
			return findata.Dataset{}, fmt.Errorf("%w: analyze access to %s required", httpx.ErrForbidden, categoryID)
		}
	}

	raw, err := s.data.Load(ctx, userID)
	if err != nil {
		return findata.Dataset{}, err
	}
	ds, _ := findata.Sanitize(raw, s.logger)

	requiredSet := make(map[string]struct{}, len(required))
	for _, id := range required {
		requiredSet[id] = struct{}{}
	}
	for _, cat := range privacy.Registry() {
		if _, ok := requiredSet[cat.ID]; ok {
			continue
		}
		if !ds.Has(cat.ID) {
			continue
		}
		if !s.gate.CheckWithProfile(profile, cat.ID, privacy.AccessAnalyze, true) {
			blankCategory(&ds, cat.ID)
		}
	}
	return ds, nil
}

func blankCategory(ds *findata.Dataset, categoryID string) {
	switch categoryID {
	case "transactions":
		ds.Transactions = nil
	case "accounts":
		ds.Accounts = nil
	case "investments":
		ds.Investments = nil
	case "liabilities":
		ds.Liabilities = nil
	case "assets":
		ds.Assets = nil
	case "credit_score":
		ds.CreditScore = nil
	case "epf_balance":
		ds.EPFBalance = nil
	case "spending_patterns":
		ds.SpendingPatterns = nil
	case "financial_insights":
		ds.FinancialInsights = nil
	case "personal_profile":
		ds.PersonalProfile = nil
	}
}

func (s *Service) observe(name string, started time.Time) {
	if s.recorder != nil {
		s.recorder.ObserveAnalysis(name, time.Since(started))
	}
}

// Spending analyses expenses over the trailing window.
func (s *Service) Spending(ctx context.Context, userID string, windowDays int) (SpendingAnalysis, error) {
	defer s.observe("spending", time.Now())
	if windowDays <= 0 {
		windowDays = 30
	}

	var out SpendingAnalysis
	key, err := s.cache.BuildKey(ctx, userID, "spending", strconv.Itoa(windowDays))
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		ds, err := s.datasetFor(ctx, userID, "transactions")
		if err != nil {
			return nil, err
		}
		return AnalyzeSpending(ds.Transactions, windowDays, s.clock()), nil
	})
	return out, err
}

// Forecast projects balances forward.
func (s *Service) Forecast(ctx context.Context, userID string, monthsAhead int) (CashFlowForecast, error) {
	defer s.observe("forecast", time.Now())
	if monthsAhead <= 0 {
		monthsAhead = 6
	}

	var out CashFlowForecast
	key, err := s.cache.BuildKey(ctx, userID, "forecast", strconv.Itoa(monthsAhead))
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		ds, err := s.datasetFor(ctx, userID, "transactions", "accounts")
		if err != nil {
			return nil, err
		}
		return ForecastCashFlow(ds, monthsAhead, s.clock()), nil
	})
	return out, err
}

// Affordability judges a prospective purchase.
func (s *Service) Affordability(ctx context.Context, userID string, amount float64) (Affordability, error) {
	defer s.observe("affordability", time.Now())
	if amount <= 0 {
		return Affordability{}, fmt.Errorf("%w: amount must be positive", httpx.ErrValidation)
	}

	ds, err := s.datasetFor(ctx, userID, "transactions", "accounts")
	if err != nil {
		return Affordability{}, err
	}
	cfg := AffordabilityConfig{
		LiquidityBuffer:     s.cfg.LiquidityBuffer,
		EmergencyFundMonths: s.cfg.EmergencyFundMonths,
	}
	return AssessAffordability(ds, amount, cfg, s.clock()), nil
}

// Debt simulates a payoff plan for the user's liabilities.
func (s *Service) Debt(ctx context.Context, userID string, monthlyBudget float64, strategy string) (DebtPlan, error) {
	defer s.observe("debt", time.Now())
	if monthlyBudget <= 0 {
		return DebtPlan{}, fmt.Errorf("%w: monthly budget must be positive", httpx.ErrValidation)
	}

	ds, err := s.datasetFor(ctx, userID, "liabilities")
	if err != nil {
		return DebtPlan{}, err
	}
	return PlanDebtPayoff(ds.Liabilities, monthlyBudget, strategy, s.clock()), nil
}

// Portfolio reviews the user's investments against a risk profile.
func (s *Service) Portfolio(ctx context.Context, userID, riskProfile string) (PortfolioReview, error) {
	defer s.observe("portfolio", time.Now())

	var out PortfolioReview
	key, err := s.cache.BuildKey(ctx, userID, "portfolio", riskProfile)
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		ds, err := s.datasetFor(ctx, userID, "investments")
		if err != nil {
			return nil, err
		}
		return ReviewPortfolio(ds.Investments, riskProfile), nil
	})
	return out, err
}

// Health computes the composite financial health score.
func (s *Service) Health(ctx context.Context, userID string) (HealthScore, error) {
	defer s.observe("health", time.Now())

	var out HealthScore
	key, err := s.cache.BuildKey(ctx, userID, "health")
	if err != nil {
		return out, err
	}
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		ds, err := s.datasetFor(ctx, userID, "transactions", "accounts")
		if err != nil {
			return nil, err
		}
		return ScoreHealth(ds), nil
	})
	return out, err
}

// ReportParams tunes the full report.
type ReportParams struct {
	WindowDays    int
	MonthsAhead   int
	MonthlyBudget float64
	Strategy      string
	RiskProfile   string
}

// FullReport is every analysis for one user. Sections whose permissions
// are denied are nil rather than failing the whole report.
type FullReport struct {
	UserID      string            `json:"user_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Spending    *SpendingAnalysis `json:"spending,omitempty"`
	Forecast    *CashFlowForecast `json:"forecast,omitempty"`
	Debt        *DebtPlan         `json:"debt,omitempty"`
	Portfolio   *PortfolioReview  `json:"portfolio,omitempty"`
	Health      *HealthScore      `json:"health,omitempty"`
	Skipped     []string          `json:"skipped,omitempty"`
}

// Report runs the analyses concurrently and assembles a full report.
func (s *Service) Report(ctx context.Context, userID string, params ReportParams) (FullReport, error) {
	defer s.observe("report", time.Now())
	if params.WindowDays <= 0 {
		params.WindowDays = 30
	}
	if params.MonthsAhead <= 0 {
		params.MonthsAhead = 6
	}
	if params.RiskProfile == "" {
		params.RiskProfile = ProfileModerate
	}

	report := FullReport{UserID: userID, GeneratedAt: s.clock()}
	var (
		skipped = make(chan string, 5)
		g, gctx = errgroup.WithContext(ctx)
	)

	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			err := fn(gctx)
			if httpx.IsForbidden(err) {
				skipped <- name
				return nil
			}
			return err
		})
	}

	run("spending", func(ctx context.Context) error {
		out, err := s.Spending(ctx, userID, params.WindowDays)
		if err == nil {
			report.Spending = &out
		}
		return err
	})
	run("forecast", func(ctx context.Context) error {
		out, err := s.Forecast(ctx, userID, params.MonthsAhead)
		if err == nil {
			report.Forecast = &out
		}
		return err
	})
	if params.MonthlyBudget > 0 {
		run("debt", func(ctx context.Context) error {
			out, err := s.Debt(ctx, userID, params.MonthlyBudget, params.Strategy)
			if err == nil {
				report.Debt = &out
			}
			return err
		})
	}
	run("portfolio", func(ctx context.Context) error {
		out, err := s.Portfolio(ctx, userID, params.RiskProfile)
		if err == nil {
			report.Portfolio = &out
		}
		return err
	})
	run("health", func(ctx context.Context) error {
		out, err := s.Health(ctx, userID)
		if err == nil {
			report.Health = &out
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return FullReport{}, err
	}
	close(skipped)
	for name := range skipped {
		report.Skipped = append(report.Skipped, name)
	}
	return report, nil
}
