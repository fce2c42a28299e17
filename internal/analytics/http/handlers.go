// Package analytichttp exposes the analysis and recommendation endpoints.
package analytichttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mintelli/mintelli/internal/analytics"
	"github.com/mintelli/mintelli/internal/auth"
	"github.com/mintelli/mintelli/internal/findata"
	"github.com/mintelli/mintelli/internal/platform/httpx"
	"github.com/mintelli/mintelli/internal/recommend"
)

const requestTimeout = 10 * time.Second

var validate = validator.New()

// AnalyticsService is the analysis surface the handler depends on.
type AnalyticsService interface {
	Spending(ctx context.Context, userID string, windowDays int) (analytics.SpendingAnalysis, error)
	Forecast(ctx context.Context, userID string, monthsAhead int) (analytics.CashFlowForecast, error)
	Affordability(ctx context.Context, userID string, amount float64) (analytics.Affordability, error)
	Debt(ctx context.Context, userID string, monthlyBudget float64, strategy string) (analytics.DebtPlan, error)
	Portfolio(ctx context.Context, userID, riskProfile string) (analytics.PortfolioReview, error)
	Health(ctx context.Context, userID string) (analytics.HealthScore, error)
	Report(ctx context.Context, userID string, params analytics.ReportParams) (analytics.FullReport, error)
}

// Recommender synthesizes recommendations from a dataset and portfolio.
type Recommender interface {
	Synthesize(ds findata.Dataset, portfolio *analytics.PortfolioReview) []recommend.Recommendation
}

// DatasetLoader returns the analyze-permission-filtered dataset for a user.
type DatasetLoader interface {
	AnalysisDataset(ctx context.Context, userID string) (findata.Dataset, error)
}

// Handler coordinates the analytics HTTP endpoints.
type Handler struct {
	logger      *slog.Logger
	service     AnalyticsService
	recommender Recommender
	datasets    DatasetLoader
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService, recommender Recommender, datasets DatasetLoader) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		recommender: recommender,
		datasets:    datasets,
	}
}

type affordabilityDTO struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type debtDTO struct {
	MonthlyBudget float64 `json:"monthly_budget" validate:"required,gt=0"`
	Strategy      string  `json:"strategy" validate:"omitempty,oneof=avalanche snowball"`
}

func queryInt(r *http.Request, name string, fallback, min, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, false
	}
	return n, true
}

func (h *Handler) respond(w http.ResponseWriter, userID, operation string, data any, err error) {
	if err != nil {
		if !httpx.IsForbidden(err) {
			h.logger.Error("analysis failed", "operation", operation, "user_id", userID, "error", err)
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) handleSpending(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	windowDays, ok := queryInt(r, "window_days", 30, 7, 365)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "window_days must be between 7 and 365")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	out, err := h.service.Spending(ctx, userID, windowDays)
	h.respond(w, userID, "spending", out, err)
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	months, ok := queryInt(r, "months", 6, 1, 24)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "months must be between 1 and 24")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	out, err := h.service.Forecast(ctx, userID, months)
	h.respond(w, userID, "forecast", out, err)
}

func (h *Handler) handleAffordability(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var dto affordabilityDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	out, err := h.service.Affordability(ctx, userID, dto.Amount)
	h.respond(w, userID, "affordability", out, err)
}

func (h *Handler) handleDebt(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var dto debtDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	out, err := h.service.Debt(ctx, userID, dto.MonthlyBudget, dto.Strategy)
	h.respond(w, userID, "debt", out, err)
}

func (h *Handler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	profile := r.URL.Query().Get("risk_profile")
	switch profile {
	case "", analytics.ProfileConservative, analytics.ProfileModerate, analytics.ProfileAggressive:
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "risk_profile must be conservative, moderate, or aggressive")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	out, err := h.service.Portfolio(ctx, userID, profile)
	h.respond(w, userID, "portfolio", out, err)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	out, err := h.service.Health(ctx, userID)
	h.respond(w, userID, "health", out, err)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	windowDays, okWindow := queryInt(r, "window_days", 30, 7, 365)
	months, okMonths := queryInt(r, "months", 6, 1, 24)
	if !okWindow || !okMonths {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid report window parameters")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	out, err := h.service.Report(ctx, userID, analytics.ReportParams{
		WindowDays:  windowDays,
		MonthsAhead: months,
		RiskProfile: r.URL.Query().Get("risk_profile"),
	})
	h.respond(w, userID, "report", out, err)
}

func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	ds, err := h.datasets.AnalysisDataset(ctx, userID)
	if err != nil {
		h.respond(w, userID, "recommendations", nil, err)
		return
	}
	var portfolio *analytics.PortfolioReview
	if review, err := h.service.Portfolio(ctx, userID, ""); err == nil {
		portfolio = &review
	} else if !httpx.IsForbidden(err) {
		h.respond(w, userID, "recommendations", nil, err)
		return
	}

	recs := h.recommender.Synthesize(ds, portfolio)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id":         userID,
		"recommendations": recs,
	})
}
