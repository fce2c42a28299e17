package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/mintelli/mintelli/internal/auth"
)

// MountRoutes registers the analytics endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/analytics/spending", h.handleSpending)
		gr.Get("/analytics/forecast", h.handleForecast)
		gr.Post("/analytics/affordability", h.handleAffordability)
		gr.Post("/analytics/debt", h.handleDebt)
		gr.Get("/analytics/portfolio", h.handlePortfolio)
		gr.Get("/analytics/health", h.handleHealth)
		gr.Get("/analytics/report", h.handleReport)
		gr.Get("/analytics/recommendations", h.handleRecommendations)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if userID, ok := auth.UserID(r.Context()); ok {
		return "user:" + userID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
