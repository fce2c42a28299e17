package privacyhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/mintelli/mintelli/internal/auth"
)

// MountRoutes registers the privacy endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(20, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/privacy/profile", h.handleGetProfile)
	r.Put("/privacy/permissions", h.handleUpdatePermissions)
	r.Put("/privacy/settings", h.handleUpdateSettings)
	r.Get("/privacy/summary", h.handleSummary)
	r.Get("/privacy/audit", h.handleAuditTrail)
	r.Get("/data", h.handleFilteredData)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/privacy/consent/withdraw", h.handleWithdrawConsent)
		gr.Post("/privacy/export", h.handleExport)
		gr.Post("/privacy/deletion", h.handleDeletion)
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
