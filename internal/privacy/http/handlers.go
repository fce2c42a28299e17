// Package privacyhttp exposes the privacy profile, consent, and filtered
// data endpoints.
package privacyhttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mintelli/mintelli/internal/audit"
	"github.com/mintelli/mintelli/internal/auth"
	"github.com/mintelli/mintelli/internal/findata"
	"github.com/mintelli/mintelli/internal/platform/httpx"
	"github.com/mintelli/mintelli/internal/privacy"
)

var validate = validator.New()

// ProfileService is the privacy surface the handler depends on.
type ProfileService interface {
	GetOrCreateProfile(ctx context.Context, userID string) (privacy.Profile, error)
	UpdatePermissions(ctx context.Context, userID string, updates map[string]privacy.PermissionUpdate) (privacy.Profile, error)
	UpdateSettings(ctx context.Context, userID string, level privacy.PrivacyLevel, minimization *bool) (privacy.Profile, error)
	WithdrawConsent(ctx context.Context, userID string) (privacy.Profile, error)
	Summarize(ctx context.Context, userID string) (privacy.Summary, error)
	RequestExport(ctx context.Context, userID string, categories []string) (privacy.ExportRequest, error)
	RequestDeletion(ctx context.Context, userID string, categories []string) (privacy.DeletionRequest, error)
}

// DataSource loads raw datasets for filtering.
type DataSource interface {
	Load(ctx context.Context, userID string) (findata.Dataset, error)
}

// AuditLog reads recent audit entries, including persisted history.
type AuditLog interface {
	History(ctx context.Context, userID string, actions []audit.Action, limit int) ([]audit.Entry, error)
}

// Handler coordinates the privacy HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	profiles ProfileService
	filter   *privacy.Filter
	data     DataSource
	auditLog AuditLog
}

// NewHandler constructs the privacy HTTP handler.
func NewHandler(logger *slog.Logger, profiles ProfileService, filter *privacy.Filter, data DataSource, auditLog AuditLog) *Handler {
	return &Handler{
		logger:   logger,
		profiles: profiles,
		filter:   filter,
		data:     data,
		auditLog: auditLog,
	}
}

type permissionDTO struct {
	Grant       *bool    `json:"grant"`
	Level       string   `json:"level" validate:"omitempty,oneof=none read_only limited full admin"`
	AccessTypes []string `json:"access_types" validate:"dive,oneof=view analyze export delete share"`
	ExpiresAt   *string  `json:"expires_at"`
}

type updatePermissionsDTO struct {
	Permissions map[string]permissionDTO `json:"permissions" validate:"required,min=1"`
}

type updateSettingsDTO struct {
	PrivacyLevel     string `json:"privacy_level" validate:"omitempty,oneof=basic standard strict"`
	DataMinimization *bool  `json:"data_minimization"`
}

type categoriesDTO struct {
	Categories []string `json:"categories"`
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	profile, err := h.profiles.GetOrCreateProfile(r.Context(), userID)
	if err != nil {
		h.logger.Error("get profile", "user_id", userID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profileResponse(profile))
}

func (h *Handler) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var dto updatePermissionsDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	updates := make(map[string]privacy.PermissionUpdate, len(dto.Permissions))
	for categoryID, p := range dto.Permissions {
		update := privacy.PermissionUpdate{
			Grant: p.Grant,
			Level: privacy.Level(p.Level),
		}
		for _, t := range p.AccessTypes {
			update.AccessTypes = append(update.AccessTypes, privacy.AccessType(t))
		}
		if p.ExpiresAt != nil {
			exp, err := time.Parse(time.RFC3339, *p.ExpiresAt)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expires_at must be RFC3339")
				return
			}
			update.ExpiresAt = &exp
		}
		updates[categoryID] = update
	}

	profile, err := h.profiles.UpdatePermissions(r.Context(), userID, updates)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profileResponse(profile))
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var dto updateSettingsDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := validate.Struct(dto); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	profile, err := h.profiles.UpdateSettings(r.Context(), userID, privacy.PrivacyLevel(dto.PrivacyLevel), dto.DataMinimization)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profileResponse(profile))
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	profile, err := h.profiles.WithdrawConsent(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profileResponse(profile))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	summary, err := h.profiles.Summarize(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var dto categoriesDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.profiles.RequestExport(r.Context(), userID, dto.Categories)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, req)
}

func (h *Handler) handleDeletion(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var dto categoriesDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.profiles.RequestDeletion(r.Context(), userID, dto.Categories)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, req)
}

func (h *Handler) handleFilteredData(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	profile, err := h.profiles.GetOrCreateProfile(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	raw, err := h.data.Load(r.Context(), userID)
	if err != nil {
		h.logger.Error("load dataset", "user_id", userID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	sanitized, _ := findata.Sanitize(raw, h.logger)
	httpx.JSON(w, http.StatusOK, h.filter.Apply(profile, sanitized))
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	var actions []audit.Action
	if raw := r.URL.Query().Get("action"); raw != "" {
		actions = append(actions, audit.Action(raw))
	}
	entries, err := h.auditLog.History(r.Context(), userID, actions, limit)
	if err != nil {
		h.logger.Error("load audit trail", "user_id", userID, "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"entries": entries,
	})
}

// profileResponse shapes a profile for the API without leaking internal
// access-type sets as maps.
func profileResponse(p privacy.Profile) map[string]any {
	permissions := make(map[string]any, len(p.Permissions))
	for id, s := range p.Permissions {
		var types []string
		for _, t := range []privacy.AccessType{
			privacy.AccessView, privacy.AccessAnalyze, privacy.AccessExport,
			privacy.AccessDelete, privacy.AccessShare,
		} {
			if s.Allows(t) {
				types = append(types, string(t))
			}
		}
		entry := map[string]any{
			"level":        string(s.Level),
			"access_types": types,
			"granted_at":   s.GrantedAt,
			"updated_at":   s.UpdatedAt,
		}
		if s.ExpiresAt != nil {
			entry["expires_at"] = s.ExpiresAt
		}
		permissions[id] = entry
	}
	return map[string]any{
		"user_id":           p.UserID,
		"permissions":       permissions,
		"privacy_level":     string(p.PrivacyLevel),
		"data_minimization": p.DataMinimization,
		"consent_at":        p.ConsentTimestamp,
		"last_updated":      p.LastUpdated,
	}
}
