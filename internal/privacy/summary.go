package privacy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mintelli/mintelli/internal/audit"
	"github.com/mintelli/mintelli/internal/platform/httpx"
)

// CategorySummary is one category's entry in the permission summary.
type CategorySummary struct {
	CategoryID  string     `json:"category_id"`
	DisplayName string     `json:"display_name"`
	Sensitivity int        `json:"sensitivity"`
	Level       Level      `json:"level"`
	Granted     bool       `json:"granted"`
	Expired     bool       `json:"expired"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Summary is the privacy dashboard view of a profile.
type Summary struct {
	UserID           string            `json:"user_id"`
	Categories       []CategorySummary `json:"categories"`
	GrantedCount     int               `json:"granted_count"`
	TotalCount       int               `json:"total_count"`
	PrivacyScore     float64           `json:"privacy_score"`
	AccessLevel      string            `json:"access_level"`
	DataMinimization bool              `json:"data_minimization"`
	PrivacyLevel     PrivacyLevel      `json:"privacy_level"`
	Recommendations  []string          `json:"recommendations"`
	LastUpdated      time.Time         `json:"last_updated"`
}

// ExportRequest is the outcome of a data export request. Only categories
// with export permission are included; the rest are listed as denied.
type ExportRequest struct {
	RequestID         string    `json:"request_id"`
	UserID            string    `json:"user_id"`
	AllowedCategories []string  `json:"allowed_categories"`
	DeniedCategories  []string  `json:"denied_categories"`
	RequestedAt       time.Time `json:"requested_at"`
}

// DeletionRequest is the outcome of a data deletion request. Categories
// required for basic function are still accepted but flagged with warnings.
type DeletionRequest struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Categories  []string  `json:"categories"`
	Warnings    []string  `json:"warnings"`
	RequestedAt time.Time `json:"requested_at"`
}

// Summarize builds the privacy dashboard for a user. The privacy score
// rewards granting low-sensitivity categories more than high-sensitivity
// ones, so a score of 100 is unreachable by design of the weights.
func (s *Service) Summarize(ctx context.Context, userID string) (Summary, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	now := s.clock()
	sum := Summary{
		UserID:           userID,
		TotalCount:       len(registry),
		DataMinimization: profile.DataMinimization,
		PrivacyLevel:     profile.PrivacyLevel,
		LastUpdated:      profile.LastUpdated,
	}

	var (
		score      float64
		hasExpired bool
	)
	for _, cat := range registry {
		setting, ok := profile.Permissions[cat.ID]
		entry := CategorySummary{
			CategoryID:  cat.ID,
			DisplayName: cat.DisplayName,
			Sensitivity: cat.SensitivityLevel,
			Level:       LevelNone,
		}
		if ok {
			entry.Level = setting.Level
			entry.Expired = setting.Expired(now)
			entry.ExpiresAt = setting.ExpiresAt
			if entry.Expired {
				hasExpired = true
			}
			if !entry.Expired && setting.Level != LevelNone {
				entry.Granted = true
				sum.GrantedCount++
				score += 100 - float64(cat.SensitivityLevel)*15
				if cat.SensitivityLevel >= 4 && (setting.Level == LevelFull || setting.Level == LevelAdmin) {
					sum.Recommendations = append(sum.Recommendations,
						fmt.Sprintf("Consider limiting access to %s given its sensitivity", cat.DisplayName))
				}
			}
		}
		sum.Categories = append(sum.Categories, entry)
	}

	sum.PrivacyScore = score / float64(sum.TotalCount)
	sum.AccessLevel = accessLevelLabel(float64(sum.GrantedCount) / float64(sum.TotalCount))
	if hasExpired {
		sum.Recommendations = append(sum.Recommendations,
			"Some permissions have expired and will be revoked; renew them if still needed")
	}
	if !profile.DataMinimization {
		sum.Recommendations = append(sum.Recommendations,
			"Enable data minimization to reduce the detail exposed to analysis")
	}
	return sum, nil
}

func accessLevelLabel(ratio float64) string {
	switch {
	case ratio >= 0.9:
		return "full_access"
	case ratio >= 0.7:
		return "high"
	case ratio >= 0.5:
		return "moderate"
	case ratio >= 0.3:
		return "limited"
	default:
		return "minimal"
	}
}

// RequestExport checks export permission per category and records the
// request in the audit trail. Permission checks here are not logged as
// data access since no data leaves the system yet.
func (s *Service) RequestExport(ctx context.Context, userID string, categories []string) (ExportRequest, error) {
	if len(categories) == 0 {
		for _, cat := range registry {
			categories = append(categories, cat.ID)
		}
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	profile, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return ExportRequest{}, err
	}

	now := s.clock()
	req := ExportRequest{
		RequestID:   uuid.NewString(),
		UserID:      userID,
		RequestedAt: now,
	}
	for _, id := range categories {
		if _, ok := CategoryByID(id); !ok {
			return ExportRequest{}, fmt.Errorf("%w: unknown category %q", httpx.ErrValidation, id)
		}
		if granted, _ := evaluateSetting(profile, id, AccessExport, now); granted {
			req.AllowedCategories = append(req.AllowedCategories, id)
		} else {
			req.DeniedCategories = append(req.DeniedCategories, id)
		}
	}
	sort.Strings(req.AllowedCategories)
	sort.Strings(req.DeniedCategories)

	s.trail.Record(audit.Entry{
		UserID: userID,
		Action: audit.ActionDataExported,
		Details: map[string]any{
			"request_id":         req.RequestID,
			"allowed_categories": req.AllowedCategories,
			"denied_categories":  req.DeniedCategories,
		},
	})
	return req, nil
}

// RequestDeletion records a deletion request, warning about categories the
// product cannot function without.
func (s *Service) RequestDeletion(ctx context.Context, userID string, categories []string) (DeletionRequest, error) {
	if len(categories) == 0 {
		return DeletionRequest{}, fmt.Errorf("%w: no categories to delete", httpx.ErrValidation)
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	if _, err := s.getOrCreateLocked(ctx, userID); err != nil {
		return DeletionRequest{}, err
	}

	req := DeletionRequest{
		RequestID:   uuid.NewString(),
		UserID:      userID,
		RequestedAt: s.clock(),
	}
	for _, id := range categories {
		cat, ok := CategoryByID(id)
		if !ok {
			return DeletionRequest{}, fmt.Errorf("%w: unknown category %q", httpx.ErrValidation, id)
		}
		req.Categories = append(req.Categories, id)
		if cat.RequiredForBasic {
			req.Warnings = append(req.Warnings,
				fmt.Sprintf("Deleting %s will disable basic functionality", cat.DisplayName))
		}
	}
	sort.Strings(req.Categories)

	s.trail.Record(audit.Entry{
		UserID: userID,
		Action: audit.ActionDataDeletionRequested,
		Details: map[string]any{
			"request_id": req.RequestID,
			"categories": req.Categories,
			"warnings":   req.Warnings,
		},
	})
	return req, nil
}
