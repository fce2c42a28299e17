package audit

import "time"

// Action identifies the kind of event recorded in the audit trail.
type Action string

// Audit action types.
const (
	ActionConsentGiven           Action = "consent_given"
	ActionConsentWithdrawn       Action = "consent_withdrawn"
	ActionPermissionChanged      Action = "permission_changed"
	ActionDataAccessed           Action = "data_accessed"
	ActionDataExported           Action = "data_exported"
	ActionDataDeletionRequested  Action = "data_deletion_requested"
	ActionPrivacySettingsUpdated Action = "privacy_settings_updated"
)

// Entry is a single immutable audit record. Entries are only ever appended
// and flushed to cold storage, never edited or removed.
type Entry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     Action         `json:"action"`
	CategoryID string         `json:"category_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"session_id,omitempty"`
}
