package privacyhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mintelli/mintelli/internal/audit"
	"github.com/mintelli/mintelli/internal/auth"
	"github.com/mintelli/mintelli/internal/findata"
	"github.com/mintelli/mintelli/internal/privacy"
)

func testClock() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

type fixture struct {
	service *privacy.Service
	repo    *privacy.MemoryRepository
	sink    *audit.MemorySink
	trail   *audit.Trail
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	repo := privacy.NewMemoryRepository()
	sink := audit.NewMemorySink()
	trail := audit.NewTrail(sink, 100, logger).WithClock(testClock)
	service := privacy.NewService(repo, trail, logger).WithClock(testClock)
	gate := privacy.NewGate(repo, trail).WithClock(testClock)
	filter := privacy.NewFilter(gate, logger, privacy.DefaultMinimizationCap).WithClock(testClock)

	h := NewHandler(logger, service, filter, &stubData{}, trail)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), "user-1")))
		})
	})
	h.MountRoutes(r)
	return &fixture{service: service, repo: repo, sink: sink, trail: trail, router: r}
}

type stubData struct{}

func (s *stubData) Load(context.Context, string) (findata.Dataset, error) {
	return findata.Dataset{
		Transactions: []findata.Transaction{
			{ID: "t1", Date: testClock().AddDate(0, 0, -1), Amount: -50, Category: "food", Merchant: "Cafe"},
		},
		Accounts: []findata.Account{
			{ID: "a1", Name: "Savings Account", Type: "savings", Balance: 12345.67},
		},
	}, nil
}

func TestGetProfileCreatesDefaults(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/privacy/profile", nil)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		UserID      string                     `json:"user_id"`
		Permissions map[string]json.RawMessage `json:"permissions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.UserID != "user-1" {
		t.Fatalf("unexpected user %q", out.UserID)
	}
	if len(out.Permissions) != len(privacy.Registry()) {
		t.Fatalf("expected %d permissions, got %d", len(privacy.Registry()), len(out.Permissions))
	}
}

func TestUpdatePermissions(t *testing.T) {
	fx := newFixture(t)

	body := `{"permissions": {"credit_score": {"grant": true}}}`
	req := httptest.NewRequest(http.MethodPut, "/privacy/permissions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	profile, err := fx.repo.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Permissions["credit_score"].Level != privacy.LevelFull {
		t.Fatalf("expected full level after grant, got %s", profile.Permissions["credit_score"].Level)
	}
}

func TestUpdatePermissionsRejectsEmptyBody(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/privacy/permissions", strings.NewReader(`{"permissions": {}}`))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpdatePermissionsRejectsBadExpiry(t *testing.T) {
	fx := newFixture(t)

	body := `{"permissions": {"transactions": {"level": "limited", "access_types": ["view"], "expires_at": "tomorrow"}}}`
	req := httptest.NewRequest(http.MethodPut, "/privacy/permissions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad expires_at, got %d", rec.Code)
	}
}

func TestWithdrawConsent(t *testing.T) {
	fx := newFixture(t)

	// Create the profile first so withdrawal has something to revoke.
	get := httptest.NewRequest(http.MethodGet, "/privacy/profile", nil)
	fx.router.ServeHTTP(httptest.NewRecorder(), get)

	req := httptest.NewRequest(http.MethodPost, "/privacy/consent/withdraw", nil)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	profile, err := fx.repo.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	for id, setting := range profile.Permissions {
		if setting.Level != privacy.LevelNone {
			t.Fatalf("category %s still at %s after withdrawal", id, setting.Level)
		}
	}
}

func TestFilteredDataEndpoint(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Transactions []findata.Transaction  `json:"transactions"`
		Accounts     []findata.Account      `json:"accounts"`
		Metadata     findata.FilterMetadata `json:"privacy_metadata"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Transactions) != 1 {
		t.Fatalf("expected transactions in response, got %d", len(out.Transactions))
	}
	// Default transaction permission is limited with minimization on.
	if out.Transactions[0].Merchant != "" {
		t.Fatalf("expected merchant stripped, got %q", out.Transactions[0].Merchant)
	}
	if out.Accounts[0].Balance != 12300 {
		t.Fatalf("expected rounded balance 12300, got %v", out.Accounts[0].Balance)
	}
}

func TestExportAccepted(t *testing.T) {
	fx := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/privacy/export", strings.NewReader(`{"categories": ["transactions"]}`))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var out privacy.ExportRequest
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.RequestID == "" {
		t.Fatal("expected a request id")
	}
}

type persistedAudit struct{ entries []audit.Entry }

func (p *persistedAudit) Recent(context.Context, string, int) ([]audit.Entry, error) {
	return p.entries, nil
}

func TestAuditTrailIncludesPersistedHistory(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	repo := privacy.NewMemoryRepository()
	trail := audit.NewTrail(audit.NewMemorySink(), 100, logger).
		WithClock(testClock).
		WithReader(&persistedAudit{entries: []audit.Entry{{
			ID:        "persisted-1",
			UserID:    "user-1",
			Action:    audit.ActionDataExported,
			Timestamp: testClock().Add(-time.Hour),
		}}})
	service := privacy.NewService(repo, trail, logger).WithClock(testClock)
	gate := privacy.NewGate(repo, trail).WithClock(testClock)
	filter := privacy.NewFilter(gate, logger, privacy.DefaultMinimizationCap).WithClock(testClock)

	h := NewHandler(logger, service, filter, &stubData{}, trail)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), "user-1")))
		})
	})
	h.MountRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/privacy/audit", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Entries []audit.Entry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, e := range out.Entries {
		if e.ID == "persisted-1" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected persisted entry in the audit response")
	}
}

func TestAuditTrailEndpoint(t *testing.T) {
	fx := newFixture(t)

	// Profile creation records a consent entry.
	get := httptest.NewRequest(http.MethodGet, "/privacy/profile", nil)
	fx.router.ServeHTTP(httptest.NewRecorder(), get)

	req := httptest.NewRequest(http.MethodGet, "/privacy/audit?action=consent_given", nil)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Entries []audit.Entry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Entries) != 1 {
		t.Fatalf("expected 1 consent entry, got %d", len(out.Entries))
	}
	if out.Entries[0].Action != audit.ActionConsentGiven {
		t.Fatalf("unexpected action %s", out.Entries[0].Action)
	}

	bad := httptest.NewRequest(http.MethodGet, "/privacy/audit?limit=0", nil)
	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", rec.Code)
	}
}
