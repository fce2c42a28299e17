package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAndVerify(t *testing.T) {
	tm := NewTokenManager("test-secret", "mintelli", time.Hour)

	token, err := tm.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	userID, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1, got %s", userID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", "mintelli", time.Hour).Generate("user-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := NewTokenManager("secret-b", "mintelli", time.Hour).Verify(token); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := NewTokenManager("secret", "mintelli", -time.Minute).Generate("user-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := NewTokenManager("secret", "mintelli", time.Hour).Verify(token); err == nil {
		t.Fatal("expected expired token rejection")
	}
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", "mintelli", time.Hour)
	token, err := tm.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var seen string
	handler := tm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "user-1" {
		t.Fatalf("expected authenticated pass-through, code=%d user=%q", rec.Code, seen)
	}

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, bare)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestCheckAPIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("api-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	if !CheckAPIKey(string(hash), "api-key") {
		t.Fatal("expected matching key accepted")
	}
	if CheckAPIKey(string(hash), "wrong") {
		t.Fatal("expected wrong key rejected")
	}
	if CheckAPIKey("", "api-key") {
		t.Fatal("empty hash must reject")
	}
}
