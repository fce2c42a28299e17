package privacy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mintelli/mintelli/internal/audit"
)

func TestGateDeniesMissingProfile(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	trail := audit.NewTrail(audit.NewMemorySink(), audit.DefaultFlushThreshold, logger)
	gate := NewGate(NewMemoryRepository(), trail).WithClock(testClock())

	granted, err := gate.Check(context.Background(), "nobody", "transactions", AccessView, true)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if granted {
		t.Fatal("missing profile must deny")
	}
	if n := trail.CountByAction("nobody", audit.ActionDataAccessed); n != 0 {
		t.Fatalf("denied check must not log access, got %d entries", n)
	}
}

func TestGateGrantsAndLogs(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	trail := audit.NewTrail(audit.NewMemorySink(), audit.DefaultFlushThreshold, logger)
	repo := NewMemoryRepository()
	svc := NewService(repo, trail, logger).WithClock(testClock())
	gate := NewGate(repo, trail).WithClock(testClock())
	ctx := context.Background()

	if _, err := svc.GetOrCreateProfile(ctx, "user-1"); err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}

	granted, err := gate.Check(ctx, "user-1", "transactions", AccessView, true)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !granted {
		t.Fatal("default transactions view must be granted")
	}
	entries := trail.Query("user-1", []audit.Action{audit.ActionDataAccessed}, 0)
	if len(entries) != 1 {
		t.Fatalf("expected one access entry, got %d", len(entries))
	}
	if entries[0].CategoryID != "transactions" || entries[0].Details["access_type"] != "view" {
		t.Fatalf("unexpected access entry %+v", entries[0])
	}

	// Unlogged checks leave no trace.
	if granted, err = gate.Check(ctx, "user-1", "transactions", AccessAnalyze, false); err != nil || !granted {
		t.Fatalf("analyze check: granted=%v err=%v", granted, err)
	}
	if n := trail.CountByAction("user-1", audit.ActionDataAccessed); n != 1 {
		t.Fatalf("unlogged check must not add entries, got %d", n)
	}
}

func TestGateDeniesWithoutAccessType(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	trail := audit.NewTrail(audit.NewMemorySink(), audit.DefaultFlushThreshold, logger)
	repo := NewMemoryRepository()
	svc := NewService(repo, trail, logger).WithClock(testClock())
	gate := NewGate(repo, trail).WithClock(testClock())
	ctx := context.Background()

	if _, err := svc.GetOrCreateProfile(ctx, "user-1"); err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}

	// Default assets permission is ReadOnly{view}; export must be denied.
	granted, err := gate.Check(ctx, "user-1", "assets", AccessExport, true)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if granted {
		t.Fatal("export must be denied for read_only assets")
	}
}

func TestGateAdminBypassesAccessTypes(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	trail := audit.NewTrail(audit.NewMemorySink(), audit.DefaultFlushThreshold, logger)
	repo := NewMemoryRepository()
	svc := NewService(repo, trail, logger).WithClock(testClock())
	gate := NewGate(repo, trail).WithClock(testClock())
	ctx := context.Background()

	if _, err := svc.UpdatePermissions(ctx, "user-1", map[string]PermissionUpdate{
		"assets": {Level: LevelAdmin},
	}); err != nil {
		t.Fatalf("UpdatePermissions: %v", err)
	}

	granted, err := gate.Check(ctx, "user-1", "assets", AccessShare, false)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !granted {
		t.Fatal("admin level must grant every access type")
	}
}

func TestGateExpiredDeniesWithoutMutation(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	trail := audit.NewTrail(audit.NewMemorySink(), audit.DefaultFlushThreshold, logger)
	repo := NewMemoryRepository()
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := NewService(repo, trail, logger).WithClock(func() time.Time { return now })
	gate := NewGate(repo, trail).WithClock(func() time.Time { return now })
	ctx := context.Background()

	past := now.Add(-time.Minute)
	if _, err := svc.UpdatePermissions(ctx, "user-1", map[string]PermissionUpdate{
		"assets": {Level: LevelFull, AccessTypes: []AccessType{AccessView}, ExpiresAt: &past},
	}); err != nil {
		t.Fatalf("UpdatePermissions: %v", err)
	}

	granted, err := gate.Check(ctx, "user-1", "assets", AccessView, true)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if granted {
		t.Fatal("expired permission must deny")
	}

	// The stored level is untouched; demotion belongs to the cleanup job.
	profile, err := repo.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if profile.Permissions["assets"].Level != LevelFull {
		t.Fatalf("check must not mutate stored level, got %s", profile.Permissions["assets"].Level)
	}
}
