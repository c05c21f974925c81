package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/posebridge/internal/bridge"
	"github.com/nerrad567/posebridge/internal/infrastructure/config"
	"github.com/nerrad567/posebridge/internal/infrastructure/database"
	"github.com/nerrad567/posebridge/migrations"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestEntryFromTransition(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e := EntryFromTransition(bridge.Transition{
		SessionID: "s1",
		From:      bridge.WaitingForService,
		To:        bridge.Connected,
		Reason:    "service online",
		SlotCount: 3,
		At:        at,
	})

	if e.From != "waiting_for_service" || e.To != "connected" {
		t.Errorf("states = %q -> %q", e.From, e.To)
	}
	if e.SessionID != "s1" || e.SlotCount != 3 || !e.CreatedAt.Equal(at) || e.ID != "" {
		t.Errorf("entry = %+v", e)
	}
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	states := []string{"waiting_for_service", "connected", "disconnected"}
	for i, to := range states {
		e := &Entry{
			SessionID: "s1",
			From:      "disconnected",
			To:        to,
			SlotCount: i,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Create() did not assign an ID")
		}
	}

	entries, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(entries))
	}
	// Newest first.
	for i, want := range []string{"disconnected", "connected", "waiting_for_service"} {
		if entries[i].To != want {
			t.Errorf("entries[%d].To = %q, want %q", i, entries[i].To, want)
		}
	}
	if !entries[2].CreatedAt.Equal(base) {
		t.Errorf("oldest CreatedAt = %v, want %v", entries[2].CreatedAt, base)
	}

	limited, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 || limited[0].To != "disconnected" {
		t.Errorf("List(2) = %+v", limited)
	}
}

func TestSQLiteRepository_CreateDefaultsTimestamp(t *testing.T) {
	repo := openTestRepo(t)
	before := time.Now().Add(-time.Second)

	e := &Entry{SessionID: "s1", From: "disconnected", To: "failed", Reason: "consumer not ready"}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want now", e.CreatedAt)
	}

	entries, err := repo.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != "consumer not ready" {
		t.Errorf("List() = %+v", entries)
	}
}

func TestSQLiteRepository_ListSession(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, sid := range []string{"a", "b", "a"} {
		if err := repo.Create(ctx, &Entry{SessionID: sid, From: "disconnected", To: "connected"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	entries, err := repo.ListSession(ctx, "a", 0)
	if err != nil {
		t.Fatalf("ListSession() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(ListSession(a)) = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.SessionID != "a" {
			t.Errorf("entry from session %q", e.SessionID)
		}
	}
}

func TestSQLiteRepository_ListEmpty(t *testing.T) {
	repo := openTestRepo(t)

	entries, err := repo.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", entries)
	}
}

func TestSQLiteRepository_OrdersWholeAndFractionalSeconds(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	whole := time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC)

	for _, e := range []*Entry{
		{SessionID: "s1", From: "disconnected", To: "waiting_for_service", CreatedAt: whole},
		{SessionID: "s1", From: "waiting_for_service", To: "connected", CreatedAt: whole.Add(500 * time.Millisecond)},
	} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	entries, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 || entries[0].To != "connected" {
		t.Errorf("List() = %+v, want connected first", entries)
	}
}

func TestSQLiteRepository_Prune(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	for _, at := range []time.Time{now.Add(-48 * time.Hour), now} {
		if err := repo.Create(ctx, &Entry{SessionID: "s1", From: "disconnected", To: "connected", CreatedAt: at}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() deleted = %d, want 1", deleted)
	}

	entries, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].CreatedAt.Before(now.Add(-time.Hour)) {
		t.Errorf("remaining = %+v", entries)
	}

	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) error = nil, want error")
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{10, 10},
		{MaxLimit, MaxLimit},
		{MaxLimit + 1, MaxLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
