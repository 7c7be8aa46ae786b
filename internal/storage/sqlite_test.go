package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_program_runs_user", "idx_xp_transactions_user", "idx_journal_entries_journal_created"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("007_add_things.sql")
	if err != nil || v != 7 {
		t.Errorf("parseMigrationVersion = %d, %v; want 7, nil", v, err)
	}
	if _, err := parseMigrationVersion("initial.sql"); err == nil {
		t.Error("expected error for file without version prefix")
	}
}

func TestGetOrCreateDemoUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u1, err := s.GetOrCreateDemoUser(ctx, "", "")
	if err != nil {
		t.Fatalf("GetOrCreateDemoUser: %v", err)
	}
	if u1.Email != DemoUserEmail || u1.Name != DemoUserName || u1.Role != "admin" {
		t.Errorf("unexpected demo user: %+v", u1)
	}

	u2, err := s.GetOrCreateDemoUser(ctx, DemoUserEmail, "Other Name")
	if err != nil {
		t.Fatalf("second GetOrCreateDemoUser: %v", err)
	}
	if u2.ID != u1.ID || u2.Name != DemoUserName {
		t.Errorf("expected existing user to be returned unchanged, got %+v", u2)
	}

	got, err := s.GetUser(ctx, u1.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != u1.Email || !got.CreatedAt.Equal(u1.CreatedAt) {
		t.Errorf("GetUser = %+v, want %+v", got, u1)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestGetProgramByIDOrSlug(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"environment-household-cards", "household-cards"} {
		p, err := s.GetProgram(ctx, key)
		if err != nil {
			t.Fatalf("GetProgram(%q): %v", key, err)
		}
		if p.ID != "environment-household-cards" || p.XPReward != 15 || p.Category != "environment" {
			t.Errorf("GetProgram(%q) = %+v", key, p)
		}
	}

	if _, err := s.GetProgram(ctx, "nope"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("GetProgram(nope) error = %v, want ErrProgramNotFound", err)
	}
}

func TestCreateProgramRunCreditsXP(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, xp, err := s.CreateProgramRun(ctx, "", "environment-household-cards", []byte(`{"cardId":"c1"}`))
	if err != nil {
		t.Fatalf("CreateProgramRun: %v", err)
	}
	if runID == "" || xp != 15 {
		t.Errorf("CreateProgramRun = %q, %d; want non-empty id, 15", runID, xp)
	}

	run, err := s.GetProgramRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetProgramRun: %v", err)
	}
	if run.Answers != `{"cardId":"c1"}` || run.Mode != "single" || run.XPEarned != 15 {
		t.Errorf("unexpected run: %+v", run)
	}

	demo, err := s.GetOrCreateDemoUser(ctx, "", "")
	if err != nil {
		t.Fatalf("GetOrCreateDemoUser: %v", err)
	}
	if run.UserID != demo.ID {
		t.Errorf("run user = %q, want demo user %q", run.UserID, demo.ID)
	}

	if _, _, err := s.CreateProgramRun(ctx, demo.ID, "household-cards", nil); err != nil {
		t.Fatalf("second CreateProgramRun: %v", err)
	}
	total, err := s.TotalXP(ctx, demo.ID)
	if err != nil {
		t.Fatalf("TotalXP: %v", err)
	}
	if total != 30 {
		t.Errorf("TotalXP = %d, want 30", total)
	}
}

func TestCreateProgramRunUnknownProgram(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.CreateProgramRun(ctx, "", "nope", nil); !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("error = %v, want ErrProgramNotFound", err)
	}

	var runs int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM program_runs").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if runs != 0 {
		t.Errorf("expected no runs, got %d", runs)
	}
}

func TestGetProgramRunNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetProgramRun(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestAppendHouseholdLogNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	step := 0
	s.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	for i := range 3 {
		if err := s.AppendHouseholdLog(ctx, "unknown-user", fmt.Sprintf("<p>%d</p>", i)); err != nil {
			t.Fatalf("AppendHouseholdLog %d: %v", i, err)
		}
	}

	entries, err := s.ListJournalEntries(ctx, HouseholdJournalID, 2)
	if err != nil {
		t.Fatalf("ListJournalEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ContentHTML != "<p>2</p>" || entries[1].ContentHTML != "<p>1</p>" {
		t.Errorf("unexpected order: %q, %q", entries[0].ContentHTML, entries[1].ContentHTML)
	}
	if !entries[0].CreatedAt.After(entries[1].CreatedAt) {
		t.Errorf("expected descending timestamps, got %v then %v", entries[0].CreatedAt, entries[1].CreatedAt)
	}

	demo, err := s.GetOrCreateDemoUser(ctx, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].UserID != demo.ID {
		t.Errorf("entry user = %q, want demo user", entries[0].UserID)
	}

	var journals int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM journals").Scan(&journals); err != nil {
		t.Fatal(err)
	}
	if journals != 1 {
		t.Errorf("expected one journal, got %d", journals)
	}
}

func TestListJournalEntriesEmpty(t *testing.T) {
	s := openTestStore(t)
	entries, err := s.ListJournalEntries(context.Background(), HouseholdJournalID, 20)
	if err != nil {
		t.Fatalf("ListJournalEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}
