package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout keeps fixed-width fractions so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Store wraps the primary SQLite database: users, programs, program runs,
// the XP ledger and journals.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "dais.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// --- Users ---

// GetOrCreateDemoUser returns the user with email, creating it as an admin
// when missing. Empty email and name fall back to the demo defaults.
func (s *Store) GetOrCreateDemoUser(ctx context.Context, email, name string) (User, error) {
	return s.demoUser(ctx, s.db, email, name)
}

func (s *Store) demoUser(ctx context.Context, q queryer, email, name string) (User, error) {
	if email == "" {
		email = DemoUserEmail
	}
	if name == "" {
		name = DemoUserName
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, created_at) VALUES (?, ?, ?, 'admin', ?)
		ON CONFLICT(email) DO NOTHING`,
		uuid.NewString(), email, name, s.now().Format(timeLayout),
	); err != nil {
		return User{}, fmt.Errorf("creating demo user: %w", err)
	}
	return scanUser(q.QueryRowContext(ctx,
		"SELECT id, email, name, role, created_at FROM users WHERE email = ?", email))
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, email, name, role, created_at FROM users WHERE id = ?", id))
}

// resolveUser returns the user with id, or the demo user when id is empty or
// unknown.
func (s *Store) resolveUser(ctx context.Context, q queryer, id string) (User, error) {
	if id != "" {
		u, err := scanUser(q.QueryRowContext(ctx,
			"SELECT id, email, name, role, created_at FROM users WHERE id = ?", id))
		if err == nil || !errors.Is(err, ErrNotFound) {
			return u, err
		}
	}
	return s.demoUser(ctx, q, "", "")
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var createdAt string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &createdAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return User{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return u, nil
}

// --- Programs ---

// GetProgram returns the program with id or slug.
func (s *Store) GetProgram(ctx context.Context, idOrSlug string) (Program, error) {
	return getProgram(ctx, s.db, idOrSlug)
}

func getProgram(ctx context.Context, q queryer, idOrSlug string) (Program, error) {
	var p Program
	err := q.QueryRowContext(ctx, `
		SELECT id, slug, name, category, mode, xp_reward
		FROM programs WHERE id = ? OR slug = ?`, idOrSlug, idOrSlug,
	).Scan(&p.ID, &p.Slug, &p.Name, &p.Category, &p.Mode, &p.XPReward)
	if err == sql.ErrNoRows {
		return Program{}, ErrProgramNotFound
	}
	return p, err
}

// CreateProgramRun records a run of programID for userID (or the demo user)
// and credits the program's XP reward to the ledger in the same transaction.
func (s *Store) CreateProgramRun(ctx context.Context, userID, programID string, payload []byte) (string, int, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("beginning program run transaction: %w", err)
	}
	defer tx.Rollback()

	program, err := getProgram(ctx, tx, programID)
	if err != nil {
		return "", 0, err
	}
	user, err := s.resolveUser(ctx, tx, userID)
	if err != nil {
		return "", 0, err
	}

	now := s.now().Format(timeLayout)
	runID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO program_runs (id, program_id, user_id, mode, xp_earned, answers, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, program.ID, user.ID, program.Mode, program.XPReward, string(payload), now,
	); err != nil {
		return "", 0, fmt.Errorf("inserting program run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO xp_transactions (id, user_id, category, amount, type, source, program_run_id, created_at)
		VALUES (?, ?, ?, ?, 'earn', 'program', ?, ?)`,
		uuid.NewString(), user.ID, program.Category, program.XPReward, runID, now,
	); err != nil {
		return "", 0, fmt.Errorf("inserting xp transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("committing program run: %w", err)
	}
	return runID, program.XPReward, nil
}

// GetProgramRun returns the run with id.
func (s *Store) GetProgramRun(ctx context.Context, id string) (ProgramRun, error) {
	var r ProgramRun
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, program_id, user_id, mode, xp_earned, answers, created_at
		FROM program_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.ProgramID, &r.UserID, &r.Mode, &r.XPEarned, &r.Answers, &createdAt)
	if err == sql.ErrNoRows {
		return ProgramRun{}, ErrNotFound
	}
	if err != nil {
		return ProgramRun{}, err
	}
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return ProgramRun{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return r, nil
}

// TotalXP sums the ledger for userID.
func (s *Store) TotalXP(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM xp_transactions WHERE user_id = ?", userID,
	).Scan(&total)
	return total, err
}

// --- Journals ---

// AppendHouseholdLog adds contentHTML to the household journal, creating the
// journal on first use.
func (s *Store) AppendHouseholdLog(ctx context.Context, userID, contentHTML string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning journal transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := s.resolveUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO journals (id, name, type, user_id) VALUES (?, 'Haushalt Verlauf', 'success', ?)
		ON CONFLICT(id) DO NOTHING`,
		HouseholdJournalID, user.ID,
	); err != nil {
		return fmt.Errorf("creating household journal: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (id, journal_id, user_id, content_html, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), HouseholdJournalID, user.ID, contentHTML, s.now().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return tx.Commit()
}

// ListJournalEntries returns the newest entries of journalID first.
func (s *Store) ListJournalEntries(ctx context.Context, journalID string, limit int) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, journal_id, user_id, content_html, created_at
		FROM journal_entries WHERE journal_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, journalID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.JournalID, &e.UserID, &e.ContentHTML, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		results = append(results, e)
	}
	return results, rows.Err()
}
