// Package cache is the durable local store behind the dashboard: actor
// profiles with a staleness horizon, per-actor interaction statistics, and
// sync-run bookkeeping, all in one schema-versioned SQLite database.
//
// The store never surfaces storage failures to callers. A broken database
// degrades every operation to empty reads and dropped writes, so the rest
// of the pipeline keeps working against the live service; failures are
// logged and counted in Stats.
package cache

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dmoskov/shadowsky-sub002/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Raised with every added migration.
const CurrentSchemaVersion = 1

// DefaultStaleAfter is the profile staleness horizon when none is configured.
const DefaultStaleAfter = 7 * 24 * time.Hour

// Approximate per-row footprints used for the size estimate in Stats.
const (
	avgProfileBytes     = 500
	avgInteractionBytes = 1000
)

// Store is the persistent cache. Safe for concurrent use; individual
// writes are atomic, last writer wins.
type Store struct {
	db         *sql.DB
	staleAfter time.Duration
	clock      func() time.Time
	degraded   atomic.Int64
}

// Open initializes the SQLite database at baseDir/shadowsky.db and returns
// the store. The baseDir parameter allows tests to use t.TempDir() instead
// of ~/.shadowsky.
func Open(baseDir string, staleAfter time.Duration) (*Store, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	// Cache directory is owner-only.
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// MkdirAll leaves the mode alone when the directory already exists.
	_ = os.Chmod(baseDir, 0700)

	// Pragmas ride the DSN so every pooled connection gets them
	dbPath := filepath.Join(baseDir, "shadowsky.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// The first migration creates the file as a side effect
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Tighten the file mode once the file exists
	_ = os.Chmod(dbPath, 0600)

	return &Store{db: db, staleAfter: staleAfter, clock: time.Now}, nil
}

// Degraded returns a store with no database behind it. Every read comes
// back empty and every write is dropped, which keeps the pipeline alive
// when the local database cannot be opened at all.
func Degraded(staleAfter time.Duration) *Store {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Store{staleAfter: staleAfter, clock: time.Now}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ConfigurePool applies the config's connection pool limits to the
// underlying sql.DB. Zero values leave the pool untouched.
func (s *Store) ConfigurePool(cfg *config.Config) {
	if cfg == nil || s.db == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		s.db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		s.db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// errNoDB marks operations attempted against a degraded store.
var errNoDB = fmt.Errorf("store has no database")

// conn returns the database handle, or errNoDB when the store is degraded.
func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	return s.db, nil
}

// degrade records a swallowed storage failure. Callers return empty
// results after calling it; the pipeline is expected to carry on.
func (s *Store) degrade(op string, err error) {
	s.degraded.Add(1)
	log.Printf("cache: %s degraded: %v", op, err)
}

// Stats summarizes the cache contents.
type Stats struct {
	TotalProfiles     int64 `json:"total_profiles"`
	TotalInteractions int64 `json:"total_interactions"`
	StaleProfiles     int64 `json:"stale_profiles"`
	EstimatedBytes    int64 `json:"estimated_bytes"`
	DegradedOps       int64 `json:"degraded_ops,omitempty"`
}

// Stats returns cache totals. EstimatedBytes is an approximation from
// fixed per-row footprints, not a measured size.
func (s *Store) Stats() Stats {
	st := Stats{DegradedOps: s.degraded.Load()}

	db, err := s.conn()
	if err != nil {
		s.degrade("stats", err)
		st.DegradedOps = s.degraded.Load()
		return st
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&st.TotalProfiles); err != nil {
		s.degrade("stats", err)
		st.DegradedOps = s.degraded.Load()
		return st
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&st.TotalInteractions); err != nil {
		s.degrade("stats", err)
		st.DegradedOps = s.degraded.Load()
		return st
	}

	cutoff := s.clock().Unix() - int64(s.staleAfter.Seconds())
	if err := db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE last_fetched < ?`, cutoff).Scan(&st.StaleProfiles); err != nil {
		s.degrade("stats", err)
		st.DegradedOps = s.degraded.Load()
		return st
	}

	st.EstimatedBytes = st.TotalProfiles*avgProfileBytes + st.TotalInteractions*avgInteractionBytes
	return st
}

// Clear deletes every cached record and the sync history. Returns how many
// profile and interaction rows were removed.
func (s *Store) Clear() (profiles, interactions int64) {
	db, err := s.conn()
	if err != nil {
		s.degrade("clear", err)
		return 0, 0
	}

	tx, err := db.Begin()
	if err != nil {
		s.degrade("clear", err)
		return 0, 0
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM profiles`)
	if err != nil {
		s.degrade("clear", err)
		return 0, 0
	}
	profiles, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM interactions`)
	if err != nil {
		s.degrade("clear", err)
		return 0, 0
	}
	interactions, _ = res.RowsAffected()

	if _, err := tx.Exec(`DELETE FROM sync_runs`); err != nil {
		s.degrade("clear", err)
		return 0, 0
	}

	if err := tx.Commit(); err != nil {
		s.degrade("clear", err)
		return 0, 0
	}
	return profiles, interactions
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS profiles (
		  actor_id     TEXT PRIMARY KEY,
		  handle       TEXT NOT NULL,
		  display_name TEXT,
		  avatar_url   TEXT,
		  bio          TEXT,
		  followers    INTEGER NOT NULL DEFAULT 0,
		  following    INTEGER NOT NULL DEFAULT 0,
		  posts        INTEGER NOT NULL DEFAULT 0,
		  last_fetched INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_handle
		ON profiles(handle);

		CREATE INDEX IF NOT EXISTS idx_profiles_followers
		ON profiles(followers DESC);

		CREATE INDEX IF NOT EXISTS idx_profiles_last_fetched
		ON profiles(last_fetched);

		CREATE TABLE IF NOT EXISTS interactions (
		  actor_id   TEXT PRIMARY KEY,
		  total      INTEGER NOT NULL DEFAULT 0,
		  likes      INTEGER NOT NULL DEFAULT 0,
		  reposts    INTEGER NOT NULL DEFAULT 0,
		  follows    INTEGER NOT NULL DEFAULT 0,
		  replies    INTEGER NOT NULL DEFAULT 0,
		  mentions   INTEGER NOT NULL DEFAULT 0,
		  quotes     INTEGER NOT NULL DEFAULT 0,
		  first_seen INTEGER NOT NULL,
		  last_seen  INTEGER NOT NULL,
		  post_refs  TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_interactions_total
		ON interactions(total DESC);

		CREATE TABLE IF NOT EXISTS sync_runs (
		  id          TEXT PRIMARY KEY,
		  started_at  INTEGER NOT NULL,
		  finished_at INTEGER,
		  fetched     INTEGER NOT NULL DEFAULT 0,
		  folded      INTEGER NOT NULL DEFAULT 0,
		  mark        INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_sync_runs_finished
		ON sync_runs(finished_at DESC)
		WHERE finished_at IS NOT NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode confirms the journal_mode pragma from the DSN took effect.
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
