// Package store provides the SQLite storage layer for viewsift.
//
// Every fetched shared view lands here as a snapshot: the full reconstructed
// result as JSON plus enough metadata to list and diff runs without decoding
// the blob. Snapshots deduplicate on content hash, so refetching an unchanged
// view is a no-op.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.viewsift/viewsift.db"

// Snapshot is one stored reconstruction run.
type Snapshot struct {
	ID           int64
	SourceURL    string
	ContentHash  string
	FetchedAt    time.Time
	TotalColumns int
	TotalRows    int
	// Result is the reconstructed result serialized as JSON.
	Result []byte
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Limit  int
	Offset int
	// SourceURL filters to snapshots of one share link when set.
	SourceURL string
}

// Config holds configuration for NewStore.
type Config struct {
	DBPath string
}

// Store defines the snapshot storage interface.
type Store interface {
	// SaveSnapshot inserts a snapshot, deduplicating on content hash. The
	// returned bool is false when an identical snapshot already existed; the
	// existing row's id is returned in that case.
	SaveSnapshot(ctx context.Context, s *Snapshot) (int64, bool, error)
	GetSnapshot(ctx context.Context, id int64) (*Snapshot, error)
	ListSnapshots(ctx context.Context, opts ListOpts) ([]*Snapshot, error)
	// LatestSnapshot returns the most recently fetched snapshot, optionally
	// restricted to one source URL. Returns sql.ErrNoRows-wrapped error when
	// the store is empty.
	LatestSnapshot(ctx context.Context, sourceURL string) (*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id int64) error

	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg Config) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database. Manual only, never automatic.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
