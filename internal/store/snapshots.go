package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/histia/viewsift/internal/flatseq"
)

const defaultListLimit = 50

// NewSnapshot builds a snapshot from a reconstructed result. The content hash
// covers the serialized result only, not the fetch time, so refetching an
// unchanged view hashes identically.
func NewSnapshot(sourceURL string, result *flatseq.Result) (*Snapshot, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	snap := &Snapshot{
		SourceURL:   sourceURL,
		ContentHash: HashResult(data),
		FetchedAt:   time.Now().UTC(),
		Result:      data,
	}
	if result.Statistics != nil {
		snap.TotalColumns = result.Statistics.TotalColumns
		snap.TotalRows = result.Statistics.TotalRows
	}
	return snap, nil
}

// HashResult computes the SHA-256 content hash of a serialized result.
func HashResult(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}

// SaveSnapshot inserts a snapshot unless an identical one already exists.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) (int64, bool, error) {
	if snap.ContentHash == "" {
		snap.ContentHash = HashResult(snap.Result)
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM snapshots WHERE content_hash = ?", snap.ContentHash,
	).Scan(&existingID)
	switch {
	case err == nil:
		return existingID, false, nil
	case err != sql.ErrNoRows:
		return 0, false, fmt.Errorf("checking for existing snapshot: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (source_url, content_hash, fetched_at, total_columns, total_rows, result)
		VALUES (?, ?, ?, ?, ?, ?)`,
		snap.SourceURL, snap.ContentHash, snap.FetchedAt.Format(time.RFC3339),
		snap.TotalColumns, snap.TotalRows, string(snap.Result),
	)
	if err != nil {
		return 0, false, fmt.Errorf("inserting snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("reading insert id: %w", err)
	}
	snap.ID = id
	return id, true, nil
}

// GetSnapshot loads one snapshot by id.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_url, content_hash, fetched_at, total_columns, total_rows, result
		FROM snapshots WHERE id = ?`, id)

	snap, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("snapshot %d: %w", id, err)
		}
		return nil, fmt.Errorf("loading snapshot %d: %w", id, err)
	}
	return snap, nil
}

// ListSnapshots returns snapshots newest-first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, opts ListOpts) ([]*Snapshot, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, source_url, content_hash, fetched_at, total_columns, total_rows, result
		FROM snapshots`
	args := []any{}
	if opts.SourceURL != "" {
		query += " WHERE source_url = ?"
		args = append(args, opts.SourceURL)
	}
	query += " ORDER BY fetched_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// LatestSnapshot returns the most recent snapshot, optionally per source URL.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, sourceURL string) (*Snapshot, error) {
	query := `
		SELECT id, source_url, content_hash, fetched_at, total_columns, total_rows, result
		FROM snapshots`
	args := []any{}
	if sourceURL != "" {
		query += " WHERE source_url = ?"
		args = append(args, sourceURL)
	}
	query += " ORDER BY fetched_at DESC, id DESC LIMIT 1"

	snap, err := scanSnapshot(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no snapshots stored: %w", err)
		}
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	return snap, nil
}

// DeleteSnapshot removes one snapshot by id.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting snapshot %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("snapshot %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	var fetchedAt string
	var result string
	if err := row.Scan(&snap.ID, &snap.SourceURL, &snap.ContentHash,
		&fetchedAt, &snap.TotalColumns, &snap.TotalRows, &result); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, fetchedAt); err == nil {
		snap.FetchedAt = t
	}
	snap.Result = []byte(result)
	return &snap, nil
}
