// Package history keeps a SQLite journal of rates fetched from the
// rate provider. The journal is write-mostly: the quote path appends one
// row per upstream fetch and the CLI reads it back.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one upstream fetch
type Record struct {
	ID        string        `json:"id"`
	Base      string        `json:"base"`
	Target    string        `json:"target"`
	Rate      float64       `json:"rate"`
	FetchedAt time.Time     `json:"fetched_at"`
	Latency   time.Duration `json:"latency"`
}

// Pair returns the cache key style pair name
func (r Record) Pair() string {
	return r.Base + "-" + r.Target
}

// Stats summarises the journal
type Stats struct {
	TotalRecords  int64     `json:"total_records"`
	DistinctPairs int64     `json:"distinct_pairs"`
	Oldest        time.Time `json:"oldest"`
	Newest        time.Time `json:"newest"`
	SizeBytes     int64     `json:"size_bytes"`
}

// Journal handles rate history persistence with SQLite
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal at path
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db, now: time.Now}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return j, nil
}

// Close closes the journal database connection
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends a fetch. An empty ID is replaced with a new UUID and a zero
// FetchedAt with the current time.
func (j *Journal) Record(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.FetchedAt.IsZero() {
		r.FetchedAt = j.now()
	}

	query := `
		INSERT INTO rate_history (id, base, target, rate, fetched_at, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query, r.ID, r.Base, r.Target, r.Rate, r.FetchedAt.UnixMilli(), r.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record rate: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, base, target, rate, fetched_at, latency_ms
		FROM rate_history
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var fetchedAt, latencyMs int64
		if err := rows.Scan(&r.ID, &r.Base, &r.Target, &r.Rate, &fetchedAt, &latencyMs); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.FetchedAt = time.UnixMilli(fetchedAt)
		r.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats returns journal statistics
func (j *Journal) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	var oldest, newest sql.NullInt64

	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT base || '-' || target), MIN(fetched_at), MAX(fetched_at)
		FROM rate_history
	`).Scan(&stats.TotalRecords, &stats.DistinctPairs, &oldest, &newest)
	if err != nil {
		return nil, err
	}
	if oldest.Valid {
		stats.Oldest = time.UnixMilli(oldest.Int64)
	}
	if newest.Valid {
		stats.Newest = time.UnixMilli(newest.Int64)
	}

	var pageCount, pageSize int64
	if err := j.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, err
	}
	if err := j.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, err
	}
	stats.SizeBytes = pageCount * pageSize

	return &stats, nil
}

// Prune removes records older than olderThan and returns how many were removed
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := j.now().Add(-olderThan).UnixMilli()
	result, err := j.db.ExecContext(ctx, "DELETE FROM rate_history WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		// Vacuum to reclaim space after pruning
		if _, err := j.db.ExecContext(ctx, "VACUUM"); err != nil {
			return n, err
		}
	}
	return n, nil
}

// initSchema creates the history table if it doesn't exist
func (j *Journal) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS rate_history (
			id TEXT PRIMARY KEY,
			base TEXT NOT NULL,
			target TEXT NOT NULL,
			rate REAL NOT NULL,
			fetched_at INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_rate_history_fetched_at ON rate_history(fetched_at);
		CREATE INDEX IF NOT EXISTS idx_rate_history_pair ON rate_history(base, target);
	`
	_, err := j.db.Exec(schema)
	return err
}
