// Package archive persists fetched and published posts in SQLite. It seeds
// the similarity window and keeps the per-day publish counters durable
// across restarts.
package archive

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

const (
	SourceFetched   = "fetched"
	SourcePublished = "published"
)

// Record is one archived post.
type Record struct {
	ID         string
	Handle     string
	Text       string
	Source     string
	PlatformID string
	PostedDay  string
	CreatedAt  time.Time
}

type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the archive database.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id          TEXT PRIMARY KEY,
			handle      TEXT NOT NULL,
			text        TEXT NOT NULL,
			source      TEXT NOT NULL,
			platform_id TEXT,
			posted_day  TEXT,
			created_at  TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_posts_handle_created ON posts(handle, created_at DESC);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_platform ON posts(handle, platform_id) WHERE platform_id != '';
	`)
	if err != nil {
		return fmt.Errorf("migrate archive schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SaveFetched inserts timeline posts, skipping ones already archived for the
// handle. Returns the number of new rows.
func (s *Store) SaveFetched(ctx context.Context, handle string, posts []FetchedPost) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, p := range posts {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO posts (id, handle, text, source, platform_id, posted_day, created_at)
			VALUES (?, ?, ?, ?, ?, '', ?)
		`, uuid.NewString(), handle, p.Text, SourceFetched, p.PlatformID, p.CreatedAt.UTC())
		if err != nil {
			return 0, fmt.Errorf("insert fetched post: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// FetchedPost is the slice of a platform post the archive keeps.
type FetchedPost struct {
	PlatformID string
	Text       string
	CreatedAt  time.Time
}

// SavePublished records a successful publish under its local calendar day.
func (s *Store) SavePublished(ctx context.Context, handle, text, platformID, day string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, handle, text, source, platform_id, posted_day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), handle, text, SourcePublished, platformID, day, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert published post: %w", err)
	}
	return nil
}

// RecentTexts returns the newest archived texts for a handle, fetched and
// published alike, newest first.
func (s *Store) RecentTexts(ctx context.Context, handle string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT text FROM posts
		WHERE handle = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent texts: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan text: %w", err)
		}
		texts = append(texts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate texts: %w", err)
	}
	return texts, nil
}

// FetchedTexts returns archived timeline texts for style analysis, newest
// first.
func (s *Store) FetchedTexts(ctx context.Context, handle string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 400
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT text FROM posts
		WHERE handle = ? AND source = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, handle, SourceFetched, limit)
	if err != nil {
		return nil, fmt.Errorf("list fetched texts: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan text: %w", err)
		}
		texts = append(texts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate texts: %w", err)
	}
	return texts, nil
}

// CountPublishedOn counts publishes recorded for a handle on one local
// calendar day (format 2006-01-02).
func (s *Store) CountPublishedOn(ctx context.Context, handle, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM posts
		WHERE handle = ? AND source = ? AND posted_day = ?
	`, handle, SourcePublished, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count published: %w", err)
	}
	return count, nil
}
