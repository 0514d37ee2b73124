package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pagevoice/pagevoice/internal/config"
)

// PageRow is the persisted form of a finished page.
type PageRow struct {
	CacheKey    string
	ContentHash string
	PageNumber  int
	AudioPath   string
	Duration    float64
	Timing      string
	Segments    []byte
	CreatedAt   time.Time
}

// Store persists the cache index in SQLite so finished pages survive process
// restarts. Audio artifacts themselves live on disk next to it.
type Store struct {
	db    *sql.DB
	cfg   config.CacheConfig
	log   *slog.Logger
	clock func() time.Time
}

func OpenStore(ctx context.Context, cfg config.CacheConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.IndexPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.IndexPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("cache index vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("cache index prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS pages (
    cache_key TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    page_number INTEGER NOT NULL,
    audio_path TEXT NOT NULL,
    duration REAL NOT NULL,
    timing TEXT,
    segments BLOB,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_created ON pages(created_at);
CREATE TABLE IF NOT EXISTS segment_lists (
    content_hash TEXT PRIMARY KEY,
    segments BLOB NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertPage writes or replaces a finished page row.
func (s *Store) UpsertPage(ctx context.Context, row PageRow) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pages(cache_key, content_hash, page_number, audio_path, duration, timing, segments, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   audio_path=excluded.audio_path, duration=excluded.duration,
		   timing=excluded.timing, segments=excluded.segments`,
		row.CacheKey, row.ContentHash, row.PageNumber, row.AudioPath,
		row.Duration, row.Timing, row.Segments, row.CreatedAt)
	return err
}

// GetPage fetches a page row by cache key.
func (s *Store) GetPage(ctx context.Context, cacheKey string) (PageRow, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT cache_key, content_hash, page_number, audio_path, duration, timing, segments, created_at
		 FROM pages WHERE cache_key = ?`, cacheKey)

	var r PageRow
	var created string
	err := row.Scan(&r.CacheKey, &r.ContentHash, &r.PageNumber, &r.AudioPath,
		&r.Duration, &r.Timing, &r.Segments, &created)
	if err == sql.ErrNoRows {
		return PageRow{}, false, nil
	}
	if err != nil {
		return PageRow{}, false, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		r.CreatedAt = ts
	}
	return r, true, nil
}

// UpsertSegmentList stores the raw model output for a content hash.
func (s *Store) UpsertSegmentList(ctx context.Context, contentHash string, segments []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO segment_lists(content_hash, segments, created_at)
		 VALUES(?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET segments=excluded.segments`,
		contentHash, segments, s.clock().UTC())
	return err
}

// GetSegmentList fetches the raw model output for a content hash.
func (s *Store) GetSegmentList(ctx context.Context, contentHash string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT segments FROM segment_lists WHERE content_hash = ?`, contentHash)
	var segments []byte
	err := row.Scan(&segments)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return segments, true, nil
}

// Prune applies configured retention: rows older than the retention window
// are dropped, and the page table is capped at max_entries newest rows.
func (s *Store) Prune(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour).UTC()
		if _, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM segment_lists WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxEntries > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE cache_key IN (
			SELECT cache_key FROM pages ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxEntries)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
