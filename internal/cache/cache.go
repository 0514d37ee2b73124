// Package cache stores finished page audio and timing so repeated requests
// for the same text skip segmentation and synthesis entirely. Entries are
// keyed by a content hash bucketed by day, fronted by in-memory LRUs, and
// indexed durably in SQLite.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pagevoice/pagevoice/internal/config"
	"github.com/pagevoice/pagevoice/internal/protocol"
)

// Key identifies a page by its text content and the day it was processed.
type Key struct {
	// CacheKey names the cache entry and the audio artifact.
	CacheKey string
	// ContentHash keys the day-independent segment list cache.
	ContentHash string
}

// Entry is a finished page ready to serve without reprocessing.
type Entry struct {
	AudioPath string
	Duration  float64
	Timing    string
	Segments  []protocol.EnhancedSegment
}

type Cache struct {
	cfg   config.CacheConfig
	store *Store
	pages *lru.Cache[string, Entry]
	segs  *lru.Cache[string, []protocol.Segment]
	log   *slog.Logger
	clock func() time.Time
}

func Open(ctx context.Context, cfg config.CacheConfig, log *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio cache dir: %w", err)
	}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	pages, err := lru.New[string, Entry](cfg.PageLRUSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("page lru: %w", err)
	}
	segs, err := lru.New[string, []protocol.Segment](cfg.SegmentLRUSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("segment lru: %w", err)
	}

	return &Cache{
		cfg:   cfg,
		store: store,
		pages: pages,
		segs:  segs,
		log:   log.With(slog.String("component", "cache")),
		clock: time.Now,
	}, nil
}

func (c *Cache) Close() error {
	return c.store.Close()
}

// KeyFor derives the cache key for a page. The text is hashed with FNV-1a and
// the key is prefixed with the current date, so identical pages re-render at
// most once per day while hash collisions across days stay isolated.
func (c *Cache) KeyFor(strippedText string, pageNumber int) Key {
	h := fnv.New64a()
	h.Write([]byte(strippedText))
	sum := h.Sum64()
	day := c.clock().Format("20060102")
	return Key{
		CacheKey:    fmt.Sprintf("%s_%016x_page_%d", day, sum, pageNumber),
		ContentHash: fmt.Sprintf("%016x", sum),
	}
}

// AudioPath returns where the WAV artifact for a key lives on disk.
func (c *Cache) AudioPath(key Key) string {
	return filepath.Join(c.cfg.Dir, key.CacheKey+".wav")
}

// Lookup returns a finished page for the key if one is still usable. An index
// row whose audio file has been removed from disk counts as a miss. An audio
// file with no index row is served with its measured duration but without
// segment timing, since the timing cannot be recovered from the WAV alone.
func (c *Cache) Lookup(ctx context.Context, key Key) (Entry, bool) {
	if entry, ok := c.pages.Get(key.CacheKey); ok {
		if fileExists(entry.AudioPath) {
			return entry, true
		}
		c.pages.Remove(key.CacheKey)
	}

	row, ok, err := c.store.GetPage(ctx, key.CacheKey)
	if err != nil {
		c.log.Warn("cache index lookup failed",
			slog.String("cache_key", key.CacheKey),
			slog.String("error", err.Error()))
	}
	if ok && fileExists(row.AudioPath) {
		entry := Entry{AudioPath: row.AudioPath, Duration: row.Duration, Timing: row.Timing}
		if len(row.Segments) > 0 {
			if err := json.Unmarshal(row.Segments, &entry.Segments); err != nil {
				c.log.Warn("cached segments unreadable",
					slog.String("cache_key", key.CacheKey),
					slog.String("error", err.Error()))
				entry.Segments = nil
			}
		}
		c.pages.Add(key.CacheKey, entry)
		return entry, true
	}

	audioPath := c.AudioPath(key)
	if fileExists(audioPath) {
		duration, err := wavDuration(audioPath)
		if err != nil {
			c.log.Warn("orphan audio unreadable",
				slog.String("path", audioPath),
				slog.String("error", err.Error()))
			return Entry{}, false
		}
		c.log.Info("serving cached audio without timing",
			slog.String("cache_key", key.CacheKey))
		return Entry{AudioPath: audioPath, Duration: duration}, true
	}

	return Entry{}, false
}

// Store records a finished page in the LRU and the durable index.
func (c *Cache) Store(ctx context.Context, key Key, pageNumber int, entry Entry) {
	c.pages.Add(key.CacheKey, entry)

	var segments []byte
	if len(entry.Segments) > 0 {
		var err error
		segments, err = json.Marshal(entry.Segments)
		if err != nil {
			c.log.Warn("marshal cached segments failed",
				slog.String("cache_key", key.CacheKey),
				slog.String("error", err.Error()))
		}
	}
	err := c.store.UpsertPage(ctx, PageRow{
		CacheKey:    key.CacheKey,
		ContentHash: key.ContentHash,
		PageNumber:  pageNumber,
		AudioPath:   entry.AudioPath,
		Duration:    entry.Duration,
		Timing:      entry.Timing,
		Segments:    segments,
	})
	if err != nil {
		c.log.Warn("cache index write failed",
			slog.String("cache_key", key.CacheKey),
			slog.String("error", err.Error()))
	}
}

// SegmentList returns a previously produced segment list for a content hash.
// Segment lists are keyed on content alone, not the day bucket, so a page
// re-rendered on a new day still skips the model call.
func (c *Cache) SegmentList(ctx context.Context, contentHash string) ([]protocol.Segment, bool) {
	if segments, ok := c.segs.Get(contentHash); ok {
		return segments, true
	}
	raw, ok, err := c.store.GetSegmentList(ctx, contentHash)
	if err != nil {
		c.log.Warn("segment list lookup failed",
			slog.String("content_hash", contentHash),
			slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var segments []protocol.Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		c.log.Warn("cached segment list unreadable",
			slog.String("content_hash", contentHash),
			slog.String("error", err.Error()))
		return nil, false
	}
	c.segs.Add(contentHash, segments)
	return segments, true
}

// StoreSegmentList records model output for reuse across day buckets.
func (c *Cache) StoreSegmentList(ctx context.Context, contentHash string, segments []protocol.Segment) {
	c.segs.Add(contentHash, segments)
	raw, err := json.Marshal(segments)
	if err != nil {
		c.log.Warn("marshal segment list failed",
			slog.String("content_hash", contentHash),
			slog.String("error", err.Error()))
		return
	}
	if err := c.store.UpsertSegmentList(ctx, contentHash, raw); err != nil {
		c.log.Warn("segment list write failed",
			slog.String("content_hash", contentHash),
			slog.String("error", err.Error()))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
