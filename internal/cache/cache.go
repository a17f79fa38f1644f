// Package cache persists oracle extraction results in a local SQLite database
// so that re-analyzing an unchanged document costs no oracle calls. Entries
// are keyed by a digest of document content and prompt, tagged with the
// document type, and expire after a configurable TTL.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pharmadoc/internal/doctree"
	"pharmadoc/internal/logging"
)

// DefaultTTL is how long a cached extraction stays valid.
const DefaultTTL = 24 * time.Hour

const (
	contentKeyPrefix = 1000
	promptKeyPrefix  = 500
)

// Store is a SQLite-backed extraction cache. Safe for concurrent use; the
// underlying pool is capped at one connection, matching SQLite's writer model.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	return OpenTTL(path, DefaultTTL)
}

// OpenTTL creates or opens the cache database with an explicit entry TTL.
func OpenTTL(path string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}
	// SQLite allows one writer; serialize access through a single connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("cache: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, ttl: ttl, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS extractions (
		cache_key     TEXT PRIMARY KEY,
		document_type TEXT NOT NULL DEFAULT '',
		payload       TEXT NOT NULL,
		created_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_extractions_type ON extractions(document_type);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("cache: create schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives the cache key for a document/prompt pair. Only the leading
// slices of each participate, so cosmetic changes deep in a large document
// do not churn the cache while prompt or header edits do.
func Key(content, prompt string) string {
	h := sha256.New()
	h.Write([]byte(truncate(content, contentKeyPrefix)))
	h.Write([]byte(truncate(prompt, promptKeyPrefix)))
	return hex.EncodeToString(h.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Get returns the cached extraction for key, or nil when absent, expired, or
// recorded under a different document type. docType "" matches any entry.
func (s *Store) Get(key, docType string) *doctree.Mapping {
	var (
		storedType string
		payload    string
		createdAt  int64
	)
	row := s.db.QueryRow(
		`SELECT document_type, payload, created_at FROM extractions WHERE cache_key = ?`, key)
	if err := row.Scan(&storedType, &payload, &createdAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.CacheWarn("read %s: %v", key, err)
		}
		return nil
	}

	if docType != "" && storedType != docType {
		return nil
	}
	if s.now().Sub(time.Unix(createdAt, 0)) >= s.ttl {
		logging.CacheDebug("entry %s expired", key)
		return nil
	}

	record, err := doctree.ParseObject(payload)
	if err != nil {
		logging.CacheWarn("corrupt entry %s: %v", key, err)
		return nil
	}
	logging.Cache("hit %s (%s)", key, storedType)
	return record
}

// Set stores an extraction under key, replacing any previous entry whole.
// Concurrent writers race benignly; the last write wins.
func (s *Store) Set(key, docType string, record *doctree.Mapping) {
	payload := doctree.Canonical(record)
	_, err := s.db.Exec(
		`INSERT INTO extractions (cache_key, document_type, payload, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   document_type = excluded.document_type,
		   payload       = excluded.payload,
		   created_at    = excluded.created_at`,
		key, docType, payload, s.now().Unix())
	if err != nil {
		logging.CacheWarn("write %s: %v", key, err)
		return
	}
	logging.CacheDebug("stored %s (%s, %d bytes)", key, docType, len(payload))
}

// Prune deletes expired entries. Returns the number removed.
func (s *Store) Prune() (int64, error) {
	cutoff := s.now().Add(-s.ttl).Unix()
	res, err := s.db.Exec(`DELETE FROM extractions WHERE created_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Cache("pruned %d expired entries", n)
	}
	return n, nil
}
