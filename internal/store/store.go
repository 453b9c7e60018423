// Package store implements a durable key-value store of timestamped JSON
// records, one file per key. It is the persistence layer shared by the album
// cache, the secure reference mapping and the augmentation pipeline.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Record wraps a stored value with its write time. StoredAt is set to now on
// every write; staleness is recomputed from it on every read and is never
// persisted, so a record cannot carry a stale staleness flag.
type Record[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Stale reports whether the record is older than ttl at the given instant.
func (r *Record[T]) Stale(ttl time.Duration, now time.Time) bool {
	return now.Sub(r.StoredAt) > ttl
}

// Store persists records of type T under a base directory.
type Store[T any] struct {
	dir string
}

// New creates a store rooted at dir, creating it if needed.
func New[T any](dir string) (*Store[T], error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store[T]{dir: dir}, nil
}

// Read loads the record for key. A missing or unreadable file reads as
// absent (ok=false); corrupt records are not an error the caller can act on
// differently from a miss.
func (s *Store[T]) Read(key string) (*Record[T], bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}

	var rec Record[T]
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}

	return &rec, true
}

// Write persists value under key with StoredAt set to now. The record is
// written to a temp file and renamed into place so readers never observe a
// partial record.
func (s *Store[T]) Write(key string, value T) error {
	rec := Record[T]{
		Value:    value,
		StoredAt: time.Now(),
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	dst := s.path(key)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename record: %w", err)
	}

	return nil
}

// Delete removes the record for key. Deleting an absent key is not an error.
func (s *Store[T]) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Keys returns the sanitized keys of all records in the store, for periodic
// sweeps. Ordering is not specified.
func (s *Store[T]) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

func (s *Store[T]) path(key string) string {
	return filepath.Join(s.dir, SanitizeKey(key)+".json")
}

// SanitizeKey maps an arbitrary key to a filesystem-safe name. Alphanumerics,
// dash, underscore and dot are kept; everything else becomes an underscore.
// Dots are rejected in the leading position so keys cannot traverse paths.
func SanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r == '.' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
