// Package mapping implements the bijective, deduplicated mapping from opaque
// public image IDs to private upstream URLs. IDs are unguessable and never
// derived from the URL, so upstream links cannot be enumerated.
package mapping

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/iconidentify/albumproxy/internal/store"
)

// ForwardRecord maps a secure ID back to its upstream URL.
type ForwardRecord struct {
	SecureID string `json:"secure_id"`
	URL      string `json:"url"`
}

// LookupRecord maps a URL digest to the secure ID previously minted for it.
type LookupRecord struct {
	URL      string `json:"url"`
	SecureID string `json:"secure_id"`
}

// Mapping persists forward and lookup records as paired JSON files.
type Mapping struct {
	forward *store.Store[ForwardRecord]
	lookup  *store.Store[LookupRecord]
	ttl     time.Duration
}

// New creates a mapping with forward records under dir/forward and lookup
// records under dir/lookup.
func New(dir string, ttl time.Duration) (*Mapping, error) {
	forward, err := store.New[ForwardRecord](dir + "/forward")
	if err != nil {
		return nil, err
	}
	lookup, err := store.New[LookupRecord](dir + "/lookup")
	if err != nil {
		return nil, err
	}
	return &Mapping{forward: forward, lookup: lookup, ttl: ttl}, nil
}

// ResolveOrCreate returns the secure ID for url, minting one if needed.
//
// The URL digest is purely a lookup shard key: a colliding digest is
// disambiguated by comparing the stored URL verbatim. An existing ID is
// reused only while its forward record is still on disk; if that was expired
// independently, a fresh ID is minted and the lookup record overwritten.
// The mapping is a cache, not a permanent identity. Safe to call
// concurrently for the same URL; a racing pair may mint two IDs, both of
// which remain valid.
func (m *Mapping) ResolveOrCreate(url string) (string, error) {
	hash := urlHash(url)

	if rec, ok := m.lookup.Read(hash); ok && rec.Value.URL == url {
		if fwd, ok := m.forward.Read(rec.Value.SecureID); ok && fwd.Value.URL == url {
			return rec.Value.SecureID, nil
		}
	}

	id := newSecureID()
	if err := m.forward.Write(id, ForwardRecord{SecureID: id, URL: url}); err != nil {
		return "", fmt.Errorf("write forward record: %w", err)
	}
	if err := m.lookup.Write(hash, LookupRecord{URL: url, SecureID: id}); err != nil {
		return "", fmt.Errorf("write lookup record: %w", err)
	}

	return id, nil
}

// Resolve returns the upstream URL for a secure ID. A forward record older
// than the mapping TTL is deleted on read and reported absent (lazy expiry).
func (m *Mapping) Resolve(secureID string) (string, bool) {
	rec, ok := m.forward.Read(secureID)
	if !ok {
		return "", false
	}

	if rec.Stale(m.ttl, time.Now()) {
		m.forward.Delete(secureID)
		return "", false
	}

	return rec.Value.URL, true
}

// Sweep removes expired forward records and lookup records whose forward
// record is gone. It returns the secure IDs of removed forward records so
// the caller can reclaim the paired derivative blobs. Lazy expiry in Resolve
// keeps the mapping correct without it; the sweep only bounds disk growth.
func (m *Mapping) Sweep() ([]string, error) {
	now := time.Now()

	ids, err := m.forward.Keys()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range ids {
		rec, ok := m.forward.Read(id)
		if !ok {
			continue
		}
		if rec.Stale(m.ttl, now) {
			if err := m.forward.Delete(id); err == nil {
				removed = append(removed, id)
			}
		}
	}

	hashes, err := m.lookup.Keys()
	if err != nil {
		return removed, err
	}
	for _, h := range hashes {
		rec, ok := m.lookup.Read(h)
		if !ok {
			continue
		}
		if _, ok := m.forward.Read(rec.Value.SecureID); !ok {
			m.lookup.Delete(h)
		}
	}

	return removed, nil
}

// urlHash returns a fixed-length truncated digest of url used as the lookup
// shard key.
func urlHash(url string) string {
	sum := blake2b.Sum256([]byte(url))
	return hex.EncodeToString(sum[:12])
}

// newSecureID mints a random, unguessable identifier.
func newSecureID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
