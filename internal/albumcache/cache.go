// Package albumcache is the stale-while-revalidate cache of album-fetch
// results, keyed by canonical token.
package albumcache

import (
	"time"

	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/store"
)

// schemaCurrent tags records whose embedded URLs are stored raw and are
// rewritten at serve time. Records without a schema tag predate the rewrite
// split: their URLs were persisted post-rewrite and must not be rewritten
// again.
const schemaCurrent = 2

type albumRecord struct {
	Schema int                `json:"schema,omitempty"`
	Album  domain.AlbumResult `json:"album"`
}

// Cache stores album results on disk with a freshness TTL and tracks
// in-flight background refreshes per token.
type Cache struct {
	records *store.Store[albumRecord]
	ttl     time.Duration
	guard   *ReloadGuard
}

// New creates a cache rooted at dir.
func New(dir string, ttl time.Duration) (*Cache, error) {
	records, err := store.New[albumRecord](dir)
	if err != nil {
		return nil, err
	}
	return &Cache{
		records: records,
		ttl:     ttl,
		guard:   NewReloadGuard(),
	}, nil
}

// Get reads the cached result for token. Missing or unreadable records read
// as absent. A present record is always returned together with a freshly
// computed staleness flag; stale values are never treated as a miss.
func (c *Cache) Get(token domain.Token) (domain.AlbumResult, bool, bool) {
	rec, ok := c.records.Read(token.String())
	if !ok {
		return domain.AlbumResult{}, false, false
	}

	album := rec.Value.Album
	if rec.Value.Schema < schemaCurrent {
		// Legacy record: URLs already rewritten when it was stored.
		album.URLsRewritten = true
	}

	return album, rec.Stale(c.ttl, time.Now()), true
}

// Put writes a fresh record for token and clears its reloading flag.
func (c *Cache) Put(token domain.Token, album domain.AlbumResult) error {
	err := c.records.Write(token.String(), albumRecord{
		Schema: schemaCurrent,
		Album:  album,
	})
	c.guard.End(token)
	return err
}

// Guard exposes the per-token reload deduplication guard.
func (c *Cache) Guard() *ReloadGuard {
	return c.guard
}
