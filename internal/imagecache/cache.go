// Package imagecache implements the fetch-transform-cache-serve pipeline for
// individual image derivatives, addressed by secure reference ID.
package imagecache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/store"
	"github.com/iconidentify/albumproxy/pkg/imaging"
)

// Fetcher retrieves upstream image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver maps a secure ID back to its upstream URL.
type Resolver interface {
	Resolve(secureID string) (string, bool)
}

// Result is a served derivative. NotModified is set when the caller's ETag
// still matches, in which case Bytes is empty.
type Result struct {
	Bytes        []byte
	ETag         string
	LastModified time.Time
	NotModified  bool
}

// Cache stores transformed image blobs, one file per secure ID, with the
// file modification time as the freshness and ETag source.
type Cache struct {
	dir       string
	ttl       time.Duration
	resolver  Resolver
	fetcher   Fetcher
	transform imaging.Options
	logger    *slog.Logger
}

// New creates a derivative cache rooted at dir.
func New(dir string, ttl time.Duration, resolver Resolver, fetcher Fetcher, transform imaging.Options, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create derivative directory: %w", err)
	}
	return &Cache{
		dir:       dir,
		ttl:       ttl,
		resolver:  resolver,
		fetcher:   fetcher,
		transform: transform,
		logger:    logger,
	}, nil
}

// Serve returns the derivative for secureID, regenerating it from upstream
// when stale. Availability wins over freshness: a stale blob is served
// whenever regeneration is impossible (expired mapping, upstream failure).
// Only "no mapping and no blob" is a hard miss.
func (c *Cache) Serve(ctx context.Context, secureID, ifNoneMatch string) (*Result, error) {
	path := c.blobPath(secureID)

	stat, statErr := os.Stat(path)
	onDisk := statErr == nil

	if onDisk && time.Since(stat.ModTime()) <= c.ttl {
		return c.serveBlob(secureID, path, stat.ModTime(), ifNoneMatch)
	}

	url, ok := c.resolver.Resolve(secureID)
	if !ok {
		if onDisk {
			// Upstream link expired but the blob survived: graceful
			// degradation for orphaned derivatives.
			return c.serveBlob(secureID, path, stat.ModTime(), ifNoneMatch)
		}
		return nil, domain.ErrDerivativeNotFound
	}

	result, err := c.regenerate(ctx, secureID, url, path, ifNoneMatch)
	if err != nil {
		if onDisk {
			c.logger.Warn("derivative regeneration failed, serving stale blob",
				"secure_id", secureID,
				"error", err,
			)
			return c.serveBlob(secureID, path, stat.ModTime(), ifNoneMatch)
		}
		return nil, err
	}
	return result, nil
}

// Remove deletes the blob for secureID, used when its mapping is swept.
func (c *Cache) Remove(secureID string) error {
	err := os.Remove(c.blobPath(secureID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove derivative: %w", err)
	}
	return nil
}

func (c *Cache) regenerate(ctx context.Context, secureID, url, path, ifNoneMatch string) (*Result, error) {
	raw, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch upstream image: %w", err)
	}

	transformed, err := imaging.Transform(raw, c.transform)
	if err != nil {
		return nil, fmt.Errorf("transform image: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, transformed, 0644); err != nil {
		return nil, fmt.Errorf("write derivative: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("rename derivative: %w", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat derivative: %w", err)
	}

	etag := ETag(secureID, stat.ModTime())
	if ifNoneMatch != "" && ifNoneMatch == etag {
		return &Result{ETag: etag, LastModified: stat.ModTime(), NotModified: true}, nil
	}

	return &Result{
		Bytes:        transformed,
		ETag:         etag,
		LastModified: stat.ModTime(),
	}, nil
}

func (c *Cache) serveBlob(secureID, path string, mtime time.Time, ifNoneMatch string) (*Result, error) {
	etag := ETag(secureID, mtime)
	if ifNoneMatch != "" && ifNoneMatch == etag {
		return &Result{ETag: etag, LastModified: mtime, NotModified: true}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read derivative: %w", err)
	}

	return &Result{
		Bytes:        data,
		ETag:         etag,
		LastModified: mtime,
	}, nil
}

func (c *Cache) blobPath(secureID string) string {
	return filepath.Join(c.dir, store.SanitizeKey(secureID)+".jpg")
}

// ETag derives the entity tag for a derivative from its ID and modification
// time. A derivative never mutates in place while fresh, so the pair is
// stable for the blob's lifetime.
func ETag(secureID string, mtime time.Time) string {
	return fmt.Sprintf(`"%s-%d"`, secureID, mtime.Unix())
}
