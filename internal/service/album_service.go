// Package service orchestrates album reads: token resolution, the
// stale-while-revalidate cache policy, derivative URL rewriting and video
// augmentation scheduling.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iconidentify/albumproxy/internal/albumcache"
	"github.com/iconidentify/albumproxy/internal/augment"
	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/mapping"
	"github.com/iconidentify/albumproxy/internal/tracker"
)

// refreshTimeout bounds a detached background refresh, which outlives the
// request that triggered it.
const refreshTimeout = 2 * time.Minute

// AlbumFetcher talks to the upstream album provider.
type AlbumFetcher interface {
	FetchAlbum(ctx context.Context, token domain.Token) (domain.AlbumResult, error)
}

// TokenResolver turns a public share token into its canonical form.
type TokenResolver interface {
	Resolve(public string) (domain.Token, error)
}

// AugmentQueue accepts media augmentation jobs.
type AugmentQueue interface {
	Enqueue(job augment.Job) (*augment.Future, error)
}

// AugmentIndex reads persisted augmentation outcomes.
type AugmentIndex interface {
	Lookup(token, itemID string) (*domain.AugmentationRecord, bool)
}

// AlbumView is an album response: the rewritten album plus whether a
// background refresh is currently running for its token.
type AlbumView struct {
	Album     domain.AlbumResult
	Reloading bool
}

// AlbumService serves album reads from the disk cache, refreshing from
// upstream synchronously on a miss and in the background once a cached
// record has gone stale. Stale records are always served immediately.
type AlbumService struct {
	tokens  TokenResolver
	cache   *albumcache.Cache
	mapping *mapping.Mapping
	tracker *tracker.Tracker
	fetcher AlbumFetcher
	queue   AugmentQueue
	index   AugmentIndex
	logger  *slog.Logger
}

// NewAlbumService wires the album read path.
func NewAlbumService(
	tokens TokenResolver,
	cache *albumcache.Cache,
	m *mapping.Mapping,
	tr *tracker.Tracker,
	fetcher AlbumFetcher,
	queue AugmentQueue,
	index AugmentIndex,
	logger *slog.Logger,
) *AlbumService {
	return &AlbumService{
		tokens:  tokens,
		cache:   cache,
		mapping: m,
		tracker: tr,
		fetcher: fetcher,
		queue:   queue,
		index:   index,
		logger:  logger,
	}
}

// Get returns the album for a public token. A cache miss fetches upstream
// synchronously; a stale hit is served as-is while at most one background
// refresh per token is kicked off.
func (s *AlbumService) Get(ctx context.Context, publicToken string) (*AlbumView, error) {
	token, err := s.tokens.Resolve(publicToken)
	if err != nil {
		return nil, err
	}

	album, stale, ok := s.cache.Get(token)
	if !ok {
		album, err = s.fetchAndStore(ctx, token)
		if err != nil {
			return nil, err
		}
	} else if stale && s.cache.Guard().TryBegin(token) {
		go s.backgroundRefresh(token)
	}

	s.tracker.Touch(token)

	rewritten, err := s.rewrite(album)
	if err != nil {
		return nil, err
	}

	return &AlbumView{
		Album:     rewritten,
		Reloading: s.cache.Guard().InFlight(token),
	}, nil
}

// Refresh fetches an album from upstream and replaces its cached record.
// Used by the periodic tracker refresher.
func (s *AlbumService) Refresh(ctx context.Context, token domain.Token) error {
	_, err := s.fetchAndStore(ctx, token)
	return err
}

// Augmentation returns the persisted augmentation record for one album item.
// When no terminal record exists yet but the item is a known video, a
// pipeline job is scheduled (duplicates coalesce) and ErrAugmentationPending
// is returned.
func (s *AlbumService) Augmentation(publicToken, itemID string) (*domain.AugmentationRecord, error) {
	token, err := s.tokens.Resolve(publicToken)
	if err != nil {
		return nil, err
	}

	if rec, ok := s.index.Lookup(token.String(), itemID); ok {
		return rec, nil
	}

	album, _, ok := s.cache.Get(token)
	if !ok {
		return nil, domain.ErrAugmentationNotFound
	}
	for _, video := range album.Videos() {
		if video.ID != itemID {
			continue
		}
		if _, err := s.queue.Enqueue(augment.Job{
			Token:    token.String(),
			ItemID:   video.ID,
			MediaURL: video.MediaURL,
		}); err != nil {
			return nil, fmt.Errorf("enqueue augmentation: %w", err)
		}
		return nil, domain.ErrAugmentationPending
	}
	return nil, domain.ErrAugmentationNotFound
}

func (s *AlbumService) fetchAndStore(ctx context.Context, token domain.Token) (domain.AlbumResult, error) {
	album, err := s.fetcher.FetchAlbum(ctx, token)
	if err != nil {
		return domain.AlbumResult{}, fmt.Errorf("fetch album: %w", err)
	}

	if err := s.cache.Put(token, album); err != nil {
		return domain.AlbumResult{}, fmt.Errorf("store album: %w", err)
	}

	s.enqueueVideos(token, &album)
	return album, nil
}

func (s *AlbumService) backgroundRefresh(token domain.Token) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if _, err := s.fetchAndStore(ctx, token); err != nil {
		// Put never ran, so the guard flag is still set.
		s.cache.Guard().End(token)
		s.logger.Warn("background album refresh failed", "token", token, "error", err)
	}
}

// enqueueVideos schedules augmentation for every video in the album that has
// no terminal record yet. Enqueue failures are logged, not fatal: the next
// refresh retries.
func (s *AlbumService) enqueueVideos(token domain.Token, album *domain.AlbumResult) {
	for _, video := range album.Videos() {
		if _, done := s.index.Lookup(token.String(), video.ID); done {
			continue
		}
		_, err := s.queue.Enqueue(augment.Job{
			Token:    token.String(),
			ItemID:   video.ID,
			MediaURL: video.MediaURL,
		})
		if err != nil {
			s.logger.Warn("enqueue augmentation failed",
				"token", token, "item_id", video.ID, "error", err)
		}
	}
}

// rewrite replaces raw upstream derivative URLs with opaque local image
// references. Records migrated from the pre-split store format arrive
// already rewritten and pass through untouched.
func (s *AlbumService) rewrite(album domain.AlbumResult) (domain.AlbumResult, error) {
	if album.URLsRewritten {
		return album, nil
	}

	for pi := range album.Photos {
		for name, d := range album.Photos[pi].Derivatives {
			id, err := s.mapping.ResolveOrCreate(d.URL)
			if err != nil {
				return domain.AlbumResult{}, fmt.Errorf("map derivative url: %w", err)
			}
			d.URL = "/image/" + id + ".jpg"
			album.Photos[pi].Derivatives[name] = d
		}
	}
	album.URLsRewritten = true
	return album, nil
}
