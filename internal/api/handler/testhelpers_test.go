package handler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/albumproxy/internal/albumcache"
	"github.com/iconidentify/albumproxy/internal/augment"
	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/mapping"
	"github.com/iconidentify/albumproxy/internal/service"
	"github.com/iconidentify/albumproxy/internal/tracker"
	"github.com/iconidentify/albumproxy/pkg/token"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockFetcher is a test implementation of service.AlbumFetcher.
type mockFetcher struct {
	album domain.AlbumResult
	err   error
}

func (m *mockFetcher) FetchAlbum(ctx context.Context, tok domain.Token) (domain.AlbumResult, error) {
	if m.err != nil {
		return domain.AlbumResult{}, m.err
	}
	return m.album, nil
}

// mockQueue is a test implementation of service.AugmentQueue.
type mockQueue struct {
	mu   sync.Mutex
	jobs []augment.Job
}

func (m *mockQueue) Enqueue(job augment.Job) (*augment.Future, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil, nil
}

// mockIndex is a test implementation of service.AugmentIndex.
type mockIndex struct {
	records map[string]*domain.AugmentationRecord
}

func (m *mockIndex) Lookup(tok, itemID string) (*domain.AugmentationRecord, bool) {
	rec, ok := m.records[tok+"_"+itemID]
	return rec, ok
}

func testAlbum() domain.AlbumResult {
	return domain.AlbumResult{
		Metadata: domain.AlbumMetadata{Name: "Roadtrip", ItemCount: 2},
		Photos: []domain.Photo{
			{
				ID: "p1",
				Derivatives: map[string]domain.Derivative{
					"medium": {URL: "https://cdn.upstream/p1.jpg", Width: 1024},
				},
			},
			{
				ID:          "v1",
				IsVideo:     true,
				MediaURL:    "https://cdn.upstream/v1.mp4",
				Derivatives: map[string]domain.Derivative{},
			},
		},
	}
}

func newTestAlbumService(t *testing.T, fetcher *mockFetcher, index *mockIndex) *service.AlbumService {
	t.Helper()

	dir := t.TempDir()
	cache, err := albumcache.New(filepath.Join(dir, "albums"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	m, err := mapping.New(filepath.Join(dir, "mappings"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if index == nil {
		index = &mockIndex{records: map[string]*domain.AugmentationRecord{}}
	}

	return service.NewAlbumService(
		token.NewResolver(""),
		cache,
		m,
		tracker.New(10, time.Hour),
		fetcher,
		&mockQueue{},
		index,
		testLogger(),
	)
}
