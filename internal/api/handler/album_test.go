package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/albumproxy/internal/domain"
)

func newAlbumRouter(h *AlbumHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/album/{token}", h.Get)
	return r
}

func TestAlbumHandler_Get(t *testing.T) {
	svc := newTestAlbumService(t, &mockFetcher{album: testAlbum()}, nil)
	router := newAlbumRouter(NewAlbumHandler(svc, testLogger()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/album/tok1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp AlbumResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Metadata.Name != "Roadtrip" {
		t.Errorf("Name = %q", resp.Metadata.Name)
	}
	if len(resp.Photos) != 2 {
		t.Errorf("Photos = %d, want 2", len(resp.Photos))
	}
	if resp.Reloading {
		t.Error("fresh read should not report reloading")
	}

	for _, p := range resp.Photos {
		for _, d := range p.Derivatives {
			if !strings.HasPrefix(d.URL, "/image/") {
				t.Errorf("derivative URL not rewritten: %q", d.URL)
			}
		}
	}
}

func TestAlbumHandler_Get_UpstreamDown(t *testing.T) {
	svc := newTestAlbumService(t, &mockFetcher{err: errors.New("connection refused")}, nil)
	router := newAlbumRouter(NewAlbumHandler(svc, testLogger()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/album/tok1", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 on cold miss with dead upstream", w.Code)
	}
}

func TestAlbumHandler_Get_NotFoundUpstream(t *testing.T) {
	svc := newTestAlbumService(t, &mockFetcher{err: domain.ErrAlbumNotFound}, nil)
	router := newAlbumRouter(NewAlbumHandler(svc, testLogger()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/album/tok1", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
