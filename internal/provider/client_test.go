package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iconidentify/albumproxy/internal/config"
	"github.com/iconidentify/albumproxy/internal/domain"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(config.ProviderConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func TestFetchAlbum_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/albums/tok123" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		w.Write([]byte(`{
			"metadata": {"name": "Summer", "owner_name": "Ana"},
			"photos": [
				{"id": "p1", "derivatives": {"medium": {"url": "https://cdn/p1.jpg"}}},
				{"id": "v1", "is_video": true, "media_url": "https://cdn/v1.mp4", "derivatives": {}}
			]
		}`))
	}))
	defer srv.Close()

	album, err := newTestClient(srv).FetchAlbum(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("FetchAlbum: %v", err)
	}
	if album.Metadata.Name != "Summer" {
		t.Errorf("Name = %q", album.Metadata.Name)
	}
	if album.Metadata.ItemCount != 2 {
		t.Errorf("ItemCount = %d, want 2 (defaulted from photo count)", album.Metadata.ItemCount)
	}
	if len(album.Videos()) != 1 {
		t.Errorf("Videos() = %d, want 1", len(album.Videos()))
	}
	if album.URLsRewritten {
		t.Error("provider results must carry raw URLs")
	}
}

func TestFetchAlbum_StatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusNotFound, domain.ErrAlbumNotFound},
		{http.StatusGone, domain.ErrAlbumNotFound},
		{http.StatusUnauthorized, domain.ErrInvalidToken},
		{http.StatusForbidden, domain.ErrInvalidToken},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		_, err := newTestClient(srv).FetchAlbum(context.Background(), "tok")
		srv.Close()

		if !errors.Is(err, tt.wantErr) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.wantErr)
		}
	}
}

func TestFetchAlbum_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).FetchAlbum(context.Background(), "tok"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestFetchAlbum_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).FetchAlbum(context.Background(), "tok"); err == nil {
		t.Fatal("expected decode error")
	}
}
