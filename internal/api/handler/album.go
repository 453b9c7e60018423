package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/service"
)

// AlbumHandler handles album read requests.
type AlbumHandler struct {
	albumSvc *service.AlbumService
	logger   *slog.Logger
}

// NewAlbumHandler creates a new album handler.
func NewAlbumHandler(albumSvc *service.AlbumService, logger *slog.Logger) *AlbumHandler {
	return &AlbumHandler{
		albumSvc: albumSvc,
		logger:   logger,
	}
}

// AlbumResponse is the JSON response for an album read.
type AlbumResponse struct {
	Metadata  domain.AlbumMetadata `json:"metadata"`
	Photos    []domain.Photo       `json:"photos"`
	Reloading bool                 `json:"reloading"`
}

// Get handles GET /album/{token}.
func (h *AlbumHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing album token")
		return
	}

	view, err := h.albumSvc.Get(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidToken):
			writeError(w, http.StatusBadRequest, "invalid album token")
		case errors.Is(err, domain.ErrAlbumNotFound):
			writeError(w, http.StatusNotFound, "album not found")
		default:
			// Cold miss with an unreachable upstream has nothing to serve.
			h.logger.Error("album read failed", "token", token, "error", err)
			writeError(w, http.StatusBadGateway, "album temporarily unavailable")
		}
		return
	}

	writeJSON(w, http.StatusOK, AlbumResponse{
		Metadata:  view.Album.Metadata,
		Photos:    view.Album.Photos,
		Reloading: view.Reloading,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
