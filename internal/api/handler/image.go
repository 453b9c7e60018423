package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/imagecache"
)

// ImageHandler serves cached image derivatives by secure reference.
type ImageHandler struct {
	images *imagecache.Cache
	logger *slog.Logger
}

// NewImageHandler creates a new image handler.
func NewImageHandler(images *imagecache.Cache, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		images: images,
		logger: logger,
	}
}

// Serve handles GET /image/{ref}. The reference may carry a file extension,
// which is cosmetic and stripped before lookup.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing image reference")
		return
	}

	secureID := ref
	if i := strings.LastIndex(ref, "."); i > 0 {
		secureID = ref[:i]
	}
	// Security: the reference is an opaque ID, never a path.
	if strings.ContainsAny(secureID, "/\\") || strings.Contains(secureID, "..") {
		writeError(w, http.StatusBadRequest, "invalid image reference")
		return
	}

	result, err := h.images.Serve(r.Context(), secureID, r.Header.Get("If-None-Match"))
	if err != nil {
		if errors.Is(err, domain.ErrDerivativeNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		h.logger.Error("serve derivative failed", "secure_id", secureID, "error", err)
		writeError(w, http.StatusBadGateway, "image temporarily unavailable")
		return
	}

	w.Header().Set("ETag", result.ETag)
	w.Header().Set("Last-Modified", result.LastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	if result.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(result.Bytes)
}
