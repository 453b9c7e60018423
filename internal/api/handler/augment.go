package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/albumproxy/internal/domain"
	"github.com/iconidentify/albumproxy/internal/service"
)

// AugmentHandler serves media augmentation outcomes.
type AugmentHandler struct {
	albumSvc *service.AlbumService
	logger   *slog.Logger
}

// NewAugmentHandler creates a new augmentation handler.
func NewAugmentHandler(albumSvc *service.AlbumService, logger *slog.Logger) *AugmentHandler {
	return &AugmentHandler{
		albumSvc: albumSvc,
		logger:   logger,
	}
}

// AugmentationResponse is the JSON response for an augmentation read.
type AugmentationResponse struct {
	Status      string                     `json:"status"`
	Reason      domain.SkipReason          `json:"reason,omitempty"`
	Transcript  string                     `json:"transcript,omitempty"`
	Summary     string                     `json:"summary,omitempty"`
	Words       []domain.WordStamp         `json:"word_timestamps,omitempty"`
	Diagnostics *domain.QualityDiagnostics `json:"diagnostics,omitempty"`
	DurationSec float64                    `json:"duration_seconds,omitempty"`
}

// Get handles GET /augmentation/{token}/{itemID}.
func (h *AugmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	itemID := chi.URLParam(r, "itemID")
	if token == "" || itemID == "" {
		writeError(w, http.StatusBadRequest, "missing token or item ID")
		return
	}

	rec, err := h.albumSvc.Augmentation(token, itemID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidToken):
			writeError(w, http.StatusBadRequest, "invalid album token")
		case errors.Is(err, domain.ErrAugmentationPending):
			writeJSON(w, http.StatusAccepted, AugmentationResponse{Status: "processing"})
		case errors.Is(err, domain.ErrAugmentationNotFound):
			writeError(w, http.StatusNotFound, "no augmentation for this item")
		default:
			h.logger.Error("augmentation read failed", "token", token, "item_id", itemID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read augmentation")
		}
		return
	}

	resp := AugmentationResponse{
		Status:      "completed",
		Transcript:  rec.Transcript,
		Summary:     rec.Summary,
		Words:       rec.Words,
		Diagnostics: rec.Diagnostics,
		DurationSec: rec.DurationSec,
	}
	if rec.Skipped {
		resp.Status = "skipped"
		resp.Reason = rec.Reason
	}
	writeJSON(w, http.StatusOK, resp)
}
