package handler

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	storagePath string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(storagePath string) *HealthHandler {
	return &HealthHandler{
		storagePath: storagePath,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The service is ready when its
// storage root is writable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	probe := filepath.Join(h.storagePath, ".ready")
	err := os.WriteFile(probe, []byte("ok"), 0644)
	if err == nil {
		os.Remove(probe)
	}

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
