package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/albumproxy/internal/api/handler"
	mw "github.com/iconidentify/albumproxy/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	albumHandler *handler.AlbumHandler,
	imageHandler *handler.ImageHandler,
	augmentHandler *handler.AugmentHandler,
	healthHandler *handler.HealthHandler,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(2 * time.Minute))

	// CORS for embedding album content in browser clients
	r.Use(mw.CORS)

	// Health endpoints
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// Public album surface
	r.Get("/album/{token}", albumHandler.Get)
	r.Get("/image/{ref}", imageHandler.Serve)
	r.Get("/augmentation/{token}/{itemID}", augmentHandler.Get)

	return r
}
