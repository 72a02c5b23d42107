package handlers

import (
	"net/http"

	"portfolio-gallery/internal/blob"
	"portfolio-gallery/internal/middleware"
	"portfolio-gallery/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps holds everything the HTTP surface is built from
type RouterDeps struct {
	PhotoService   *services.PhotoService
	AuthService    *services.AuthService
	EventHub       *services.EventHub
	Store          blob.Store
	MaxUploadBytes int64
	// AccessLog enables chi's request logger
	AccessLog bool
}

// NewRouter wires the gallery routes
func NewRouter(deps RouterDeps) http.Handler {
	photoHandler := NewPhotoHandler(deps.PhotoService, deps.MaxUploadBytes)
	authHandler := NewAuthHandler(deps.AuthService)
	mediaHandler := NewMediaHandler(deps.Store)
	wsHandler := NewWebSocketHandler(deps.EventHub, deps.PhotoService)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	if deps.AccessLog {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/photos", photoHandler.GetPhotos)
		r.Post("/auth/verify", authHandler.Verify)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(deps.AuthService))
			r.Post("/photos", photoHandler.CreatePhoto)
			r.Put("/photos", photoHandler.UpdatePhoto)
			r.Delete("/photos", photoHandler.DeletePhoto)
		})
	})

	r.Get("/media/images/*", mediaHandler.GetImage)
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+middleware.AdminKeyHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
