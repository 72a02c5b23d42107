package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"portfolio-gallery/internal/blob"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MediaHandler streams image blobs for backends without public URLs
type MediaHandler struct {
	store blob.Store
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(store blob.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

// GetImage handles GET /media/images/*
func (h *MediaHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	key := "images/" + chi.URLParam(r, "*")
	if !blob.ValidKey(key) || strings.HasSuffix(key, "/") {
		respondError(w, "Image not found", http.StatusNotFound)
		return
	}

	body, info, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			respondError(w, "Image not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("key", key).Msg("Failed to read image")
		respondError(w, "Failed to read image", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	// keys are never reused
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to write image")
	}
}
