package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"portfolio-gallery/internal/services"

	"github.com/rs/zerolog/log"
)

// maxJSONBodyBytes bounds the JSON request bodies of metadata and auth calls
const maxJSONBodyBytes = 64 << 10

// decodeJSON reads a size-limited JSON body into v. It writes the error
// response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, invalidMessage string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		respondError(w, invalidMessage, http.StatusBadRequest)
		return false
	}
	return true
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

// respondServiceError maps a service error to its HTTP status. Server-side
// failures get the generic fallback message, client errors their own text.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case services.IsValidation(err):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrNotFound):
		respondError(w, "Photo not found", http.StatusNotFound)
	case errors.Is(err, services.ErrConflict):
		respondError(w, "Photo collection was modified concurrently, retry", http.StatusConflict)
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, "Unauthorized", http.StatusUnauthorized)
	default:
		respondError(w, fallback, http.StatusInternalServerError)
	}
}

// noStore disables every cache between the store and the client
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
