package handlers

import (
	"errors"
	"net/http"
	"time"

	"portfolio-gallery/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles admin passphrase checks
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// VerifyRequest represents the request body for verifying a passphrase
type VerifyRequest struct {
	Passphrase string `json:"passphrase"`
}

// VerifyResponse carries the session token for later mutating calls
type VerifyResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verify handles POST /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeJSON(w, r, &req, "Invalid request") {
		return
	}

	if err := h.authService.VerifyPassphrase(req.Passphrase); err != nil {
		if errors.Is(err, services.ErrNotConfigured) {
			log.Error().Msg("Admin key not configured, cannot verify passphrase")
			respondError(w, "Server not configured", http.StatusInternalServerError)
			return
		}
		log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Invalid admin passphrase")
		respondError(w, "Invalid passphrase", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.authService.IssueToken()
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue admin token")
		respondError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, VerifyResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
