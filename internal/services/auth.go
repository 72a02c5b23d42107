package services

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminSubject    = "gallery-admin"
	defaultTokenTTL = 12 * time.Hour
)

// AuthService checks admin credentials against the server-held secret.
// With an empty secret every check fails.
type AuthService struct {
	adminKey string
	tokenTTL time.Duration
	now      func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(adminKey string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &AuthService{
		adminKey: adminKey,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// Configured reports whether a server secret is set
func (s *AuthService) Configured() bool {
	return s.adminKey != ""
}

// VerifyPassphrase compares passphrase with the server secret
func (s *AuthService) VerifyPassphrase(passphrase string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(passphrase), []byte(s.adminKey)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Authorize accepts either the raw admin key or a session token issued by
// IssueToken. Both are empty-string safe and fail closed.
func (s *AuthService) Authorize(adminKey, token string) error {
	if !s.Configured() {
		return ErrUnauthorized
	}
	if adminKey != "" {
		if err := s.VerifyPassphrase(adminKey); err != nil {
			return ErrUnauthorized
		}
		return nil
	}
	if token != "" {
		if err := s.ValidateToken(token); err != nil {
			return ErrUnauthorized
		}
		return nil
	}
	return ErrUnauthorized
}

// IssueToken generates a session token for the admin panel
func (s *AuthService) IssueToken() (string, time.Time, error) {
	if !s.Configured() {
		return "", time.Time{}, ErrNotConfigured
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.adminKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a session token
func (s *AuthService) ValidateToken(tokenString string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.adminKey), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	if claims.Subject != adminSubject {
		return fmt.Errorf("unexpected token subject %q", claims.Subject)
	}
	return nil
}
