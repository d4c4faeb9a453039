// Package tokens issues and verifies the access tokens that identify users
// to the API, and hashes account passwords. The rate limiter depends on it
// indirectly: the HTTP auth middleware resolves the per-user identifier
// from the bearer token.
package tokens

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	platformMW "autoforms/internal/platform/middleware"
	dErrors "autoforms/pkg/domain-errors"
	"autoforms/pkg/requestclock"
)

// Service signs and verifies HS256 access tokens.
type Service struct {
	signingKey []byte
	tokenTTL   time.Duration
}

// New creates a token service. The signing key must not be empty.
func New(signingKey string, tokenTTL time.Duration) (*Service, error) {
	if signingKey == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "jwt signing key is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{signingKey: []byte(signingKey), tokenTTL: tokenTTL}, nil
}

// Issue creates a signed access token for the user.
func (s *Service) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	now := requestclock.Now(ctx)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// Verify parses and validates a token, returning the user ID it carries.
func (s *Service) Verify(ctx context.Context, tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return requestclock.Now(ctx) }))
	if err != nil || !token.Valid {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token missing subject")
	}
	return claims.Subject, nil
}

// Middleware resolves the bearer token, when present, into the request
// context's user ID. Requests without a token pass through unauthenticated;
// endpoints that require identity enforce it themselves.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if userID, err := s.Verify(r.Context(), token); err == nil {
				r = r.WithContext(platformMW.WithUserID(r.Context(), userID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
