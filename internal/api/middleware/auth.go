package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dimaystinov/bot-hnushka/internal/api/shared"
	"github.com/dimaystinov/bot-hnushka/internal/platform/logger"
)

// OwnerHeader names the owner when bearer authentication is disabled.
const OwnerHeader = "X-Owner-Ref"

// clockSkew is the leeway allowed on exp and nbf.
const clockSkew = 2 * time.Minute

// Token validation errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token is expired")
	ErrMissingOwner = errors.New("token has no subject")
)

// AuthMiddleware resolves the owner of each request. With a signing secret
// it requires an HS256 bearer token whose subject is the owner reference;
// without one it trusts the X-Owner-Ref header, which suits deployments
// behind a trusted front end.
type AuthMiddleware struct {
	secret  []byte
	logger  *slog.Logger
	timeNow func() time.Time
}

// NewAuthMiddleware creates an AuthMiddleware. An empty secret disables
// token checks.
func NewAuthMiddleware(secret string, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret:  []byte(secret),
		logger:  logger.With("component", "auth"),
		timeNow: time.Now,
	}
}

// Authenticate puts the owner reference in the request context or answers
// 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
			if owner == "" {
				shared.RespondWithError(w, r, http.StatusUnauthorized, OwnerHeader+" header required")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.WithOwnerRef(r.Context(), owner)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		owner, err := m.ValidateToken(token)
		if err != nil {
			logger.FromContextOrDefault(r.Context(), m.logger).Debug("token rejected", "error", err)
			if errors.Is(err, ErrExpiredToken) {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
				return
			}
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithOwnerRef(r.Context(), owner)))
	})
}

// ValidateToken checks an HS256 token and returns its subject.
func (m *AuthMiddleware) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(m.timeNow),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	owner := strings.TrimSpace(claims.Subject)
	if owner == "" {
		return "", ErrMissingOwner
	}
	return owner, nil
}

// SignToken issues an HS256 token for owner valid for ttl.
func SignToken(secret, owner string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
