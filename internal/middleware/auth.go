package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pixelforge/pixelforge-api/internal/domain/identity"
	"github.com/pixelforge/pixelforge-api/internal/pkg/jwt"
	"github.com/pixelforge/pixelforge-api/internal/pkg/response"
)

type contextKey string

const (
	IdentityKeyKey contextKey = "identity_key"
	TierKey        contextKey = "tier"
)

// Auth returns middleware that validates the session JWT and places the
// normalized identity key into the request context. Handlers never see a
// raw, unnormalized identity.
func Auth(jwtService *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateAccessToken(parts[1])
			if err != nil {
				if err == jwt.ErrExpiredToken {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			key := identity.Normalize(claims.IdentityKey)
			if !identity.Valid(key) {
				response.Unauthorized(w, "Invalid identity")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKeyKey, key)
			ctx = context.WithValue(ctx, TierKey, claims.Tier)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityKeyFromContext extracts the normalized identity key from context.
func IdentityKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(IdentityKeyKey).(string)
	return key, ok && key != ""
}

// TierFromContext extracts the pricing tier claim from context.
func TierFromContext(ctx context.Context) string {
	if tier, ok := ctx.Value(TierKey).(string); ok {
		return tier
	}
	return ""
}

// AdminToken returns middleware that guards operator-only endpoints with a
// static bearer token from config.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				response.Forbidden(w, "Admin API disabled")
				return
			}

			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
