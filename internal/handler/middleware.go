package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hiroki-koketsu/go-task-tracker/internal/auth"
)

type claimsKey struct{}

// TokenValidator validates session tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// ClaimsFromContext returns the claims stored by RequireToken.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

// RequireToken rejects requests without a valid bearer token and stores the
// token's claims in the request context.
func RequireToken(tokens TokenValidator) func(http.Handler) http.Handler {
	b := &base{}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				b.respondError(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				b.respondError(w, http.StatusUnauthorized, "Invalid authorization header format. Use: Bearer <token>")
				return
			}

			claims, err := tokens.Validate(strings.TrimSpace(token))
			if errors.Is(err, auth.ErrExpiredToken) {
				b.respondError(w, http.StatusUnauthorized, "Token has expired, log in again")
				return
			}
			if err != nil {
				b.respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
