package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator checks a bearer token and returns its claims.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims carries the subject of an authenticated onboarding request. Every
// protected route operates on the (user, activation) pair from the token, not
// from the request body.
type JWTClaims struct {
	UserID       string
	ActivationID string
}

type userIDKey struct{}
type activationIDKey struct{}

// GetUserID returns the authenticated user ID, or "" outside RequireAuth.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey{}).(string)
	return v
}

// GetActivationID returns the authenticated activation ID, or "" outside
// RequireAuth.
func GetActivationID(ctx context.Context) string {
	v, _ := ctx.Value(activationIDKey{}).(string)
	return v
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token claims in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "request without bearer token",
					"request_id", GetRequestID(r.Context()))
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "token validation failed",
					"error", err,
					"request_id", GetRequestID(r.Context()))
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, claims.UserID)
			ctx = context.WithValue(ctx, activationIDKey{}, claims.ActivationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
