package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type contextKeyUserID struct{}

// HeaderAuthToken is accepted in place of an Authorization bearer header.
const HeaderAuthToken = "x-auth-token"

// GetUserID returns the authenticated user id stored by RequireAuth.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(contextKeyUserID{}).(string)
	return userID
}

// WithUserID returns a context carrying userID as the authenticated user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

func tokenFromRequest(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get(HeaderAuthToken))
}

// RequireAuth rejects requests without a valid token and stores the token's
// user id in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := middleware.GetReqID(ctx)

			token := tokenFromRequest(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, claims.UserID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
