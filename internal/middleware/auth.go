package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/scholarsorbit/scholarsorbit-backend/internal/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth verifies the bearer credential on every request and stores the
// resolved user identity in the request context. Missing or invalid tokens
// get a 401 and never reach the handler.
func RequireAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			userID, err := verifier.Verify(token)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required"})
				log.Printf("[Auth] Rejected %s %s: %v", r.Method, r.URL.Path, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

// UserID returns the authenticated user's identity from a request context, or
// "" when the request did not pass through RequireAuth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
