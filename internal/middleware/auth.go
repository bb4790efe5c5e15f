package middleware

import (
	"context"
	"net/http"
	"strings"
)

// unexported, collision-proof context key
type userIDContextKeyType struct{}

var userIDKey = userIDContextKeyType{}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// TokenVerifier verifies a bearer identity token and returns the uid.
type TokenVerifier interface {
	Verify(token string) (uid string, err error)
}

type AuthMiddleware struct {
	Verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{Verifier: verifier}
}

// RequireAuth verifies the Authorization bearer token. Every failure mode
// (missing header, malformed token, expired token, bad signature) yields
// the same 401 so the response does not reveal which check failed.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		uid, err := a.Verifier.Verify(token)
		if err != nil || uid == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
