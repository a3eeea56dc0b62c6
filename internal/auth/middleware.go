package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so only this package can set or read the user id.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth enforces a valid session token on protected routes.
//
// The token is read from the standard bearer channel:
//
//	Authorization: Bearer <jwt>
//
// On success the token's subject is stored in the request context and can be
// read with UserIDFromContext. Anything else gets 401 and stops the chain.
func RequireAuth(sessions *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, sessions)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="shortify"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's id.
// Returns ("", false) when the request did not pass RequireAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// BearerToken extracts the raw token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func extractUserID(r *http.Request, sessions *TokenService) (string, error) {
	raw, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", ErrInvalidToken
	}
	return sessions.Verify(raw)
}
