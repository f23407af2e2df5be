package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	h "pinit/internal/delivery/http/helpers"
	"pinit/internal/domain"
)

type contextKey string

const usernameKey contextKey = "username"

// SetUsername returns a context carrying the authenticated username. Used by auth middleware.
func SetUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// UsernameFromContext returns the authenticated username from the context, if present.
func UsernameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(usernameKey).(string)
	return name, ok && name != ""
}

// RequireAuth returns a wrapper that validates the Bearer token and sets the username in the request context.
// Browsers cannot set headers on websocket upgrades, so an access_token query parameter is accepted
// when the Authorization header is absent.
// If the token is missing or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, msg := bearerToken(r)
			if token == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, msg)
				return
			}
			username, err := verifier.Verify(token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			r = r.WithContext(SetUsername(r.Context(), username))
			next(w, r)
		}
	}
}

// bearerToken extracts the token, or returns an empty token and the reason.
func bearerToken(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		if t := strings.TrimSpace(r.URL.Query().Get("access_token")); t != "" {
			return t, ""
		}
		return "", "missing authorization header"
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", "invalid authorization format"
	}
	token := strings.TrimSpace(auth[len(prefix):])
	if token == "" {
		return "", "missing token"
	}
	return token, ""
}
