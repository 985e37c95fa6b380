package auth

import (
	"net/http"
	"strings"

	"highfive-server/internal/httpx"
)

// AccessCookieName carries the signed access token; RefreshCookieName carries
// the base64url JSON refresh pair. Both are http-only, SameSite=Strict.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// Guard rejects requests without a valid access token cookie and attaches
// the authenticated user id to the request context before delegating.
func Guard(codec *TokenCodec, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(AccessCookieName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			writeError(w, http.StatusUnauthorized, "missing access token")
			return
		}

		userID, err := codec.VerifyAccess(strings.TrimSpace(cookie.Value))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(httpx.ContextWithUserID(r.Context(), userID)))
	})
}
