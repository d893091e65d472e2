package shared

import (
	"net/http"
	"strings"
)

// TokenCookie is the cookie consulted when no Authorization header is sent.
const TokenCookie = "token"

// BearerToken extracts the credential from the Authorization header or the
// token cookie. It returns an empty string when neither is present.
func BearerToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
