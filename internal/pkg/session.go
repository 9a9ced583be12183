package pkg

import (
	"net/http"
	"time"
)

const (
	SessionCookieName = "game_session"
	sessionLifetime   = 24 * time.Hour
)

// SessionID returns the session id from the request cookie, issuing a new
// cookie when the request has none. The bool reports whether it was created.
func SessionID(writer http.ResponseWriter, req *http.Request) (string, bool) {
	if cookie, err := req.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, false
	}

	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    GenerateNewSessionID(),
		Expires:  time.Now().Add(sessionLifetime),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(writer, cookie)

	return cookie.Value, true
}
