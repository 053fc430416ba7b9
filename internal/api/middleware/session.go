package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SessionCookie names the cookie that carries the library session id.
const SessionCookie = "mediashelf_session"

// SessionHeader lets non-browser clients pass the session id explicitly.
const SessionHeader = "X-Session-ID"

const sessionContextKey = "sessionID"

// Session resolves the library session from the header or cookie and issues a
// new cookie when there is none.
func Session(maxAge time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ResolveSession(c)
			if id == "" {
				id = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(sessionContextKey, id)
			return next(c)
		}
	}
}

// ResolveSession reads the session id from the header, cookie or session query parameter.
func ResolveSession(c echo.Context) string {
	if id := c.Request().Header.Get(SessionHeader); validSessionID(id) {
		return id
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && validSessionID(cookie.Value) {
		return cookie.Value
	}
	if id := c.QueryParam("session"); validSessionID(id) {
		return id
	}
	return ""
}

// SessionID returns the id stored by the Session middleware.
func SessionID(c echo.Context) string {
	if id, ok := c.Get(sessionContextKey).(string); ok {
		return id
	}
	return ResolveSession(c)
}

func validSessionID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
