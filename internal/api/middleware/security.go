package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// staticHeaders are set on every response.
var staticHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "SAMEORIGIN",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Content-Security-Policy": "frame-ancestors 'self'",
}

// SecurityHeaders sets browser hardening headers. Library views change on every
// intent, so API responses are marked uncacheable; handlers that serve stable
// content (thumbnails) overwrite Cache-Control themselves.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range staticHeaders {
				h.Set(k, v)
			}

			if strings.HasPrefix(c.Request().URL.Path, "/api") {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
				h.Set("Pragma", "no-cache")
			}

			return next(c)
		}
	}
}
