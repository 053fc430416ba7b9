package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSession(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	handler := Session(time.Hour)(func(c echo.Context) error {
		seen = SessionID(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, seen
}

func TestSession_IssuesCookie(t *testing.T) {
	rec, id := runSession(t, httptest.NewRequest(http.MethodGet, "/api/v1/library", nil))

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSession_ReusesCookieAndHeader(t *testing.T) {
	existing := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: existing})
	rec, id := runSession(t, req)
	assert.Equal(t, existing, id)
	assert.Empty(t, rec.Result().Cookies())

	fromHeader := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, fromHeader)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: existing})
	_, id = runSession(t, req)
	assert.Equal(t, fromHeader, id, "header wins over cookie")
}

func TestSession_IgnoresMalformedIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?session=../../etc", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-uuid"})
	rec, id := runSession(t, req)

	assert.NotEqual(t, "not-a-uuid", id)
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SecurityHeaders()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	require.NoError(t, handler(c))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestSecurityHeaders_SkipsCacheControlOutsideAPI(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := SecurityHeaders()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	require.NoError(t, handler(c))

	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}
