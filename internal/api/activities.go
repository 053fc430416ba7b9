package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediashelf/mediashelf/internal/api/middleware"
	"github.com/mediashelf/mediashelf/internal/progress"
)

// ActivityHandlers exposes upload activities of the caller's session.
type ActivityHandlers struct {
	manager *progress.Manager
}

// NewActivityHandlers creates a new activity handlers instance.
func NewActivityHandlers(manager *progress.Manager) *ActivityHandlers {
	return &ActivityHandlers{manager: manager}
}

// RegisterRoutes registers activity routes on the given group.
func (h *ActivityHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

// List returns the session's activities.
// GET /api/v1/system/activities
func (h *ActivityHandlers) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.GetSessionActivities(middleware.SessionID(c)))
}

// Get returns one activity if it belongs to the session.
// GET /api/v1/system/activities/:id
func (h *ActivityHandlers) Get(c echo.Context) error {
	a, ok := h.manager.GetActivity(c.Param("id"))
	if !ok || a.SessionID != middleware.SessionID(c) {
		return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
	}
	return c.JSON(http.StatusOK, a)
}
