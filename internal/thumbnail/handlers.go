package thumbnail

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/api/middleware"
)

// Source reports whether a session can see an image entry with the given id.
type Source interface {
	HasImage(sessionID, id string) bool
}

// Handlers serves rendered thumbnails.
type Handlers struct {
	renderer *Renderer
	source   Source
	logger   zerolog.Logger
}

// NewHandlers creates thumbnail handlers.
func NewHandlers(renderer *Renderer, source Source, logger zerolog.Logger) *Handlers {
	return &Handlers{
		renderer: renderer,
		source:   source,
		logger:   logger.With().Str("component", "thumbnail").Logger(),
	}
}

// RegisterRoutes registers the thumbnail routes
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/:id", h.Get)
}

// Get handles GET /api/v1/thumbnails/:id?size=
func (h *Handlers) Get(c echo.Context) error {
	id := c.Param("id")
	if !h.source.HasImage(middleware.SessionID(c), id) {
		return echo.NewHTTPError(http.StatusNotFound, "Thumbnail not found")
	}

	size := h.renderer.DefaultSize()
	if raw := c.QueryParam("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid size")
		}
		size = ClampSize(n)
	}

	data, err := h.renderer.Render(id, size)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to render thumbnail")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to render thumbnail")
	}

	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return c.Blob(http.StatusOK, "image/png", data)
}
