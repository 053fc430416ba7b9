package library

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"github.com/mediashelf/mediashelf/internal/api/middleware"
)

// Handlers provides HTTP handlers for library operations
type Handlers struct {
	service *Service
}

// NewHandlers creates a new library handlers instance
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the library routes
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetView)
	g.GET("/entries/:id", h.GetEntry)
	g.GET("/history", h.GetHistory)
	g.GET("/stats", h.GetStats)
	g.POST("/navigate", h.Navigate)
	g.POST("/breadcrumb", h.Breadcrumb)
	g.POST("/search", h.Search)
	g.POST("/filter", h.Filter)
	g.POST("/page", h.ChangePage)
	g.POST("/select", h.Select)
	g.DELETE("/selection", h.ClearSelection)
	g.POST("/folders", h.CreateFolder)
	g.POST("/preview", h.OpenPreview)
	g.DELETE("/preview", h.ClosePreview)
	g.POST("/intents", h.Dispatch)
}

// RegisterUploadRoute registers the upload route, optionally behind extra middleware
func (h *Handlers) RegisterUploadRoute(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.POST("/uploads", h.Upload, mw...)
}

func (h *Handlers) model(c echo.Context) *Model {
	return h.service.Session(middleware.SessionID(c), c.QueryParams())
}

// GetView handles GET /api/v1/library?page=&pageSize=
// Returns the derived view. page and pageSize read a different page without moving the session.
func (h *Handlers) GetView(c echo.Context) error {
	m := h.model(c)
	view := m.View()

	pageParam, pageSizeParam := c.QueryParam("page"), c.QueryParam("pageSize")
	if pageParam == "" && pageSizeParam == "" {
		return c.JSON(http.StatusOK, view)
	}

	page, pageSize := view.Page, view.PageSize
	if pageParam != "" {
		p, err := strconv.Atoi(pageParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid page")
		}
		page = p
	}
	if pageSizeParam != "" {
		ps, err := strconv.Atoi(pageSizeParam)
		if err != nil || ps <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid pageSize")
		}
		pageSize = ps
	}

	visible := m.VisibleEntries()
	view.Page = page
	view.PageSize = pageSize
	view.TotalPages = TotalPages(len(visible), pageSize)
	view.Entries = Paginate(visible, page, pageSize)
	return c.JSON(http.StatusOK, view)
}

// GetEntry handles GET /api/v1/library/entries/:id
func (h *Handlers) GetEntry(c echo.Context) error {
	e, err := h.model(c).Lookup(ID(c.Param("id")))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, e)
}

// GetHistory handles GET /api/v1/library/history
func (h *Handlers) GetHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, h.model(c).FolderHistory())
}

// GetStats handles GET /api/v1/library/stats
func (h *Handlers) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.model(c).Stats())
}

// Navigate handles POST /api/v1/library/navigate
// A null folderId navigates to root.
func (h *Handlers) Navigate(c echo.Context) error {
	type request struct {
		FolderID    ID     `json:"folderId"`
		DisplayName string `json:"displayName"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	m := h.model(c)
	m.NavigateTo(req.FolderID, req.DisplayName)
	return c.JSON(http.StatusOK, m.View())
}

// Breadcrumb handles POST /api/v1/library/breadcrumb
func (h *Handlers) Breadcrumb(c echo.Context) error {
	type request struct {
		Index *int `json:"index"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Index == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Index is required")
	}

	m := h.model(c)
	if err := m.NavigateViaBreadcrumb(*req.Index); err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, m.View())
}

// Search handles POST /api/v1/library/search
func (h *Handlers) Search(c echo.Context) error {
	type request struct {
		Query string `json:"query"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	m := h.model(c)
	m.SetSearchQuery(req.Query)
	return c.JSON(http.StatusOK, m.View())
}

// Filter handles POST /api/v1/library/filter
func (h *Handlers) Filter(c echo.Context) error {
	type request struct {
		Kind string `json:"kind"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	f, err := ParseKindFilter(req.Kind)
	if err != nil {
		return h.mapError(err)
	}

	m := h.model(c)
	m.SetTypeFilter(f)
	return c.JSON(http.StatusOK, m.View())
}

// ChangePage handles POST /api/v1/library/page
func (h *Handlers) ChangePage(c echo.Context) error {
	type request struct {
		Page int `json:"page"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	m := h.model(c)
	m.SetPage(req.Page)
	return c.JSON(http.StatusOK, m.View())
}

// Select handles POST /api/v1/library/select
func (h *Handlers) Select(c echo.Context) error {
	type request struct {
		ID       ID   `json:"id"`
		Selected bool `json:"selected"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.ID.IsRoot() {
		return echo.NewHTTPError(http.StatusBadRequest, "ID is required")
	}

	m := h.model(c)
	m.SelectEntry(req.ID, req.Selected)
	return c.JSON(http.StatusOK, map[string]interface{}{"selected": m.Selected()})
}

// ClearSelection handles DELETE /api/v1/library/selection
func (h *Handlers) ClearSelection(c echo.Context) error {
	h.model(c).ClearSelection()
	return c.NoContent(http.StatusNoContent)
}

// CreateFolder handles POST /api/v1/library/folders
func (h *Handlers) CreateFolder(c echo.Context) error {
	type request struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	e, err := h.service.CreateFolder(middleware.SessionID(c), req.Name, req.Description)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

// Upload handles POST /api/v1/library/uploads
// Accepts multipart "files" parts or a JSON body {"files": [{name, mimeType, byteSize}]}.
// Only file descriptors are kept; content is read solely to sniff a missing MIME type.
func (h *Handlers) Upload(c echo.Context) error {
	var files []RawFile

	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["files"] {
			raw, err := describePart(fh)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Unreadable file part")
			}
			files = append(files, raw)
		}
	} else {
		type request struct {
			Files []RawFile `json:"files"`
		}
		var req request
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
		}
		files = req.Files
	}

	activityID, err := h.service.Upload(c.Request().Context(), middleware.SessionID(c), files)
	if err != nil {
		return h.mapError(err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"activityId": activityID,
		"files":      len(files),
	})
}

// describePart builds a RawFile from a multipart header, sniffing the content
// when the client sent no useful Content-Type.
func describePart(fh *multipart.FileHeader) (RawFile, error) {
	raw := RawFile{
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		ByteSize: fh.Size,
	}
	if raw.MimeType != "" && raw.MimeType != "application/octet-stream" {
		return raw, nil
	}

	f, err := fh.Open()
	if err != nil {
		return RawFile{}, err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return RawFile{}, err
	}
	raw.MimeType = mt.String()
	return raw, nil
}

// OpenPreview handles POST /api/v1/library/preview
func (h *Handlers) OpenPreview(c echo.Context) error {
	type request struct {
		ID ID `json:"id"`
	}

	var req request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	m := h.model(c)
	if err := m.OpenPreview(req.ID); err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, m.View())
}

// ClosePreview handles DELETE /api/v1/library/preview
func (h *Handlers) ClosePreview(c echo.Context) error {
	h.model(c).ClosePreview()
	return c.NoContent(http.StatusNoContent)
}

// Dispatch handles POST /api/v1/library/intents
func (h *Handlers) Dispatch(c echo.Context) error {
	var in Intent
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	result, err := h.service.Dispatch(c.Request().Context(), middleware.SessionID(c), in)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// mapError maps service errors to HTTP errors
func (h *Handlers) mapError(err error) error {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Entry not found")
	case errors.Is(err, ErrInvalidBreadcrumb):
		return echo.NewHTTPError(http.StatusBadRequest, "Breadcrumb index out of range")
	case errors.Is(err, ErrUnknownKind):
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown kind")
	case errors.Is(err, ErrEmptyName):
		return echo.NewHTTPError(http.StatusBadRequest, "Name is required")
	case errors.Is(err, ErrNoFiles):
		return echo.NewHTTPError(http.StatusBadRequest, "No files to upload")
	case errors.Is(err, ErrUnknownIntent):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
