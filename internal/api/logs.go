package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/api/middleware"
	"github.com/mediashelf/mediashelf/internal/logger"
)

const maxLogLimit = 1000

// LogsProvider gives access to buffered and on-disk logs.
type LogsProvider interface {
	QueryLogs(filter logger.LogFilter) []logger.LogEntry
	GetLogFilePath() string
}

// LogsHandlers serves recent log entries and the log file.
type LogsHandlers struct {
	provider LogsProvider
}

// NewLogsHandlers creates a new logs handlers instance.
func NewLogsHandlers(provider LogsProvider) *LogsHandlers {
	return &LogsHandlers{provider: provider}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns buffered entries visible to the caller's session.
// GET /api/v1/system/logs?level=&component=&limit=
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	filter := logger.LogFilter{
		Session:   middleware.SessionID(c),
		MinLevel:  zerolog.TraceLevel,
		Component: c.QueryParam("component"),
	}

	if raw := c.QueryParam("level"); raw != "" {
		level, err := zerolog.ParseLevel(raw)
		if err != nil || level == zerolog.NoLevel {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid level")
		}
		filter.MinLevel = level
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit")
		}
		filter.Limit = min(limit, maxLogLimit)
	}

	return c.JSON(http.StatusOK, h.provider.QueryLogs(filter))
}

// DownloadLogFile serves the current log file as an attachment.
// GET /api/v1/system/logs/download
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	logPath := h.provider.GetLogFilePath()
	if logPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}
	if _, err := os.Stat(logPath); errors.Is(err, fs.ErrNotExist) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}
	return c.Attachment(logPath, logger.LogFileName)
}
