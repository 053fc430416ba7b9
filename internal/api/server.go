package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/api/handlers"
	apimw "github.com/mediashelf/mediashelf/internal/api/middleware"
	"github.com/mediashelf/mediashelf/internal/api/ratelimit"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/library"
	"github.com/mediashelf/mediashelf/internal/metrics"
	"github.com/mediashelf/mediashelf/internal/progress"
	"github.com/mediashelf/mediashelf/internal/scheduler"
	"github.com/mediashelf/mediashelf/internal/scheduler/tasks"
	"github.com/mediashelf/mediashelf/internal/thumbnail"
	"github.com/mediashelf/mediashelf/internal/websocket"
)

// Server handles HTTP requests for the MediaShelf API.
type Server struct {
	echo      *echo.Echo
	hub       *websocket.Hub
	logger    zerolog.Logger
	cfg       *config.Config
	logs      LogsProvider
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// Services
	libraryService  *library.Service
	progressManager *progress.Manager
	renderer        *thumbnail.Renderer
	uploadLimiter   *ratelimit.UploadLimiter
	scheduler       *scheduler.Scheduler
}

// NewServer creates a new API server instance serving a library seeded with entries.
func NewServer(cfg *config.Config, entries []library.Entry, hub *websocket.Hub, logs LogsProvider, logger zerolog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:      e,
		hub:       hub,
		logger:    logger,
		cfg:       cfg,
		logs:      logs,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	// Initialize progress manager for tracking uploads
	s.progressManager = progress.NewManager(hub, logger)

	// Initialize library service (one model per browser session)
	s.libraryService = library.NewService(library.Config{
		PageSize:      cfg.Library.PageSize,
		UploadDelay:   cfg.Library.UploadDelay,
		UploadTimeout: cfg.Library.UploadTimeout,
		IdleTimeout:   cfg.Sessions.IdleTimeout,
		MaxSessions:   cfg.Sessions.MaxSessions,
	}, entries, hub, s.progressManager, logger)

	s.renderer = thumbnail.NewRenderer(cfg.Library.ThumbnailSize)
	s.uploadLimiter = ratelimit.NewUploadLimiter(cfg.Uploads.RequestsPerMinute)

	// Initialize scheduler with housekeeping tasks
	sched, err := scheduler.New(logger)
	if err != nil {
		cancel()
		return nil, err
	}
	s.scheduler = sched
	if err := tasks.RegisterSessionSweepTask(sched, s.libraryService, cfg.Sessions.SweepCron); err != nil {
		cancel()
		return nil, fmt.Errorf("register session sweep: %w", err)
	}
	if err := tasks.RegisterUploadLimiterCleanupTask(sched, s.uploadLimiter); err != nil {
		cancel()
		return nil, fmt.Errorf("register limiter cleanup: %w", err)
	}

	// Websocket clients join the same session as their HTTP requests and may send intents
	hub.SetSessionResolver(apimw.ResolveSession)
	hub.SetIntentHandler(s.handleIntent)

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, apimw.SessionHeader},
		AllowCredentials: false,
	}))

	// Prometheus request metrics
	s.echo.Use(metrics.Middleware())

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// WebSocket endpoint
	s.echo.GET("/ws", s.hub.HandleWebSocket)

	// API v1 group, every request belongs to a library session
	api := s.echo.Group("/api/v1", apimw.Session(s.cfg.Sessions.IdleTimeout))

	// System routes
	api.GET("/status", s.getStatus)

	// Library routes
	libraryHandlers := library.NewHandlers(s.libraryService)
	libraryGroup := api.Group("/library")
	libraryHandlers.RegisterRoutes(libraryGroup)
	libraryHandlers.RegisterUploadRoute(libraryGroup, s.uploadLimiter.Middleware())

	// Thumbnail routes
	thumbnailHandlers := thumbnail.NewHandlers(s.renderer, s.libraryService, s.logger)
	thumbnailHandlers.RegisterRoutes(api.Group("/thumbnails"))

	// Scheduler routes
	system := api.Group("/system")
	schedulerHandler := handlers.NewSchedulerHandler(s.scheduler)
	system.GET("/tasks", schedulerHandler.ListTasks)
	system.GET("/tasks/:id", schedulerHandler.GetTask)
	system.POST("/tasks/:id/run", schedulerHandler.RunTask)

	// Activity routes
	activityHandlers := NewActivityHandlers(s.progressManager)
	activityHandlers.RegisterRoutes(system.Group("/activities"))

	// Log routes
	if s.logs != nil {
		logsHandlers := NewLogsHandlers(s.logs)
		logsHandlers.RegisterRoutes(system.Group("/logs"))
	}
}

// handleIntent applies a websocket intent to the sender's session.
func (s *Server) handleIntent(sessionID string, payload json.RawMessage) (interface{}, error) {
	var in library.Intent
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("invalid intent: %w", err)
	}
	return s.libraryService.Dispatch(s.ctx, sessionID, in)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")

	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.scheduler.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop scheduler")
	}

	err := s.echo.Shutdown(ctx)
	s.cancel()
	s.libraryService.Close()
	return err
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Library returns the library service.
func (s *Server) Library() *library.Service {
	return s.libraryService
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":   config.Version,
		"startTime": s.startTime.Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"sessions":  s.libraryService.SessionCount(),
		"wsClients": s.hub.ClientCount(),
		"session":   apimw.SessionID(c),
	})
}
