package library

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/metrics"
	"github.com/mediashelf/mediashelf/internal/progress"
)

// EventLibraryChanged is pushed to a session's clients after every state change.
const EventLibraryChanged = "library:changed"

// Broadcaster pushes events to the clients of one session.
type Broadcaster interface {
	SendToSession(sessionID, msgType string, payload interface{}) error
}

// ChangeEvent is the payload of EventLibraryChanged.
type ChangeEvent struct {
	Reason string `json:"reason"`
	View   View   `json:"view"`
}

// Config holds library service settings.
type Config struct {
	PageSize      int
	UploadDelay   time.Duration
	UploadTimeout time.Duration
	IdleTimeout   time.Duration
	MaxSessions   int
	ThumbnailURL  func(id ID) string
}

// DefaultConfig returns the library defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:      DefaultPageSize,
		UploadDelay:   DefaultUploadDelay,
		UploadTimeout: 30 * time.Second,
		IdleTimeout:   2 * time.Hour,
		MaxSessions:   1000,
	}
}

type session struct {
	id       string
	model    *Model
	lastSeen time.Time
}

// Service owns one Model per browser session, all seeded from the same entries.
type Service struct {
	cfg      Config
	seed     []Entry
	hub      Broadcaster
	progress *progress.Manager
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a library service. hub and tracker may be nil.
func NewService(cfg Config, seed []Entry, hub Broadcaster, tracker *progress.Manager, logger zerolog.Logger) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultConfig().UploadTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:      cfg,
		seed:     append([]Entry(nil), seed...),
		hub:      hub,
		progress: tracker,
		logger:   logger.With().Str("component", "library").Logger(),
		now:      time.Now,
		sessions: make(map[string]*session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Session returns the model for sessionID, creating it on first use. A new
// session's navigator starts from query, so a deep link like ?folder=<id>
// opens that folder.
func (s *Service) Session(sessionID string, query url.Values) *Model {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.lastSeen = s.now()
		s.mu.Unlock()
		return sess.model
	}

	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.evictOldestLocked()
	}

	nav := NewQueryNavigator(nil)
	if folder := query.Get(FolderParam); folder != "" {
		nav = NewQueryNavigator(url.Values{FolderParam: {folder}})
	}
	model := NewModel(s.seed, Options{
		PageSize:     s.cfg.PageSize,
		UploadDelay:  s.cfg.UploadDelay,
		Navigator:    nav,
		ThumbnailURL: s.cfg.ThumbnailURL,
	})
	model.InitFromNavigator()
	model.SetOnChange(func(reason string) {
		s.publish(sessionID, model, reason)
	})

	s.sessions[sessionID] = &session{
		id:       sessionID,
		model:    model,
		lastSeen: s.now(),
	}
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.SetActiveSessions(count)
	s.logger.Debug().
		Str("session", sessionID).
		Str("folder", string(model.CurrentFolderID())).
		Msg("Session created")
	return model
}

// HasSession reports whether sessionID is live.
func (s *Service) HasSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// evictOldestLocked drops the least recently seen idle session; sessions with a
// pending upload are kept. Caller holds the lock.
func (s *Service) evictOldestLocked() {
	var oldest *session
	for _, sess := range s.sessions {
		if sess.model.Busy() {
			continue
		}
		if oldest == nil || sess.lastSeen.Before(oldest.lastSeen) {
			oldest = sess
		}
	}
	if oldest == nil {
		return
	}
	delete(s.sessions, oldest.id)
	metrics.RecordSessionEvicted("capacity")
	s.logger.Info().Str("session", oldest.id).Msg("Evicted session at capacity")
}

// SweepIdleSessions removes sessions idle for longer than the idle timeout.
func (s *Service) SweepIdleSessions(ctx context.Context) error {
	if s.cfg.IdleTimeout <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return err
		}
		if sess.lastSeen.Before(cutoff) && !sess.model.Busy() {
			delete(s.sessions, id)
			removed++
			metrics.RecordSessionEvicted("idle")
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	metrics.SetActiveSessions(count)
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Int("remaining", count).Msg("Swept idle sessions")
	}
	return nil
}

// Upload starts ingesting files into the session's current folder and returns
// the activity id that tracks it. Ingestion runs in the background and is
// bounded by the upload timeout and the service lifetime.
func (s *Service) Upload(ctx context.Context, sessionID string, files []RawFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", ErrNoFiles
	}
	for i, f := range files {
		if f.Name == "" {
			return "", fmt.Errorf("file %d: %w", i, ErrEmptyName)
		}
	}

	m := s.Session(sessionID, nil)
	target := m.beginIngest()
	activityID := uuid.NewString()
	var total int64
	for _, f := range files {
		total += f.ByteSize
	}

	if s.progress != nil {
		s.progress.StartActivity(activityID, sessionID, progress.ActivityTypeUpload,
			fmt.Sprintf("Uploading %d file(s)", len(files)))
		s.progress.UpdateActivityMetadata(activityID, "folderId", string(target))
		s.progress.UpdateActivityMetadata(activityID, "bytes", total)
	}

	uploadCtx, cancel := context.WithTimeout(s.ctx, s.cfg.UploadTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		entries, err := m.finishIngest(uploadCtx, target, files)
		switch {
		case errors.Is(err, context.Canceled):
			metrics.RecordUpload("cancelled", 0)
			if s.progress != nil {
				s.progress.CancelActivity(activityID)
			}
		case err != nil:
			metrics.RecordUpload("failed", 0)
			if s.progress != nil {
				s.progress.FailActivity(activityID, err.Error())
			}
			s.logger.Warn().Err(err).Str("session", sessionID).Msg("Upload did not complete")
		default:
			metrics.RecordUpload("completed", total)
			for _, e := range entries {
				metrics.RecordEntryCreated(e.Kind.String())
			}
			if s.progress != nil {
				s.progress.CompleteActivity(activityID, fmt.Sprintf("Added %d file(s)", len(entries)))
			}
			s.logger.Info().
				Str("session", sessionID).
				Str("activity", activityID).
				Int("files", len(entries)).
				Msg("Upload completed")
		}
	}()

	return activityID, nil
}

// CreateFolder validates name and creates a folder in the session's current folder.
func (s *Service) CreateFolder(sessionID, name, description string) (Entry, error) {
	clean, err := ValidateFolderName(name)
	if err != nil {
		return Entry{}, err
	}
	e := s.Session(sessionID, nil).CreateFolder(clean, strings.TrimSpace(description))
	metrics.RecordEntryCreated(e.Kind.String())
	return e, nil
}

// HasImage reports whether the session can see an image entry with the given id.
func (s *Service) HasImage(sessionID, id string) bool {
	e, err := s.Session(sessionID, nil).Lookup(ID(id))
	return err == nil && e.Kind == KindImage
}

// Close cancels in-flight uploads and waits for them to finish.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) publish(sessionID string, m *Model, reason string) {
	metrics.RecordLibraryEvent(reason)
	if s.hub == nil {
		return
	}
	if err := s.hub.SendToSession(sessionID, EventLibraryChanged, ChangeEvent{Reason: reason, View: m.View()}); err != nil {
		s.logger.Warn().Err(err).Str("session", sessionID).Msg("Failed to publish library change")
	}
}
