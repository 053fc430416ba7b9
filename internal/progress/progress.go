// Package progress tracks long-running library activities, such as simulated
// uploads, and pushes their lifecycle to the WebSocket clients of the session
// that started them.
package progress

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ActivityType identifies the type of activity being tracked.
type ActivityType string

const (
	ActivityTypeUpload ActivityType = "upload"
)

// Status represents the current state of an activity.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Activity represents a trackable activity with progress.
type Activity struct {
	ID          string                 `json:"id"`
	SessionID   string                 `json:"-"`
	Type        ActivityType           `json:"type"`
	Title       string                 `json:"title"`
	Subtitle    string                 `json:"subtitle"`
	Progress    int                    `json:"progress"` // 0-100, -1 for indeterminate
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt *time.Time             `json:"completedAt"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// EventType identifies the type of progress event.
type EventType string

const (
	EventTypeStarted   EventType = "progress:started"
	EventTypeUpdate    EventType = "progress:update"
	EventTypeCompleted EventType = "progress:completed"
	EventTypeError     EventType = "progress:error"
	EventTypeCancelled EventType = "progress:cancelled"
)

// SessionBroadcaster delivers events to one session's clients.
type SessionBroadcaster interface {
	SendToSession(sessionID, msgType string, payload interface{}) error
}

// DefaultRetention is how long finished activities stay queryable.
const DefaultRetention = 5 * time.Second

// Manager tracks and broadcasts progress for all activities.
type Manager struct {
	hub        SessionBroadcaster
	activities map[string]*Activity
	retention  time.Duration
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewManager creates a new progress manager. hub may be nil.
func NewManager(hub SessionBroadcaster, logger zerolog.Logger) *Manager {
	return &Manager{
		hub:        hub,
		activities: make(map[string]*Activity),
		retention:  DefaultRetention,
		logger:     logger.With().Str("component", "progress").Logger(),
	}
}

// SetRetention changes how long finished activities are kept.
func (m *Manager) SetRetention(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retention = d
}

// StartActivity creates and starts tracking a new activity.
func (m *Manager) StartActivity(id, sessionID string, activityType ActivityType, title string) *Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity := &Activity{
		ID:        id,
		SessionID: sessionID,
		Type:      activityType,
		Title:     title,
		Subtitle:  "Starting...",
		Progress:  -1,
		Status:    StatusInProgress,
		StartedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
	}

	m.activities[id] = activity
	m.broadcast(EventTypeStarted, activity)

	m.logger.Debug().
		Str("id", id).
		Str("session", sessionID).
		Str("type", string(activityType)).
		Str("title", title).
		Msg("Activity started")

	return activity
}

// UpdateActivity updates an existing activity's progress.
func (m *Manager) UpdateActivity(id string, subtitle string, progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, exists := m.activities[id]
	if !exists {
		return
	}

	activity.Subtitle = subtitle
	activity.Progress = progress

	m.broadcast(EventTypeUpdate, activity)
}

// UpdateActivityMetadata updates an activity's metadata.
func (m *Manager) UpdateActivityMetadata(id string, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, exists := m.activities[id]
	if !exists {
		return
	}

	activity.Metadata[key] = value
}

// CompleteActivity marks an activity as completed.
func (m *Manager) CompleteActivity(id string, subtitle string) {
	m.finish(id, StatusCompleted, subtitle, EventTypeCompleted)
}

// FailActivity marks an activity as failed.
func (m *Manager) FailActivity(id string, errorMsg string) {
	m.finish(id, StatusFailed, errorMsg, EventTypeError)
}

// CancelActivity marks an activity as cancelled.
func (m *Manager) CancelActivity(id string) {
	m.finish(id, StatusCancelled, "Cancelled", EventTypeCancelled)
}

func (m *Manager) finish(id string, status Status, subtitle string, event EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, exists := m.activities[id]
	if !exists {
		return
	}

	now := time.Now()
	activity.Status = status
	activity.Subtitle = subtitle
	activity.CompletedAt = &now
	if status == StatusCompleted {
		activity.Progress = 100
	}
	if status == StatusFailed {
		activity.Metadata["error"] = subtitle
	}

	m.broadcast(event, activity)

	// Keep finished activities briefly so polling clients can see the outcome
	retention := m.retention
	time.AfterFunc(retention, func() {
		m.mu.Lock()
		if current, ok := m.activities[id]; ok && current == activity {
			delete(m.activities, id)
		}
		m.mu.Unlock()
	})

	m.logger.Debug().
		Str("id", id).
		Str("title", activity.Title).
		Str("status", string(status)).
		Msg("Activity finished")
}

// GetActivity returns a copy of an activity by ID.
func (m *Manager) GetActivity(id string) (Activity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	activity, ok := m.activities[id]
	if !ok {
		return Activity{}, false
	}
	return copyActivity(activity), true
}

// GetAllActivities returns copies of all tracked activities.
func (m *Manager) GetAllActivities() []Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Activity, 0, len(m.activities))
	for _, activity := range m.activities {
		result = append(result, copyActivity(activity))
	}
	return result
}

// GetSessionActivities returns the activities started by one session.
func (m *Manager) GetSessionActivities(sessionID string) []Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Activity, 0)
	for _, activity := range m.activities {
		if activity.SessionID == sessionID {
			result = append(result, copyActivity(activity))
		}
	}
	return result
}

func copyActivity(a *Activity) Activity {
	c := *a
	c.Metadata = make(map[string]interface{}, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// broadcast sends an activity update to the session's clients. Caller holds the lock.
func (m *Manager) broadcast(eventType EventType, activity *Activity) {
	if m.hub == nil {
		return
	}

	snapshot := copyActivity(activity)
	if err := m.hub.SendToSession(activity.SessionID, string(eventType), snapshot); err != nil {
		m.logger.Warn().Err(err).Str("id", activity.ID).Msg("Failed to broadcast activity")
	}
}
