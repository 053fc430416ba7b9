package tasks

import (
	"context"

	"github.com/mediashelf/mediashelf/internal/scheduler"
)

const (
	SessionSweepTaskID     = "session-sweep"
	UploadLimiterCleanupID = "upload-limiter-cleanup"
)

// SessionSweeper drops idle library sessions.
type SessionSweeper interface {
	SweepIdleSessions(ctx context.Context) error
}

// LimiterCleaner forgets idle rate-limit clients.
type LimiterCleaner interface {
	Cleanup(ctx context.Context) error
}

// RegisterSessionSweepTask registers the idle session sweep on the configured cron.
func RegisterSessionSweepTask(sched *scheduler.Scheduler, sweeper SessionSweeper, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          SessionSweepTaskID,
		Name:        "Session Sweep",
		Description: "Drops library sessions that have been idle past the idle timeout",
		Cron:        cron,
		Func:        sweeper.SweepIdleSessions,
	})
}

// RegisterUploadLimiterCleanupTask registers the hourly upload limiter cleanup.
func RegisterUploadLimiterCleanupTask(sched *scheduler.Scheduler, limiter LimiterCleaner) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          UploadLimiterCleanupID,
		Name:        "Upload Limiter Cleanup",
		Description: "Forgets upload rate limit state for clients that have gone quiet",
		Cron:        "0 * * * *",
		Func:        limiter.Cleanup,
	})
}
