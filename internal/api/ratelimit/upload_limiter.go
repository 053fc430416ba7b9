package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/mediashelf/mediashelf/internal/metrics"
)

const (
	DefaultRequestsPerMinute = 30
	DefaultIdleTTL           = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UploadLimiter throttles upload requests per client IP.
type UploadLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewUploadLimiter allows requestsPerMinute uploads per IP with an equal burst.
func NewUploadLimiter(requestsPerMinute int) *UploadLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return &UploadLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(requestsPerMinute) / 60),
		burst:    requestsPerMinute,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
	}
}

func (l *UploadLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				metrics.RecordRateLimitHit()
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many uploads, please try again later")
			}
			return next(c)
		}
	}
}

// Allow consumes one token for ip.
func (l *UploadLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle longer than the idle TTL.
func (l *UploadLimiter) Cleanup(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	for ip, v := range l.visitors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
		}
	}
	return nil
}

// Tracked returns the number of clients currently tracked.
func (l *UploadLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
