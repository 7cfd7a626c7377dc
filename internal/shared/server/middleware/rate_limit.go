package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"docextract-backend/internal/audit"
	"docextract-backend/internal/shared/metrics"
	"docextract-backend/internal/shared/server/respond"
)

// Limiter is a fixed-window request counter keyed by caller.
// Entries accumulate until Sweep is called; the hosting process is expected
// to run Sweep on a timer.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// Result reports the outcome of a limiter check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// NewLimiter constructs a Limiter. A nil now func defaults to time.Now.
func NewLimiter(limit int, window time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	if limit <= 0 {
		limit = 50
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		entries: make(map[string]*windowEntry),
		limit:   limit,
		window:  window,
		now:     now,
	}
}

// Allow records one request for key and reports whether it fits in the
// current window. Exactly one caller wins each increment.
func (l *Limiter) Allow(key string) Result {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{count: 0, resetAt: now.Add(l.window)}
		l.entries[key] = entry
	}

	if entry.count >= l.limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: entry.resetAt}
	}
	entry.count++
	return Result{Allowed: true, Remaining: l.limit - entry.count, ResetAt: entry.resetAt}
}

// Limit returns the configured per-window request ceiling.
func (l *Limiter) Limit() int {
	return l.limit
}

// Sweep evicts entries whose window has passed and returns the eviction count.
func (l *Limiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for key, entry := range l.entries {
		if !now.Before(entry.resetAt) {
			delete(l.entries, key)
			evicted++
		}
	}
	return evicted
}

// RateLimit rejects requests over the fixed-window budget, keyed by client IP.
// match limits which requests are counted; a nil match counts everything.
// Rejections are recorded on the audit sink when one is provided.
func RateLimit(limiter *Limiter, sink *audit.Sink, match func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if match != nil && !match(c) {
			c.Next()
			return
		}

		key := strings.TrimSpace(c.ClientIP())
		if key == "" {
			key = "unknown"
		}
		res := limiter.Allow(key)

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))

		if res.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
		if retryAfter <= 0 {
			retryAfter = 1
		}
		h.Set("Retry-After", strconv.Itoa(retryAfter))
		metrics.IncRateLimitRejected()
		sink.Log(c.Request.Context(), audit.Event{
			Type:      audit.EventRateLimitExceeded,
			Severity:  audit.SeverityWarning,
			Status:    audit.StatusFailure,
			Action:    "ratelimit.reject",
			IPAddress: key,
			UserAgent: c.Request.UserAgent(),
			Metadata: map[string]any{
				"path":  c.Request.URL.Path,
				"limit": limiter.Limit(),
			},
		})
		respond.RateLimited(c, http.StatusTooManyRequests, "Too many requests", res.ResetAt.UnixMilli())
	}
}
