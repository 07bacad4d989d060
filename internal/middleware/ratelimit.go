package middleware

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/medipay/internal/models"
	"github.com/example/medipay/internal/services"
)

// RateLimiter gates requests per key. Implementations may hold state
// in-process (single-instance deployments) or in a shared store with
// atomic increment-and-expire for multi-instance deployments.
type RateLimiter interface {
	// Check reports whether the key may proceed; when it may not,
	// retryAfter is the number of seconds left in the window.
	Check(key string) (allowed bool, retryAfter int)
}

type window struct {
	start time.Time
	count int
}

// MemoryRateLimiter is a fixed-window counter held in process memory.
// State is not shared across instances and is lost on restart. Expired
// windows are swept out at most once per window length so the key map
// stays bounded by recent traffic.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	length    time.Duration
	max       int
	lastSweep time.Time
}

func NewMemoryRateLimiter(length time.Duration, max int) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows:   make(map[string]*window),
		length:    length,
		max:       max,
		lastSweep: time.Now(),
	}
}

// Check counts the request against the key's current window, resetting
// the window once it elapses.
func (l *MemoryRateLimiter) Check(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) >= l.length {
		for k, w := range l.windows {
			if now.Sub(w.start) >= l.length {
				delete(l.windows, k)
			}
		}
		l.lastSweep = now
	}

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.length {
		l.windows[key] = &window{start: now, count: 1}
		return true, 0
	}

	if w.count >= l.max {
		remaining := l.length - now.Sub(w.start)
		retryAfter := int(remaining.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	w.count++
	return true, 0
}

// RateLimit rejects callers that exceed the per-identity request cap
// within the window. Fails open when no limiter is configured.
func RateLimit(limiter RateLimiter, audit *services.AuditService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			log.Println("[RateLimit] no limiter configured, failing open")
			return c.Next()
		}

		userID, _ := GetCurrentUserID(c)
		key := userID.String() + ":" + c.IP()

		allowed, retryAfter := limiter.Check(key)
		if allowed {
			return c.Next()
		}

		logRateLimitEvent(c, audit, userID, retryAfter)
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":     false,
			"error":       "too many payment requests",
			"retry_after": retryAfter,
		})
	}
}

func logRateLimitEvent(c *fiber.Ctx, audit *services.AuditService, userID uuid.UUID, retryAfter int) {
	logSecurityEvent(c, audit, userID, "RATE_LIMIT_EXCEEDED", models.SeverityWarning, map[string]any{
		"path":        c.Path(),
		"retry_after": retryAfter,
	})
}
