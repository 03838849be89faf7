package security

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimitConfig is the per-endpoint policy for the fixed-window limiter.
type RateLimitConfig struct {
	MaxRequests   int
	Window        time.Duration
	BlockDuration time.Duration // 0 = soft throttling only, no punitive block
}

// RateLimitResult is the outcome of a single limiter check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type rateLimitEntry struct {
	count        int
	windowResets time.Time
	blocked      bool
	blockedUntil time.Time
}

// RateLimiter is a fixed-window counter with escalating temporary blocks,
// keyed by "identifier:endpointPrefix". State is process-local; horizontal
// scaling requires externalizing it (e.g. Redis) as a follow-up.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	logger  *zap.Logger

	now func() time.Time
}

func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*rateLimitEntry),
		logger:  logger,
		now:     time.Now,
	}
}

// Check counts one request against the key's window. An active block denies
// unconditionally regardless of window state. When the limit is hit and the
// policy carries a BlockDuration, the trip escalates into a block that
// survives window resets.
func (r *RateLimiter) Check(key string, cfg RateLimitConfig) RateLimitResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry := r.entries[key]

	if entry != nil && entry.blocked && entry.blockedUntil.After(now) {
		return RateLimitResult{Allowed: false, Remaining: 0, ResetAt: entry.blockedUntil}
	}

	// First request or expired window: open a new window
	if entry == nil || entry.windowResets.Before(now) {
		resetAt := now.Add(cfg.Window)
		r.entries[key] = &rateLimitEntry{count: 1, windowResets: resetAt}
		return RateLimitResult{Allowed: true, Remaining: cfg.MaxRequests - 1, ResetAt: resetAt}
	}

	if entry.count >= cfg.MaxRequests {
		if cfg.BlockDuration > 0 {
			entry.blocked = true
			entry.blockedUntil = now.Add(cfg.BlockDuration)
			r.logger.Warn("rate limit block escalated",
				zap.String("key", key),
				zap.Time("blocked_until", entry.blockedUntil))
			return RateLimitResult{Allowed: false, Remaining: 0, ResetAt: entry.blockedUntil}
		}
		return RateLimitResult{Allowed: false, Remaining: 0, ResetAt: entry.windowResets}
	}

	entry.count++
	return RateLimitResult{Allowed: true, Remaining: cfg.MaxRequests - entry.count, ResetAt: entry.windowResets}
}

// Sweep removes entries whose window and block have both expired. Run it
// periodically to bound memory under high key cardinality.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for key, entry := range r.entries {
		if entry.windowResets.Before(now) && (!entry.blocked || entry.blockedUntil.Before(now)) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until stop is closed.
// Sweeping only reclaims memory; expiry itself is decided lazily in Check.
func (r *RateLimiter) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					r.logger.Debug("rate limit entries swept", zap.Int("removed", n))
				}
			}
		}
	}()
}
