package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig is a token bucket refilled with Requests tokens per Window.
type ThrottleConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Throttle limits attempts per key, e.g. login attempts per email. A nil
// Throttle allows everything.
type Throttle struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

// NewThrottle returns nil, meaning no throttling, when cfg.Requests is not
// positive.
func NewThrottle(cfg ThrottleConfig, now func() time.Time) *Throttle {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Requests
	}
	return &Throttle{
		limit:       rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:       burst,
		now:         now,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: now(),
	}
}

// Allow consumes one attempt for key and reports whether it was available.
func (t *Throttle) Allow(key string) bool {
	if t == nil {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cleanup(now)

	limiter, ok := t.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(t.limit, t.burst)
		t.limiters[key] = limiter
	}
	return limiter.AllowN(now, 1)
}

// cleanup drops limiters whose bucket refilled completely, i.e. keys that
// went quiet. Runs at most every five minutes.
func (t *Throttle) cleanup(now time.Time) {
	if now.Sub(t.lastCleanup) < 5*time.Minute {
		return
	}
	t.lastCleanup = now

	for key, limiter := range t.limiters {
		if limiter.TokensAt(now) >= float64(t.burst) {
			delete(t.limiters, key)
		}
	}
}
