package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a transport-level limit is hit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig bounds the gateway transport: concurrent sessions,
// inbound messages, and handshake attempts. The per-session action
// budget is a separate concern and lives in Policy.
type RateLimitConfig struct {
	MaxSessions    int `yaml:"max_sessions"`
	MessagesPerMin int `yaml:"messages_per_min"`
	ConnectsPerMin int `yaml:"connects_per_min"`
}

const (
	defaultMaxSessions    = 100
	defaultMessagesPerMin = 200
	defaultConnectsPerMin = 60
)

// RateLimiter tracks event timestamps per kind over a sliding
// one-minute window. Safe for concurrent use.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*slidingWindow
	maxSessions int
	now         func() time.Time
}

type slidingWindow struct {
	span   time.Duration
	limit  int
	stamps []time.Time
}

// NewRateLimiter builds a limiter from cfg, substituting defaults for
// zero or negative fields.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.MessagesPerMin <= 0 {
		cfg.MessagesPerMin = defaultMessagesPerMin
	}
	if cfg.ConnectsPerMin <= 0 {
		cfg.ConnectsPerMin = defaultConnectsPerMin
	}

	return &RateLimiter{
		maxSessions: cfg.MaxSessions,
		now:         time.Now,
		windows: map[string]*slidingWindow{
			"message": {span: time.Minute, limit: cfg.MessagesPerMin},
			"connect": {span: time.Minute, limit: cfg.ConnectsPerMin},
		},
	}
}

// Allow records an event of the given kind ("message" or "connect")
// if the window has room, or returns ErrRateLimited. Kinds without a
// window are unlimited.
func (rl *RateLimiter) Allow(kind string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	w.slide(now)
	if len(w.stamps) >= w.limit {
		return ErrRateLimited
	}
	w.stamps = append(w.stamps, now)
	return nil
}

// MaxSessions reports the concurrent session cap.
func (rl *RateLimiter) MaxSessions() int {
	return rl.maxSessions
}

// slide drops stamps that fell out of the window. Stamps are appended
// in order, so the expired prefix is contiguous.
func (w *slidingWindow) slide(now time.Time) {
	cutoff := now.Add(-w.span)
	expired := 0
	for expired < len(w.stamps) && w.stamps[expired].Before(cutoff) {
		expired++
	}
	if expired > 0 {
		w.stamps = w.stamps[expired:]
	}
}
