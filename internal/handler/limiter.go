package handler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultLoginAttempts 为每个 IP 每分钟允许的登录次数。
const DefaultLoginAttempts = 5

// LoginLimiter rate-limits login attempts per client IP.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows max attempts per window, refilling evenly across it.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	if max <= 0 {
		max = DefaultLoginAttempts
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LoginLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		idle:     window,
		now:      time.Now,
	}
}

// Allow reports whether ip may attempt another login and consumes one token.
func (l *LoginLimiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep 丢弃空闲超过一个窗口的条目，此时其令牌桶必然已满。
func (l *LoginLimiter) sweep(now time.Time) {
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.limiters, ip)
		}
	}
}
