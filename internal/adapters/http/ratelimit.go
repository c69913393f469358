package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter is a token bucket per caller key. Idle keys are evicted on access
// once they have been quiet for the idle window.
type KeyedLimiter struct {
	mu       sync.Mutex
	perSec   rate.Limit
	burst    int
	idle     time.Duration
	visitors map[string]*limiterEntry
	lastGC   time.Time
	clockNow func() time.Time
}

func NewKeyedLimiter(requestsPerMinute float64, burst int) *KeyedLimiter {
	perSecond := requestsPerMinute / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		perSec:   rate.Limit(perSecond),
		burst:    burst,
		idle:     5 * time.Minute,
		visitors: make(map[string]*limiterEntry),
		clockNow: time.Now,
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clockNow()
	if now.Sub(l.lastGC) > l.idle {
		for k, e := range l.visitors {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}
	entry, ok := l.visitors[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.perSec, l.burst)}
		l.visitors[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
