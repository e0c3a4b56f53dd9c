package api

import (
	"sync"
	"sync/atomic"
	"time"

	"spacegrid/internal/config"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// rateLimiter keeps one token bucket per client key. Buckets idle longer than
// idleTTL are dropped on a later call; by then they have refilled anyway.
type rateLimiter struct {
	limiters  sync.Map // map[string]*clientLimiter
	rps       float64
	burst     int
	idleTTL   time.Duration
	lastSweep atomic.Int64
	now       func() time.Time
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	l := &rateLimiter{rps: cfg.RPS, burst: burst, idleTTL: limiterIdleTTL, now: time.Now}
	if l.rps > 0 {
		if refill := time.Duration(float64(burst) / l.rps * float64(time.Second)); refill > l.idleTTL {
			l.idleTTL = refill
		}
	}
	return l
}

func (l *rateLimiter) enabled() bool {
	return l.rps > 0
}

func (l *rateLimiter) allow(key string) bool {
	if !l.enabled() {
		return true
	}
	now := l.now()
	l.maybeSweep(now)

	cl := l.getLimiter(key)
	cl.lastSeen.Store(now.UnixNano())
	return cl.lim.AllowN(now, 1)
}

func (l *rateLimiter) getLimiter(key string) *clientLimiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*clientLimiter)
	}

	cl := &clientLimiter{lim: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
	actual, _ := l.limiters.LoadOrStore(key, cl)
	return actual.(*clientLimiter)
}

// maybeSweep runs sweep at most once per idleTTL.
func (l *rateLimiter) maybeSweep(now time.Time) {
	last := l.lastSweep.Load()
	if last == 0 {
		l.lastSweep.CompareAndSwap(0, now.UnixNano())
		return
	}
	if now.UnixNano()-last < int64(l.idleTTL) {
		return
	}
	if l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		l.sweep(now)
	}
}

// sweep drops buckets not used since now-idleTTL and returns how many.
func (l *rateLimiter) sweep(now time.Time) int {
	cutoff := now.Add(-l.idleTTL).UnixNano()
	n := 0
	l.limiters.Range(func(k, v any) bool {
		if v.(*clientLimiter).lastSeen.Load() < cutoff {
			l.limiters.Delete(k)
			n++
		}
		return true
	})
	return n
}

func (l *rateLimiter) size() int {
	n := 0
	l.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
