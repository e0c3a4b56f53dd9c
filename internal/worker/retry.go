package worker

import (
	"time"

	"spacegrid/internal/config"
)

// backoff spaces out retries of a failed grid warm.
type backoff struct {
	maxRetries int
	initial    time.Duration
	max        time.Duration // 0 = uncapped
	factor     float64
}

func newBackoff(cfg config.WarmerConfig) backoff {
	b := backoff{
		maxRetries: cfg.MaxRetries,
		initial:    time.Duration(cfg.InitialDelayMs) * time.Millisecond,
		max:        time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		factor:     cfg.BackoffFactor,
	}
	if b.maxRetries < 0 {
		b.maxRetries = 0
	}
	if b.initial <= 0 {
		b.initial = time.Second
	}
	if b.factor <= 0 {
		b.factor = 2
	}
	return b
}

// exhausted reports whether a task that failed attempt times should be dropped.
func (b backoff) exhausted(attempt int) bool {
	return attempt > b.maxRetries
}

// delay before the retry that follows failed attempt (1-based).
func (b backoff) delay(attempt int) time.Duration {
	d := b.initial
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * b.factor)
		if b.max > 0 && d >= b.max {
			return b.max
		}
	}
	if b.max > 0 && d > b.max {
		return b.max
	}
	return d
}
