package api

import (
	"fmt"
	"testing"
	"time"

	"spacegrid/internal/config"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(cfg config.APIRateLimitConfig, start time.Time) (*rateLimiter, *time.Time) {
	clock := start
	l := newRateLimiter(cfg)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	start := time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)
	l, clock := newTestLimiter(config.APIRateLimitConfig{RPS: 10, Burst: 5}, start)

	for i := 0; i < 100; i++ {
		assert.True(t, l.allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, 100, l.size())

	// one client stays active, the rest go quiet
	*clock = start.Add(limiterIdleTTL / 2)
	assert.True(t, l.allow("10.0.0.1"))

	*clock = start.Add(limiterIdleTTL + time.Second)
	assert.True(t, l.allow("10.0.0.200"))
	assert.Equal(t, 2, l.size())
}

func TestRateLimiter_SweepKeepsBusyBuckets(t *testing.T) {
	start := time.Date(2025, 8, 18, 9, 0, 0, 0, time.UTC)
	l, clock := newTestLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 1}, start)

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	*clock = start.Add(time.Minute)
	assert.Equal(t, 0, l.sweep(*clock))
	assert.Equal(t, 1, l.size())
}

func TestRateLimiter_IdleTTLCoversRefill(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 0.001, Burst: 2})
	assert.Equal(t, 2000*time.Second, l.idleTTL)

	l = newRateLimiter(config.APIRateLimitConfig{RPS: 100})
	assert.Equal(t, limiterIdleTTL, l.idleTTL)
	assert.Equal(t, 5, l.burst)
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{})
	for i := 0; i < 10; i++ {
		assert.True(t, l.allow("x"))
	}
	assert.Equal(t, 0, l.size())
}
