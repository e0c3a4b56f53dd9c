package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"spacegrid/internal/domain"
	"spacegrid/internal/models"

	"github.com/rs/zerolog"
)

const recheckAfter = time.Minute

// FailoverGridCache serves from primary until it errors, then switches to
// fallback and retries primary once a minute.
type FailoverGridCache struct {
	primary  domain.GridCache
	fallback domain.GridCache
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverGridCache(primary, fallback domain.GridCache, logger *zerolog.Logger) *FailoverGridCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverGridCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverGridCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary grid cache failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// shouldProbe reports whether primary is up or due for a recovery attempt.
func (r *FailoverGridCache) shouldProbe() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recheckAfter
}

func (r *FailoverGridCache) Get(ctx context.Context, key string) (*models.DayGrid, error) {
	if r.shouldProbe() {
		grid, err := r.primary.Get(ctx, key)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary grid cache recovered")
			}
			return grid, nil
		}
		r.markDown(err)
	}
	return r.fallback.Get(ctx, key)
}

func (r *FailoverGridCache) Set(ctx context.Context, key string, grid *models.DayGrid) error {
	if r.shouldProbe() {
		err := r.primary.Set(ctx, key, grid)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary grid cache recovered")
			}
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Set(ctx, key, grid)
}
