package repository

import (
	"context"
	"sync"
	"time"

	"spacegrid/internal/models"
)

// MemoryGridCache is the in-process grid cache used without Redis and as the
// failover target.
type MemoryGridCache struct {
	grids sync.Map // key -> *memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type memoryEntry struct {
	grid      *models.DayGrid
	expiresAt time.Time
}

func NewMemoryGridCache(ttl time.Duration) *MemoryGridCache {
	return &MemoryGridCache{ttl: ttl, now: time.Now}
}

func (r *MemoryGridCache) Get(_ context.Context, key string) (*models.DayGrid, error) {
	val, ok := r.grids.Load(key)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.grids.CompareAndDelete(key, val)
		return nil, nil
	}
	return entry.grid, nil
}

func (r *MemoryGridCache) Set(_ context.Context, key string, grid *models.DayGrid) error {
	r.grids.Store(key, &memoryEntry{grid: grid, expiresAt: r.now().Add(r.ttl)})
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (r *MemoryGridCache) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.now()
	removed := 0
	r.grids.Range(func(key, val any) bool {
		if now.After(val.(*memoryEntry).expiresAt) && r.grids.CompareAndDelete(key, val) {
			removed++
		}
		return true
	})
	return removed
}
