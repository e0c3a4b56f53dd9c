package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGridCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryGridCache(time.Minute)
	repo.now = func() time.Time { return now }

	got, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	grid := sampleGrid()
	require.NoError(t, repo.Set(ctx, "k", grid))
	got, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Same(t, grid, got)

	now = now.Add(2 * time.Minute)
	got, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry")
}

func TestMemoryGridCache_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryGridCache(time.Minute)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Set(ctx, "old", sampleGrid()))
	now = now.Add(30 * time.Second)
	require.NoError(t, repo.Set(ctx, "fresh", sampleGrid()))
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, repo.Sweep())
	got, _ := repo.Get(ctx, "fresh")
	assert.NotNil(t, got)
}
