package repository

import (
	"context"
	"testing"
	"time"

	"spacegrid/internal/config"
	"spacegrid/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGrid() *models.DayGrid {
	tick := time.Date(2025, 8, 18, 14, 0, 0, 0, time.UTC)
	return &models.DayGrid{
		Date:        "2025-08-18",
		SlotMinutes: 30,
		Zone:        "America/Panama",
		Spaces:      []models.SpaceHeader{{ID: "sala-1", Name: "Sala 1", TimeZone: "America/Panama", Capacity: 10}},
		Rows: []models.GridRow{{
			Tick:  tick,
			Label: "09:00",
			Cells: []models.GridCell{{SpaceID: "sala-1", Slot: &models.Slot{
				Start: tick, End: tick.Add(30 * time.Minute), SpaceID: "sala-1", State: models.SlotBusy,
			}}},
		}},
		GeneratedAt: tick,
	}
}

func TestRedisGridCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer Close(client)

	repo := NewRedisGridCache(client, time.Minute)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, Ping(ctx, client))
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "k1", sampleGrid()))
		assert.True(t, s.Exists(gridKeyPrefix+"k1"))

		got, err := repo.Get(ctx, "k1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "2025-08-18", got.Date)
		require.Len(t, got.Rows, 1)
		assert.Equal(t, models.SlotBusy, got.Rows[0].Cells[0].Slot.State)
		assert.True(t, got.Rows[0].Tick.Equal(sampleGrid().Rows[0].Tick))
	})

	t.Run("Miss", func(t *testing.T) {
		got, err := repo.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "k2", sampleGrid()))
		s.FastForward(2 * time.Minute)
		got, err := repo.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptedPayload", func(t *testing.T) {
		require.NoError(t, s.Set(gridKeyPrefix+"bad", "{not json"))
		_, err := repo.Get(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("ServerDown", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer down.Close()
		r := NewRedisGridCache(down, time.Minute)
		_, err := r.Get(ctx, "k")
		assert.Error(t, err)
		assert.Error(t, r.Set(ctx, "k", sampleGrid()))
		assert.Error(t, Ping(ctx, down))
	})
}

func TestRedisGridCache_NilClient(t *testing.T) {
	repo := NewRedisGridCache(nil, time.Minute)
	_, err := repo.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, repo.Set(context.Background(), "k", sampleGrid()))
	assert.NoError(t, Close(nil))
}
