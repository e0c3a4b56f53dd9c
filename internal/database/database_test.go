package database

import (
	"context"
	"path/filepath"
	"testing"

	"spacegrid/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	return setupTestDBAt(t, ":memory:")
}

func setupTestDBAt(t *testing.T, path string) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedSpace(t *testing.T, db *DB, id string) *models.Space {
	t.Helper()
	sp := &models.Space{
		ID:       id,
		Name:     "Space " + id,
		TimeZone: "America/Panama",
		Capacity: 10,
		Schedule: []models.DaySchedule{
			{Weekday: models.Monday, Windows: []models.Window{{Start: "08:00", End: "12:00"}, {Start: "13:00", End: "18:00"}}},
			{Weekday: models.Tuesday, Windows: []models.Window{{Start: "09:00", End: "17:00"}}},
			{Weekday: models.Monday, Windows: []models.Window{{Start: "19:00", End: "20:00"}}},
		},
		Blackouts: []string{"2025-12-25", "2026-01-01"},
	}
	require.NoError(t, db.UpsertSpace(context.Background(), sp))
	return sp
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db := setupTestDBAt(t, dbPath)

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	first := setupTestDBAt(t, dbPath)
	seedSpace(t, first, "sala-1")
	require.NoError(t, first.Close())

	// createTables is idempotent and keeps data and versions
	second := setupTestDBAt(t, dbPath)
	sp, err := second.GetSpace(context.Background(), "sala-1")
	require.NoError(t, err)
	assert.Equal(t, "Space sala-1", sp.Name)

	v, err := second.DataVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Spaces)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestDataVersions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	v, err := db.DataVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DataVersions{}, v)

	seedSpace(t, db, "sala-1")
	seedSpace(t, db, "sala-1")

	v, err = db.DataVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DataVersions{Spaces: 2}, v)
}
