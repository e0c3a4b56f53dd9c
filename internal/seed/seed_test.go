package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"spacegrid/internal/database"
	"spacegrid/internal/models"
	"spacegrid/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalog = `
spaces:
  - id: sala-1
    name: Sala 1
    tz: America/Panama
    capacity: 10
    schedule:
      - weekday: 1
        windows:
          - {start: "08:00", end: "18:00"}
    blackouts: ["2025-12-25"]
  - id: area-1
    name: Area 1
    tz: America/Panama
    capacity: 16
    schedule:
      - weekday: 6
        windows:
          - {start: "07:00", end: "19:00"}
`

func TestParseSpaces(t *testing.T) {
	spaces, err := ParseSpaces([]byte(catalog))
	require.NoError(t, err)
	require.Len(t, spaces, 2)

	assert.Equal(t, "America/Panama", spaces[0].TimeZone)
	assert.Equal(t, []models.Window{{Start: "08:00", End: "18:00"}}, spaces[0].WindowsFor(models.Monday))
	assert.Equal(t, []string{"2025-12-25"}, spaces[0].Blackouts)
	assert.Equal(t, 16, spaces[1].Capacity)
}

func TestParseSpaces_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "spaces: []"},
		{"broken yaml", "spaces: ["},
		{"bad zone", "spaces:\n  - {id: x, name: X, tz: Nowhere/City}"},
		{"duplicate", "spaces:\n  - {id: x, name: X, tz: UTC}\n  - {id: x, name: Y, tz: UTC}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpaces([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSpacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaces.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o600))

	spaces, err := LoadSpacesFile(path)
	require.NoError(t, err)
	assert.Len(t, spaces, 2)

	_, err = LoadSpacesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	svc := service.NewSpaceService(db, nil, &logger)
	spaces, err := ParseSpaces([]byte(catalog))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := Apply(ctx, svc, spaces)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2}, res)

	res, err = Apply(ctx, svc, spaces)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 2}, res)

	stored, err := svc.ListSpaces(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
