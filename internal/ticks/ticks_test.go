package ticks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacegrid/internal/models"
	"spacegrid/internal/timeutil"
)

var monday = timeutil.Date{Year: 2025, Month: time.August, Day: 18}

func space(id, tz string, weekday int, windows ...models.Window) models.Space {
	return models.Space{
		ID:       id,
		Name:     id,
		TimeZone: tz,
		Schedule: []models.DaySchedule{{Weekday: weekday, Windows: windows}},
	}
}

func TestBuildTicks_TwoZones(t *testing.T) {
	a := space("a", "America/Panama", models.Monday, models.Window{Start: "08:00", End: "12:00"})
	b := space("b", "Europe/Madrid", models.Monday, models.Window{Start: "09:00", End: "17:00"})

	cat, err := BuildTicks(monday, []models.Space{a, b}, 60, Options{})
	require.NoError(t, err)

	panama, _ := timeutil.LoadZone("America/Panama")
	madrid, _ := timeutil.LoadZone("Europe/Madrid")
	endA := time.Date(2025, 8, 18, 12, 0, 0, 0, panama)
	startA := time.Date(2025, 8, 18, 8, 0, 0, 0, panama)
	endB := time.Date(2025, 8, 18, 17, 0, 0, 0, madrid)
	startB := time.Date(2025, 8, 18, 9, 0, 0, 0, madrid)

	maxEnd := endA
	if endB.After(maxEnd) {
		maxEnd = endB
	}
	minStart := startA
	if startB.Before(minStart) {
		minStart = startB
	}
	want := int(maxEnd.Sub(minStart)/time.Hour) + 1

	assert.Equal(t, want, len(cat.Ticks))
	assert.Equal(t, 11, len(cat.Ticks))
	assert.Equal(t, "America/Panama", cat.ZoneName)
	assert.True(t, cat.Ticks[0].Equal(startB))
	assert.True(t, cat.Ticks[len(cat.Ticks)-1].Equal(endA))

	labels := cat.Labels()
	assert.Equal(t, "02:00", labels[0])
	assert.Equal(t, "12:00", labels[len(labels)-1])
}

func TestBuildTicks_SingleSpaceInclusive(t *testing.T) {
	a := space("a", "America/Panama", models.Monday,
		models.Window{Start: "13:00", End: "15:00"},
		models.Window{Start: "09:00", End: "10:00"},
	)

	cat, err := BuildTicks(monday, []models.Space{a}, 30, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
		"12:00", "12:30", "13:00", "13:30", "14:00", "14:30", "15:00",
	}, cat.Labels())
}

func TestBuildTicks_Fallbacks(t *testing.T) {
	t.Run("no spaces", func(t *testing.T) {
		cat, err := BuildTicks(monday, nil, 60, Options{})
		require.NoError(t, err)
		assert.Equal(t, "America/Panama", cat.ZoneName)
		assert.Len(t, cat.Ticks, 12) // 08:00..19:00 inclusive
		assert.Equal(t, "08:00", cat.Labels()[0])
	})

	t.Run("no windows that day", func(t *testing.T) {
		a := space("a", "Asia/Tokyo", models.Sunday, models.Window{Start: "08:00", End: "12:00"})
		cat, err := BuildTicks(monday, []models.Space{a}, 60, Options{})
		require.NoError(t, err)
		assert.Equal(t, "Asia/Tokyo", cat.ZoneName)
		assert.Equal(t, "08:00", cat.Labels()[0])
		assert.Equal(t, "19:00", cat.Labels()[len(cat.Ticks)-1])
	})

	t.Run("malformed windows are skipped", func(t *testing.T) {
		a := space("a", "America/Panama", models.Monday, models.Window{Start: "12:00", End: "08:00"})
		r, err := GlobalRange(monday, []models.Space{a}, Options{})
		require.NoError(t, err)
		assert.True(t, r.Fallback)
	})

	t.Run("custom options", func(t *testing.T) {
		cat, err := BuildTicks(monday, nil, 15, Options{FallbackZone: "UTC", RangeStart: "10:00", RangeEnd: "11:00"})
		require.NoError(t, err)
		assert.Equal(t, []string{"10:00", "10:15", "10:30", "10:45", "11:00"}, cat.Labels())
	})
}

func TestBuildTicks_Errors(t *testing.T) {
	_, err := BuildTicks(monday, nil, 45, Options{})
	assert.ErrorIs(t, err, models.ErrInvalidSlotMinutes)

	_, err = BuildTicks(monday, nil, 30, Options{FallbackZone: "Bad/Zone"})
	assert.ErrorIs(t, err, timeutil.ErrUnknownZone)

	a := space("a", "America/Panama", models.Monday, models.Window{Start: "08:00", End: "12:00"})
	b := space("b", "Bad/Zone", models.Monday)
	_, err = BuildTicks(monday, []models.Space{a, b}, 30, Options{})
	assert.ErrorIs(t, err, timeutil.ErrUnknownZone)

	_, err = BuildTicks(monday, nil, 30, Options{RangeStart: "19:00", RangeEnd: "08:00"})
	assert.ErrorIs(t, err, timeutil.ErrInvalidWindow)
}
