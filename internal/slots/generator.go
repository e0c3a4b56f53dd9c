// Package slots turns a space's weekly schedule into classified slots for one date.
package slots

import (
	"fmt"
	"time"

	"spacegrid/internal/models"
	"spacegrid/internal/timeutil"
)

// Generator wraps GenerateAt with a clock. The zero value uses time.Now and the
// default policy.
type Generator struct {
	Policy Policy
	Clock  func() time.Time
}

func NewGenerator(p Policy) *Generator {
	return &Generator{Policy: p, Clock: time.Now}
}

// Generate classifies slots against the current instant.
func (g *Generator) Generate(space *models.Space, date timeutil.Date, minutes models.SlotMinutes, bookings []models.Booking) ([]models.Slot, error) {
	now := time.Now
	if g.Clock != nil {
		now = g.Clock
	}
	return GenerateAt(space, date, minutes, bookings, now(), g.Policy)
}

// GenerateAt returns the slots of space on date, in window order then time order.
// It fails only when the space's zone cannot be loaded; malformed windows and days
// without a schedule produce no slots.
func GenerateAt(space *models.Space, date timeutil.Date, minutes models.SlotMinutes, bookings []models.Booking, now time.Time, p Policy) ([]models.Slot, error) {
	loc, err := timeutil.LoadZone(space.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("space %s: %w", space.ID, err)
	}

	out := []models.Slot{}
	windows := space.WindowsFor(timeutil.WeekdayInZone(date, loc))
	if len(windows) == 0 {
		return out, nil
	}

	for _, w := range windows {
		for _, iv := range timeutil.PartitionWindow(date, loc, w, minutes.Duration()) {
			out = append(out, models.Slot{
				Start:   iv.Start,
				End:     iv.End,
				SpaceID: space.ID,
				State:   models.SlotAvailable,
			})
		}
	}
	if len(out) == 0 {
		return out, nil
	}

	dayStart, dayEnd := timeutil.DayBounds(date, loc)
	rules := p.overlays(dayFacts{
		blackout: isBlackout(space, date, loc),
		bookings: dayBookings(space.ID, bookings, timeutil.Interval{Start: dayStart, End: dayEnd}),
		now:      now,
	})
	for i := range out {
		classify(&out[i], rules)
	}
	return out, nil
}

func isBlackout(space *models.Space, date timeutil.Date, loc *time.Location) bool {
	for _, raw := range space.Blackouts {
		d, err := timeutil.ParseBlackout(raw, loc)
		if err != nil {
			continue
		}
		if d == date {
			return true
		}
	}
	return false
}

// dayBookings keeps the space's non-cancelled bookings touching the day.
func dayBookings(spaceID string, bookings []models.Booking, day timeutil.Interval) []timeutil.Interval {
	var out []timeutil.Interval
	for i := range bookings {
		b := &bookings[i]
		if b.SpaceID != spaceID || !b.Occupies() || !b.Start.Before(b.End) {
			continue
		}
		iv := timeutil.Interval{Start: b.Start, End: b.End}
		if iv.Overlaps(day) {
			out = append(out, iv)
		}
	}
	return out
}
