package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"spacegrid/internal/models"
)

var ErrInvalidWindow = errors.New("invalid window")

// Clock is a wall-clock time of day. 24:00 is allowed and means the end of the day.
type Clock struct {
	Hour   int
	Minute int
}

func ParseClock(raw string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 || len(parts[1]) != 2 || parts[0] == "" || len(parts[0]) > 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	if hour == 24 && minute == 0 {
		return Clock{Hour: 24}, nil
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// At returns the instant of the wall clock c on date d in loc.
func At(d Date, loc *time.Location, c Clock) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc)
}

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses strict inequalities, so intervals that only touch do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// ResolveWindow builds the zone-local instants of a window on date d.
func ResolveWindow(d Date, loc *time.Location, w models.Window) (Interval, error) {
	start, err := ParseClock(w.Start)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: start: %v", ErrInvalidWindow, err)
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: end: %v", ErrInvalidWindow, err)
	}
	iv := Interval{Start: At(d, loc, start), End: At(d, loc, end)}
	if !iv.End.After(iv.Start) {
		return Interval{}, fmt.Errorf("%w: %s-%s ends before it starts", ErrInvalidWindow, w.Start, w.End)
	}
	return iv, nil
}

// PartitionWindow splits a window into consecutive slots of exactly length.
// A trailing partial slot is dropped. Malformed windows yield nil.
func PartitionWindow(d Date, loc *time.Location, w models.Window, length time.Duration) []Interval {
	if length <= 0 {
		return nil
	}
	iv, err := ResolveWindow(d, loc, w)
	if err != nil {
		return nil
	}

	var out []Interval
	cursor := iv.Start
	for cursor.Before(iv.End) {
		next := cursor.Add(length)
		if next.After(iv.End) {
			break
		}
		out = append(out, Interval{Start: cursor, End: next})
		cursor = next
	}
	return out
}
