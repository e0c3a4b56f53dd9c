package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"spacegrid/internal/models"
)

var (
	ErrUnknownZone  = errors.New("unknown time zone")
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidClock = errors.New("invalid clock, expected HH:mm")
)

// Date is a calendar date without a zone. Which instants it covers depends on the
// zone it is resolved in.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(models.DateFormat, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the calendar date of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays shifts the calendar date, normalizing month and year overflow.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

var zones sync.Map // map[string]*time.Location

// LoadZone resolves an IANA zone name. Results are memoized.
func LoadZone(name string) (*time.Location, error) {
	if v, ok := zones.Load(name); ok {
		return v.(*time.Location), nil
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownZone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	zones.Store(name, loc)
	return loc, nil
}

// DayBounds returns the zone-local day as a half-open interval from midnight to the
// next midnight. DST days are 23 or 25 hours long.
func DayBounds(d Date, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
	end := time.Date(d.Year, d.Month, d.Day+1, 0, 0, 0, 0, loc)
	return start, end
}

// WeekdayInZone returns the ISO weekday (1 = Monday ... 7 = Sunday) of the date
// constructed directly in loc.
func WeekdayInZone(d Date, loc *time.Location) int {
	wd := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, loc).Weekday()
	if wd == time.Sunday {
		return models.Sunday
	}
	return int(wd)
}

// ParseBlackout converts a blackout entry to a calendar date local to loc.
// Accepted: YYYY-MM-DD (already local), local date-time without offset, RFC 3339.
func ParseBlackout(raw string, loc *time.Location) (Date, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(models.DateFormat, raw, loc); err == nil {
		return DateOf(t, loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, loc); err == nil {
		return DateOf(t, loc), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return DateOf(t, loc), nil
	}
	return Date{}, fmt.Errorf("%w: blackout %q", ErrInvalidDate, raw)
}

// DatesTouched lists the calendar dates in loc that the half-open interval covers.
func DatesTouched(iv Interval, loc *time.Location) []Date {
	if !iv.End.After(iv.Start) {
		return nil
	}
	first := DateOf(iv.Start, loc)
	last := DateOf(iv.End.Add(-time.Nanosecond), loc)
	var out []Date
	for d := first; ; d = d.AddDays(1) {
		out = append(out, d)
		if d == last {
			break
		}
	}
	return out
}
