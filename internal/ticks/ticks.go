// Package ticks builds the shared time axis used to lay out several spaces side by side.
package ticks

import (
	"fmt"
	"time"

	"spacegrid/internal/models"
	"spacegrid/internal/timeutil"
)

// Options configure the axis when nothing can be derived from the spaces.
type Options struct {
	FallbackZone string
	RangeStart   string
	RangeEnd     string
}

func DefaultOptions() Options {
	return Options{
		FallbackZone: models.DefaultFallbackZone,
		RangeStart:   models.DefaultRangeStart,
		RangeEnd:     models.DefaultRangeEnd,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FallbackZone == "" {
		o.FallbackZone = d.FallbackZone
	}
	if o.RangeStart == "" {
		o.RangeStart = d.RangeStart
	}
	if o.RangeEnd == "" {
		o.RangeEnd = d.RangeEnd
	}
	return o
}

// Range is the span covered by every window of every space on a date.
type Range struct {
	Zone     *time.Location
	Start    time.Time
	End      time.Time
	Fallback bool // no space had a usable window
}

// Catalog is the tick axis for one date. Ticks are in Zone.
type Catalog struct {
	Zone     *time.Location
	ZoneName string
	Ticks    []time.Time
}

// Labels formats ticks as HH:mm in the reference zone.
func (c Catalog) Labels() []string {
	out := make([]string, len(c.Ticks))
	for i, t := range c.Ticks {
		out[i] = t.In(c.Zone).Format(models.ClockFormat)
	}
	return out
}

// GlobalRange resolves each space's windows for date in that space's own zone and
// returns the earliest start and latest end as instants. The reference zone is the
// first space's zone.
func GlobalRange(date timeutil.Date, spaces []models.Space, opts Options) (Range, error) {
	opts = opts.withDefaults()

	zoneName := opts.FallbackZone
	if len(spaces) > 0 {
		zoneName = spaces[0].TimeZone
	}
	ref, err := timeutil.LoadZone(zoneName)
	if err != nil {
		return Range{}, fmt.Errorf("reference zone: %w", err)
	}

	r := Range{Zone: ref}
	found := false
	for i := range spaces {
		sp := &spaces[i]
		loc, err := timeutil.LoadZone(sp.TimeZone)
		if err != nil {
			return Range{}, fmt.Errorf("space %s: %w", sp.ID, err)
		}
		for _, w := range sp.WindowsFor(timeutil.WeekdayInZone(date, loc)) {
			iv, err := timeutil.ResolveWindow(date, loc, w)
			if err != nil {
				continue
			}
			if !found || iv.Start.Before(r.Start) {
				r.Start = iv.Start
			}
			if !found || iv.End.After(r.End) {
				r.End = iv.End
			}
			found = true
		}
	}

	if !found {
		iv, err := timeutil.ResolveWindow(date, ref, models.Window{Start: opts.RangeStart, End: opts.RangeEnd})
		if err != nil {
			return Range{}, fmt.Errorf("fallback range: %w", err)
		}
		r.Start, r.End, r.Fallback = iv.Start, iv.End, true
	}

	r.Start = r.Start.In(ref)
	r.End = r.End.In(ref)
	return r, nil
}

// BuildTicks steps from the range start to the range end inclusive.
func BuildTicks(date timeutil.Date, spaces []models.Space, minutes models.SlotMinutes, opts Options) (Catalog, error) {
	if !minutes.Valid() {
		return Catalog{}, fmt.Errorf("%w: %d", models.ErrInvalidSlotMinutes, minutes)
	}
	r, err := GlobalRange(date, spaces, opts)
	if err != nil {
		return Catalog{}, err
	}

	step := minutes.Duration()
	out := make([]time.Time, 0, int(r.End.Sub(r.Start)/step)+1)
	for cur := r.Start; !cur.After(r.End); cur = cur.Add(step) {
		out = append(out, cur.In(r.Zone))
	}
	return Catalog{Zone: r.Zone, ZoneName: r.Zone.String(), Ticks: out}, nil
}
