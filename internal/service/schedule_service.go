package service

import (
	"context"
	"fmt"
	"time"

	"spacegrid/internal/domain"
	"spacegrid/internal/metrics"
	"spacegrid/internal/models"
	"spacegrid/internal/slots"
	"spacegrid/internal/ticks"
	"spacegrid/internal/timeutil"

	"github.com/rs/zerolog"
)

// ScheduleOptions carry the engine settings from config.
type ScheduleOptions struct {
	Policy slots.Policy
	Ticks  ticks.Options
}

// ScheduleService runs the slot engine over stored spaces and bookings.
type ScheduleService struct {
	repo   domain.Repository
	cache  domain.GridCache
	opts   ScheduleOptions
	logger *zerolog.Logger
	clock  func() time.Time
}

// NewScheduleService builds the service; cache may be nil.
func NewScheduleService(repo domain.Repository, cache domain.GridCache, opts ScheduleOptions, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		repo:   repo,
		cache:  cache,
		opts:   opts,
		logger: orNop(logger),
		clock:  time.Now,
	}
}

func (s *ScheduleService) resolveNow(now time.Time) time.Time {
	if now.IsZero() {
		return s.clock()
	}
	return now
}

// DaySlots classifies the slots of one space. A zero now means the current instant.
func (s *ScheduleService) DaySlots(ctx context.Context, spaceID string, date timeutil.Date, minutes models.SlotMinutes, now time.Time) ([]models.Slot, error) {
	if !minutes.Valid() {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidSlotMinutes, minutes)
	}
	space, err := s.repo.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, space, date, minutes, s.resolveNow(now))
}

func (s *ScheduleService) generate(ctx context.Context, space *models.Space, date timeutil.Date, minutes models.SlotMinutes, now time.Time) ([]models.Slot, error) {
	loc, err := timeutil.LoadZone(space.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("space %s: %w", space.ID, err)
	}
	dayStart, dayEnd := timeutil.DayBounds(date, loc)
	bookings, err := s.repo.BookingsInRange(ctx, space.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load bookings of %s: %w", space.ID, err)
	}

	out, err := slots.GenerateAt(space, date, minutes, bookings, now, s.opts.Policy)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.SlotState]int)
	for _, sl := range out {
		counts[sl.State]++
	}
	for state, n := range counts {
		metrics.AddSlots(string(state), n)
	}
	return out, nil
}

// Ticks returns the shared time axis of all spaces for the date.
func (s *ScheduleService) Ticks(ctx context.Context, date timeutil.Date, minutes models.SlotMinutes) (ticks.Catalog, error) {
	spaces, err := s.repo.ListSpaces(ctx)
	if err != nil {
		return ticks.Catalog{}, err
	}
	return ticks.BuildTicks(date, spaces, minutes, s.opts.Ticks)
}

// Phases of a date relative to now, as seen from every space zone.
const (
	phaseFuture = "future"
	phasePast   = "past"
)

// DayPhase is the now-dependent part of a grid key. Before the date begins in
// any of zones nothing is past yet, and once it has ended in all of them
// everything is, so the grid only changes with now in between. There the phase
// is the minute of now: slot starts fall on whole minutes.
func DayPhase(date timeutil.Date, zones []*time.Location, now time.Time) string {
	if len(zones) == 0 {
		return fmt.Sprintf("m%d", now.Unix()/60)
	}
	var first, last time.Time
	for i, loc := range zones {
		start, end := timeutil.DayBounds(date, loc)
		if i == 0 || start.Before(first) {
			first = start
		}
		if i == 0 || end.After(last) {
			last = end
		}
	}
	switch {
	case now.Before(first):
		return phaseFuture
	case !now.Before(last):
		return phasePast
	default:
		return fmt.Sprintf("m%d", now.Unix()/60)
	}
}

// GridKey identifies a computed grid; phase comes from DayPhase.
func GridKey(date timeutil.Date, minutes models.SlotMinutes, v models.DataVersions, phase string, p slots.Policy) string {
	return fmt.Sprintf("%s:%d:s%d:b%d:%s:o%t",
		date, minutes, v.Spaces, v.Bookings, phase, p.BookingOverridesBlackout)
}

// spaceZones resolves the zones of spaces. Unknown zones are skipped here and
// fail later when the grid is built.
func spaceZones(spaces []models.Space) []*time.Location {
	out := make([]*time.Location, 0, len(spaces))
	for i := range spaces {
		if loc, err := timeutil.LoadZone(spaces[i].TimeZone); err == nil {
			out = append(out, loc)
		}
	}
	return out
}

// DayGrid lays every space out against the shared tick axis. Cells are joined by
// absolute instant: a slot lands on the tick equal to its start.
func (s *ScheduleService) DayGrid(ctx context.Context, date timeutil.Date, minutes models.SlotMinutes, now time.Time) (*models.DayGrid, error) {
	if !minutes.Valid() {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidSlotMinutes, minutes)
	}
	now = s.resolveNow(now)

	var (
		key      string
		versions models.DataVersions
		err      error
	)
	if s.cache != nil {
		versions, err = s.repo.DataVersions(ctx)
		if err != nil {
			return nil, fmt.Errorf("read data versions: %w", err)
		}
	}
	spaces, err := s.repo.ListSpaces(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		key = GridKey(date, minutes, versions, DayPhase(date, spaceZones(spaces), now), s.opts.Policy)

		grid, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.CacheError()
			s.logger.Warn().Err(err).Str("key", key).Msg("grid cache read failed")
		case grid != nil:
			metrics.CacheHit()
			return grid, nil
		default:
			metrics.CacheMiss()
		}
	}

	grid, err := s.buildGrid(ctx, spaces, date, minutes, now)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, grid); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("grid cache write failed")
		}
	}
	return grid, nil
}

func (s *ScheduleService) buildGrid(ctx context.Context, spaces []models.Space, date timeutil.Date, minutes models.SlotMinutes, now time.Time) (*models.DayGrid, error) {
	catalog, err := ticks.BuildTicks(date, spaces, minutes, s.opts.Ticks)
	if err != nil {
		return nil, err
	}

	// start instant -> slot, per space
	byStart := make([]map[int64]*models.Slot, len(spaces))
	headers := make([]models.SpaceHeader, len(spaces))
	for i := range spaces {
		sp := &spaces[i]
		headers[i] = models.SpaceHeader{ID: sp.ID, Name: sp.Name, TimeZone: sp.TimeZone, Capacity: sp.Capacity}

		out, err := s.generate(ctx, sp, date, minutes, now)
		if err != nil {
			return nil, err
		}
		idx := make(map[int64]*models.Slot, len(out))
		for j := range out {
			key := out[j].Start.UnixNano()
			if _, dup := idx[key]; !dup {
				idx[key] = &out[j]
			}
		}
		byStart[i] = idx
	}

	labels := catalog.Labels()
	rows := make([]models.GridRow, len(catalog.Ticks))
	for r, tick := range catalog.Ticks {
		cells := make([]models.GridCell, len(spaces))
		for i := range spaces {
			cells[i] = models.GridCell{SpaceID: spaces[i].ID, Slot: byStart[i][tick.UnixNano()]}
		}
		rows[r] = models.GridRow{Tick: tick, Label: labels[r], Cells: cells}
	}

	s.logger.Debug().
		Str("date", date.String()).
		Int("slot_minutes", int(minutes)).
		Int("spaces", len(spaces)).
		Int("rows", len(rows)).
		Msg("day grid built")

	return &models.DayGrid{
		Date:        date.String(),
		SlotMinutes: minutes,
		Zone:        catalog.ZoneName,
		Spaces:      headers,
		Rows:        rows,
		GeneratedAt: s.clock().UTC(),
	}, nil
}
