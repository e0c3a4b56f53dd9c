package worker

import (
	"context"
	"fmt"
	"time"

	"spacegrid/internal/config"
	"spacegrid/internal/events"
	"spacegrid/internal/metrics"
	"spacegrid/internal/models"
	"spacegrid/internal/timeutil"

	"github.com/rs/zerolog"
)

// GridBuilder computes (and caches) the grid of a date.
type GridBuilder interface {
	DayGrid(ctx context.Context, date timeutil.Date, minutes models.SlotMinutes, now time.Time) (*models.DayGrid, error)
}

// WarmTask asks for one date to be precomputed.
type WarmTask struct {
	Date    timeutil.Date
	Minutes models.SlotMinutes
}

// GridWarmer precomputes day grids after writes so the next read is a cache hit.
type GridWarmer struct {
	grids     GridBuilder
	backoff   backoff
	queue     chan WarmTask
	minutes   models.SlotMinutes
	daysAhead int
	logger    *zerolog.Logger
}

// NewGridWarmer builds a warmer with sane defaults.
func NewGridWarmer(grids GridBuilder, cfg config.WarmerConfig, minutes models.SlotMinutes, logger *zerolog.Logger) *GridWarmer {
	size := cfg.QueueSize
	if size <= 0 {
		size = models.WarmerQueueSize
	}
	if !minutes.Valid() {
		minutes = models.DefaultSlotMinutes
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &GridWarmer{
		grids:     grids,
		backoff:   newBackoff(cfg),
		queue:     make(chan WarmTask, size),
		minutes:   minutes,
		daysAhead: cfg.DaysAhead,
		logger:    logger,
	}
}

// Enqueue schedules a date without blocking. A full queue drops the task:
// the grid is then computed on the next read.
func (w *GridWarmer) Enqueue(date timeutil.Date) bool {
	select {
	case w.queue <- WarmTask{Date: date, Minutes: w.minutes}:
		return true
	default:
		metrics.WarmerJob("dropped")
		w.logger.Warn().Str("date", date.String()).Msg("warmer queue full, task dropped")
		return false
	}
}

// WarmAhead enqueues from and the configured number of following days.
func (w *GridWarmer) WarmAhead(from timeutil.Date) int {
	n := 0
	for i := 0; i <= w.daysAhead; i++ {
		if w.Enqueue(from.AddDays(i)) {
			n++
		}
	}
	return n
}

// Subscribe hooks the warmer to booking events.
func (w *GridWarmer) Subscribe(bus *events.EventBus) {
	bus.Subscribe(w.HandleEvent,
		events.EventBookingCreated,
		events.EventBookingCancelled,
		events.EventBookingDeleted,
	)
}

// HandleEvent enqueues every zone-local date a booking event touched.
func (w *GridWarmer) HandleEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	for _, raw := range payload.Dates {
		d, err := timeutil.ParseDate(raw)
		if err != nil {
			w.logger.Warn().Err(err).Str("event_id", event.ID).Msg("skip bad event date")
			continue
		}
		w.Enqueue(d)
	}
	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *GridWarmer) Start(ctx context.Context) {
	w.logger.Info().Msg("grid warmer started")
	defer w.logger.Info().Msg("grid warmer stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			w.processTask(ctx, task)
		}
	}
}

func (w *GridWarmer) processTask(ctx context.Context, task WarmTask) {
	for attempt := 1; ; attempt++ {
		_, err := w.grids.DayGrid(ctx, task.Date, task.Minutes, time.Time{})
		if err == nil {
			metrics.WarmerJob("ok")
			return
		}
		if w.backoff.exhausted(attempt) || ctx.Err() != nil {
			metrics.WarmerJob("failed")
			w.logger.Error().Err(err).
				Str("date", task.Date.String()).
				Int("attempts", attempt).
				Msg("grid warm failed")
			return
		}

		metrics.WarmerJob("retry")
		delay := w.backoff.delay(attempt)
		w.logger.Debug().Err(err).Str("date", task.Date.String()).Dur("delay", delay).Msg("grid warm retry")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			metrics.WarmerJob("failed")
			return
		case <-timer.C:
		}
	}
}
