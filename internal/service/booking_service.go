package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spacegrid/internal/domain"
	"spacegrid/internal/events"
	"spacegrid/internal/models"
	"spacegrid/internal/timeutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type BookingRepository interface {
	domain.BookingRepository
	GetSpace(ctx context.Context, id string) (*models.Space, error)
}

type BookingService struct {
	repo     BookingRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	newID    func() string
}

func NewBookingService(repo BookingRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:     repo,
		eventBus: eventBus,
		logger:   orNop(logger),
		newID:    uuid.NewString,
	}
}

// CreateBookingRequest is the input of CreateBooking. Status defaults to confirmed.
type CreateBookingRequest struct {
	SpaceID   string    `json:"space_id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status,omitempty"`
}

func (r *CreateBookingRequest) validate() error {
	switch {
	case strings.TrimSpace(r.SpaceID) == "":
		return fmt.Errorf("%w: space_id is required", ErrInvalidBooking)
	case strings.TrimSpace(r.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidBooking)
	case strings.TrimSpace(r.CreatedBy) == "":
		return fmt.Errorf("%w: created_by is required", ErrInvalidBooking)
	case r.Start.IsZero() || r.End.IsZero():
		return fmt.Errorf("%w: start and end are required", ErrInvalidBooking)
	case !r.Start.Before(r.End):
		return fmt.Errorf("%w: start must be before end", ErrInvalidBooking)
	case r.Status != "" && !models.IsValidStatus(r.Status):
		return fmt.Errorf("%w: unknown status %q", ErrInvalidBooking, r.Status)
	}
	return nil
}

// ListBookings returns one page; page is 1-based, pageSize is clamped.
func (s *BookingService) ListBookings(ctx context.Context, page, pageSize int) (models.Page[models.Booking], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = models.DefaultPageSize
	}
	if pageSize > models.MaxPageSize {
		pageSize = models.MaxPageSize
	}

	items, total, err := s.repo.ListBookings(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return models.Page[models.Booking]{}, err
	}
	return models.NewPage(items, page, pageSize, total), nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	space, err := s.repo.GetSpace(ctx, req.SpaceID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.StatusConfirmed
	}
	booking := &models.Booking{
		ID:        s.newID(),
		SpaceID:   space.ID,
		Title:     strings.TrimSpace(req.Title),
		CreatedBy: strings.TrimSpace(req.CreatedBy),
		Start:     req.Start.UTC(),
		End:       req.End.UTC(),
		Status:    status,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("space_id", booking.SpaceID).
		Time("start", booking.Start).
		Msg("booking created")
	s.publishEvent(events.EventBookingCreated, booking, space, booking.CreatedBy)
	return booking, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, id, changedBy string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.StatusCancelled {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCancelled, id)
	}
	if err := s.repo.UpdateBookingStatus(ctx, id, models.StatusCancelled); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCancelled

	s.publishEvent(events.EventBookingCancelled, booking, s.spaceOf(ctx, booking), changedBy)
	return booking, nil
}

func (s *BookingService) DeleteBooking(ctx context.Context, id, changedBy string) error {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return err
	}

	s.publishEvent(events.EventBookingDeleted, booking, s.spaceOf(ctx, booking), changedBy)
	return nil
}

// spaceOf is best effort: events still go out when the space has vanished.
func (s *BookingService) spaceOf(ctx context.Context, b *models.Booking) *models.Space {
	space, err := s.repo.GetSpace(ctx, b.SpaceID)
	if err != nil {
		s.logger.Warn().Err(err).Str("space_id", b.SpaceID).Msg("space lookup for event failed")
		return nil
	}
	return space
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, space *models.Space, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID: booking.ID,
		SpaceID:   booking.SpaceID,
		Status:    booking.Status,
		Start:     booking.Start,
		End:       booking.End,
		ChangedBy: changedBy,
	}
	if space != nil {
		if loc, err := timeutil.LoadZone(space.TimeZone); err == nil {
			for _, d := range timeutil.DatesTouched(timeutil.Interval{Start: booking.Start, End: booking.End}, loc) {
				payload.Dates = append(payload.Dates, d.String())
			}
		}
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
