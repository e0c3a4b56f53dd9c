package domain

import (
	"context"
	"time"

	"spacegrid/internal/models"
)

type SpaceRepository interface {
	ListSpaces(ctx context.Context) ([]models.Space, error)
	GetSpace(ctx context.Context, id string) (*models.Space, error)
	UpsertSpace(ctx context.Context, space *models.Space) error
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, offset, limit int) ([]models.Booking, int, error)
	BookingsInRange(ctx context.Context, spaceID string, from, to time.Time) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) error
	DeleteBooking(ctx context.Context, id string) error
}

type VersionSource interface {
	DataVersions(ctx context.Context) (models.DataVersions, error)
}

// Repository is everything the services need from storage.
type Repository interface {
	SpaceRepository
	BookingRepository
	VersionSource
}

// GridCache stores computed day grids. Get returns nil, nil on a miss.
type GridCache interface {
	Get(ctx context.Context, key string) (*models.DayGrid, error)
	Set(ctx context.Context, key string, grid *models.DayGrid) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
