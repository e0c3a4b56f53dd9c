package models

import "time"

// Booking is a single materialized reservation of a space.
// Start and End are absolute instants; Start must be before End.
type Booking struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"space_id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"` // confirmed, pending, cancelled
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Occupies reports whether the booking can mark slots as busy.
func (b *Booking) Occupies() bool {
	return b.Status != StatusCancelled
}

// Page is one page of a paginated listing. Page numbers are 1-based.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPage computes TotalPages from total and pageSize. TotalPages is never below 1.
func NewPage[T any](items []T, page, pageSize, total int) Page[T] {
	totalPages := 1
	if pageSize > 0 && total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
