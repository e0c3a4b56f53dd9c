package models

const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
)

const (
	// DateFormat календарная дата в запросах и в списке blackout-дат
	DateFormat = "2006-01-02"

	// ClockFormat время окна расписания
	ClockFormat = "15:04"

	// DefaultFallbackZone зона оси времени, когда список пространств пуст
	DefaultFallbackZone = "America/Panama"

	// DefaultRangeStart и DefaultRangeEnd диапазон оси, если ни у одного пространства нет окон
	DefaultRangeStart = "08:00"
	DefaultRangeEnd   = "19:00"

	// DefaultSlotMinutes размер слота по умолчанию
	DefaultSlotMinutes = 30

	// BlackoutReason причина для слотов нерабочего дня
	BlackoutReason = "non-operational day"

	// DefaultPageSize размер страницы списка бронирований
	DefaultPageSize = 10

	// MaxPageSize ограничение размера страницы
	MaxPageSize = 100

	// GridCacheTTL время жизни кэша сетки в секундах
	GridCacheTTL = 60

	// WarmerQueueSize размер очереди прогрева кэша
	WarmerQueueSize = 256
)

// ValidStatuses statuses accepted on booking creation.
var ValidStatuses = []string{StatusConfirmed, StatusPending, StatusCancelled}

// IsValidStatus reports whether s is a known booking status.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// DataVersions are change counters of the stored catalog and bookings.
// Any write bumps the matching counter.
type DataVersions struct {
	Spaces   int64 `json:"spaces"`
	Bookings int64 `json:"bookings"`
}
