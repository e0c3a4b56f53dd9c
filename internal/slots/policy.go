package slots

import (
	"time"

	"spacegrid/internal/models"
	"spacegrid/internal/timeutil"
)

// Policy tunes overlay precedence.
type Policy struct {
	// BookingOverridesBlackout lets a booking turn a blackout slot into busy.
	// Off by default: a blackout day stays fully blacked out.
	BookingOverridesBlackout bool
}

func DefaultPolicy() Policy {
	return Policy{}
}

// Overlay rewrites a slot to State when Applies holds and the slot's current state
// is listed in From.
type Overlay struct {
	Name    string
	State   models.SlotState
	Reason  string
	From    map[models.SlotState]bool
	Applies func(s *models.Slot) bool
}

// Apply reports whether the slot was rewritten.
func (o Overlay) Apply(s *models.Slot) bool {
	if !o.From[s.State] || !o.Applies(s) {
		return false
	}
	s.State = o.State
	s.Reason = o.Reason
	return true
}

// dayFacts is what the overlays need to know about one space-day.
type dayFacts struct {
	blackout bool
	bookings []timeutil.Interval
	now      time.Time
}

// overlays returns the ordered rule table: blackout, booking, past.
func (p Policy) overlays(f dayFacts) []Overlay {
	bookingFrom := map[models.SlotState]bool{models.SlotAvailable: true}
	if p.BookingOverridesBlackout {
		bookingFrom[models.SlotBlackout] = true
	}

	return []Overlay{
		{
			Name:    "blackout",
			State:   models.SlotBlackout,
			Reason:  models.BlackoutReason,
			From:    map[models.SlotState]bool{models.SlotAvailable: true},
			Applies: func(*models.Slot) bool { return f.blackout },
		},
		{
			Name:  "booking",
			State: models.SlotBusy,
			From:  bookingFrom,
			Applies: func(s *models.Slot) bool {
				iv := timeutil.Interval{Start: s.Start, End: s.End}
				for _, b := range f.bookings {
					if b.Overlaps(iv) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:    "past",
			State:   models.SlotPast,
			From:    map[models.SlotState]bool{models.SlotAvailable: true},
			Applies: func(s *models.Slot) bool { return !s.Start.After(f.now) },
		},
	}
}

func classify(slot *models.Slot, rules []Overlay) {
	for _, r := range rules {
		r.Apply(slot)
	}
}
