package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type SlotState string

const (
	SlotAvailable      SlotState = "available"
	SlotBusy           SlotState = "busy"
	SlotBlackout       SlotState = "blackout"
	SlotDisabledByRule SlotState = "disabledByRule" // reserved for rule-based restrictions
	SlotPast           SlotState = "past"
	SlotSelected       SlotState = "selected" // applied by callers, never by the engine
)

// Bookable reports whether a slot in this state can be picked by a user.
func (s SlotState) Bookable() bool {
	return s == SlotAvailable || s == SlotSelected
}

// CapacityInfo is carried on slots but not filled by the engine.
type CapacityInfo struct {
	Used  int `json:"used"`
	Total int `json:"total"`
}

// Slot is a derived half-open interval [Start, End) in its space's zone.
type Slot struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	SpaceID  string        `json:"space_id"`
	State    SlotState     `json:"state"`
	Reason   string        `json:"reason,omitempty"`
	Capacity *CapacityInfo `json:"capacity,omitempty"`
}

// SlotMinutes is the slot granularity. Only 15, 30 and 60 are valid.
type SlotMinutes int

var ErrInvalidSlotMinutes = errors.New("slot minutes must be one of 15, 30, 60")

func (m SlotMinutes) Valid() bool {
	return m == 15 || m == 30 || m == 60
}

func (m SlotMinutes) Duration() time.Duration {
	return time.Duration(m) * time.Minute
}

// ParseSlotMinutes parses a granularity; an empty string yields the default.
func ParseSlotMinutes(raw string) (SlotMinutes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSlotMinutes, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlotMinutes, raw)
	}
	m := SlotMinutes(n)
	if !m.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSlotMinutes, n)
	}
	return m, nil
}

// GridCell is one space column of a grid row; Slot is nil for an empty cell.
type GridCell struct {
	SpaceID string `json:"space_id"`
	Slot    *Slot  `json:"slot,omitempty"`
}

// GridRow is one tick of the shared time axis.
type GridRow struct {
	Tick  time.Time  `json:"tick"`
	Label string     `json:"label"`
	Cells []GridCell `json:"cells"`
}

// DayGrid is the side-by-side schedule of all spaces for one date.
type DayGrid struct {
	Date        string        `json:"date"`
	SlotMinutes SlotMinutes   `json:"slot_minutes"`
	Zone        string        `json:"zone"`
	Spaces      []SpaceHeader `json:"spaces"`
	Rows        []GridRow     `json:"rows"`
	GeneratedAt time.Time     `json:"generated_at"`
}

type SpaceHeader struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TimeZone string `json:"tz"`
	Capacity int    `json:"capacity"`
}
