package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Weekdays use the ISO convention: 1 = Monday ... 7 = Sunday.
const (
	Monday    = 1
	Tuesday   = 2
	Wednesday = 3
	Thursday  = 4
	Friday    = 5
	Saturday  = 6
	Sunday    = 7
)

// Window is a wall-clock interval local to the space's zone, "HH:mm".
type Window struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// DaySchedule lists the windows of one ISO weekday.
type DaySchedule struct {
	Weekday int      `yaml:"weekday" json:"weekday"`
	Windows []Window `yaml:"windows" json:"windows"`
}

type Space struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description,omitempty"`
	TimeZone    string        `yaml:"tz" json:"tz"`
	Capacity    int           `yaml:"capacity" json:"capacity"`
	Schedule    []DaySchedule `yaml:"schedule" json:"schedule"`
	Blackouts   []string      `yaml:"blackouts" json:"blackouts,omitempty"` // YYYY-MM-DD or RFC3339
	CreatedAt   time.Time     `yaml:"-" json:"created_at"`
	UpdatedAt   time.Time     `yaml:"-" json:"updated_at"`
}

// WindowsFor returns the windows configured for an ISO weekday, in declaration order.
// Several entries for the same weekday are concatenated.
func (s *Space) WindowsFor(weekday int) []Window {
	var out []Window
	for _, d := range s.Schedule {
		if d.Weekday == weekday {
			out = append(out, d.Windows...)
		}
	}
	return out
}

var ErrInvalidSpace = errors.New("invalid space")

// ValidateSpace checks the fields the engine depends on. Window contents are not
// validated here: malformed windows degrade to zero slots.
func ValidateSpace(s *Space) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidSpace)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: space %s has no name", ErrInvalidSpace, s.ID)
	}
	if s.TimeZone == "" {
		return fmt.Errorf("%w: space %s has no time zone", ErrInvalidSpace, s.ID)
	}
	// timeutil imports models, so this cannot go through timeutil.LoadZone; both
	// resolve names with time.LoadLocation and accept the same set of zones.
	if _, err := time.LoadLocation(s.TimeZone); err != nil {
		return fmt.Errorf("%w: space %s: unknown time zone %q", ErrInvalidSpace, s.ID, s.TimeZone)
	}
	if s.Capacity < 0 {
		return fmt.Errorf("%w: space %s has negative capacity", ErrInvalidSpace, s.ID)
	}
	for _, d := range s.Schedule {
		if d.Weekday < Monday || d.Weekday > Sunday {
			return fmt.Errorf("%w: space %s: weekday %d out of range 1..7", ErrInvalidSpace, s.ID, d.Weekday)
		}
	}
	return nil
}

// ValidateSpaces validates each space and rejects duplicate ids.
func ValidateSpaces(spaces []Space) error {
	seen := make(map[string]bool, len(spaces))
	for i := range spaces {
		if err := ValidateSpace(&spaces[i]); err != nil {
			return err
		}
		if seen[spaces[i].ID] {
			return fmt.Errorf("%w: duplicate space id %s", ErrInvalidSpace, spaces[i].ID)
		}
		seen[spaces[i].ID] = true
	}
	return nil
}
