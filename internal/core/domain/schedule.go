package domain

import (
	"fmt"
	"time"
)

// Schedule places lesson events on the calendar.
// Event n starts at Start plus n*IntervalDays calendar days in Location,
// so daylight saving changes keep the wall-clock start time.
type Schedule struct {
	Start        time.Time
	IntervalDays int
	Duration     time.Duration
	Location     *time.Location
}

// NewSchedule parses a start date (YYYY-MM-DD) and time (HH:MM) in the named
// timezone.
func NewSchedule(date, clock, timezone string, intervalDays int, duration time.Duration) (Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidInput, timezone, err)
	}
	if clock == "" {
		clock = "09:00"
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return Schedule{}, fmt.Errorf("%w: start %q %q: %v", ErrInvalidInput, date, clock, err)
	}
	if intervalDays <= 0 {
		return Schedule{}, fmt.Errorf("%w: interval days must be positive", ErrInvalidInput)
	}
	if duration <= 0 {
		duration = time.Hour
	}
	return Schedule{Start: start, IntervalDays: intervalDays, Duration: duration, Location: loc}, nil
}

// Slot returns the start and end of the event for a sequence index.
func (s Schedule) Slot(sequence int) (start, end time.Time) {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	base := s.Start.In(loc)
	start = base.AddDate(0, 0, sequence*s.IntervalDays)
	return start, start.Add(s.Duration)
}

// TimezoneName returns the IANA name of the schedule's location.
func (s Schedule) TimezoneName() string {
	if s.Location == nil {
		return "UTC"
	}
	return s.Location.String()
}
