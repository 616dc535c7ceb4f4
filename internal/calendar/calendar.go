// Package calendar does business-day and working-hour arithmetic against a
// holiday set. Dates are ISO strings (YYYY-MM-DD), times are HH:MM.
package calendar

import (
	"math"
	"time"

	"leave-bot/internal/apperr"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	HoursPerWorkday = 8.0
)

// HolidaySet holds active holiday dates as YYYY-MM-DD strings.
type HolidaySet map[string]struct{}

func NewHolidaySet(dates ...string) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

func (s HolidaySet) Contains(date string) bool {
	_, ok := s[date]
	return ok
}

// ParseDate parses a YYYY-MM-DD string as a UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q", value)
	}
	return t, nil
}

// FormatDate renders t's calendar date.
func FormatDate(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// Today returns now's local calendar date.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

func parseClock(value string) (int, error) {
	t, err := time.Parse(TimeLayout, value)
	if err != nil {
		return 0, apperr.Validation("invalid time %q", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func IsHoliday(date time.Time, holidays HolidaySet) bool {
	return holidays.Contains(FormatDate(date))
}

func isWorkingDay(date time.Time, holidays HolidaySet) bool {
	return !IsWeekend(date) && !IsHoliday(date, holidays)
}

// Span describes the date/time inputs of a leave duration.
type Span struct {
	StartDate    string
	EndDate      string
	HalfDayStart bool
	HalfDayEnd   bool
	StartTime    string
	EndTime      string
}

// IsPartialDay reports whether the same-day partial-time mode applies.
func (s Span) IsPartialDay() bool {
	return s.StartDate == s.EndDate && s.StartTime != "" && s.EndTime != ""
}

// WorkingHours computes the leave duration in hours. It is the only source
// of computed hours and must be called again whenever any input changes.
func WorkingHours(span Span, holidays HolidaySet) (float64, error) {
	start, err := ParseDate(span.StartDate)
	if err != nil {
		return 0, err
	}
	end, err := ParseDate(span.EndDate)
	if err != nil {
		return 0, err
	}

	if span.IsPartialDay() {
		from, err := parseClock(span.StartTime)
		if err != nil {
			return 0, err
		}
		to, err := parseClock(span.EndTime)
		if err != nil {
			return 0, err
		}
		if !isWorkingDay(start, holidays) {
			return 0, nil
		}
		minutes := math.Max(0, float64(to-from))
		return Round2(minutes / 60), nil
	}

	days := float64(WorkingDays(start, end, holidays))
	if span.HalfDayStart {
		days = math.Max(0, days-0.5)
	}
	if span.HalfDayEnd {
		days = math.Max(0, days-0.5)
	}
	return math.Max(0, days*HoursPerWorkday), nil
}

// WorkingDays counts days in [start, end] that are neither weekend nor holiday.
func WorkingDays(start, end time.Time, holidays HolidaySet) int {
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if isWorkingDay(d, holidays) {
			count++
		}
	}
	return count
}

// DatesOverlap is a closed-interval overlap test on YYYY-MM-DD strings.
func DatesOverlap(start1, end1, start2, end2 string) bool {
	return start1 <= end2 && start2 <= end1
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
