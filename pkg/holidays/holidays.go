// Package holidays reads production-calendar files: a year and, per month,
// a comma separated list of non-working days. A "*" suffix marks a
// shortened working day, a "+" suffix a day off moved from a weekend.
package holidays

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const (
	NamePublicHoliday = "Public holiday"
	NameTransferred   = "Transferred day off"
)

type calendarJSON struct {
	Year   int         `json:"year"`
	Months []monthJSON `json:"months"`
}

type monthJSON struct {
	Month int    `json:"month"`
	Days  string `json:"days"`
}

// Day is a weekday that is not worked.
type Day struct {
	Date string
	Name string
}

// ParseFile reads the calendar at path.
func ParseFile(path string) ([]Day, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open calendar file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse returns the weekday non-working days in r ordered by date. Weekend
// days are skipped since the calendar engine already excludes them, and
// shortened days are skipped since they are still worked.
func Parse(r io.Reader) ([]Day, error) {
	var cal calendarJSON
	if err := json.NewDecoder(r).Decode(&cal); err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}
	if cal.Year < 1900 || cal.Year > 9999 {
		return nil, fmt.Errorf("calendar has invalid year %d", cal.Year)
	}

	days := []Day{}
	for _, month := range cal.Months {
		if month.Month < 1 || month.Month > 12 {
			return nil, fmt.Errorf("calendar has invalid month %d", month.Month)
		}

		for _, raw := range strings.Split(month.Days, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" || strings.HasSuffix(raw, "*") {
				continue
			}

			name := NamePublicHoliday
			if strings.HasSuffix(raw, "+") {
				raw = strings.TrimSuffix(raw, "+")
				name = NameTransferred
			}

			day, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to parse day %q in month %d: %w", raw, month.Month, err)
			}
			date := time.Date(cal.Year, time.Month(month.Month), day, 0, 0, 0, 0, time.UTC)
			if date.Day() != day {
				return nil, fmt.Errorf("day %d does not exist in month %d", day, month.Month)
			}
			if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}

			days = append(days, Day{Date: date.Format(dateLayout), Name: name})
		}
	}

	return days, nil
}
