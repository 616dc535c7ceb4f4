package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"leave-bot/internal/calendar"
	"leave-bot/internal/models"
)

// dateLayouts are the accepted user date formats, tried in order.
var dateLayouts = []string{"02.01.2006", "2006-01-02", "02.01.06"}

// parseDate accepts dd.mm.yyyy, yyyy-mm-dd, dd.mm.yy and dd.mm (current
// year) and returns YYYY-MM-DD.
func parseDate(value string, now time.Time) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return calendar.FormatDate(t), nil
		}
	}
	if t, err := time.Parse("02.01", value); err == nil {
		t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return calendar.FormatDate(t), nil
	}
	return "", fmt.Errorf("invalid date %q, use DD.MM.YYYY or YYYY-MM-DD", value)
}

func isDate(value string, now time.Time) bool {
	_, err := parseDate(value, now)
	return err == nil
}

// parseTimeRange parses "09:00-12:30".
func parseTimeRange(value string) (string, string, error) {
	from, to, ok := strings.Cut(value, "-")
	if !ok {
		return "", "", fmt.Errorf("invalid time range %q, use HH:MM-HH:MM", value)
	}
	for _, t := range []string{from, to} {
		if _, err := time.Parse(calendar.TimeLayout, t); err != nil {
			return "", "", fmt.Errorf("invalid time %q, use HH:MM", t)
		}
	}
	return from, to, nil
}

func parseID(value string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(value), "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return uint(id), nil
}

// parseHours reads "40", "40h" or "5d" (8 hours per day).
func parseHours(value string) (float64, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	multiplier := 1.0
	switch {
	case strings.HasSuffix(value, "d"):
		multiplier = calendar.HoursPerWorkday
		value = strings.TrimSuffix(value, "d")
	case strings.HasSuffix(value, "h"):
		value = strings.TrimSuffix(value, "h")
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid amount %q, use hours (40 or 40h) or days (5d)", value)
	}
	return calendar.Round2(n * multiplier), nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "yes", "y", "on", "true":
		return true, nil
	case "0", "no", "n", "off", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q, use yes or no", value)
}

var leaveTypeAliases = map[string]models.LeaveType{
	"annual":     models.LeaveAnnual,
	"vacation":   models.LeaveAnnual,
	"sick":       models.LeaveSick,
	"home":       models.LeaveHomeOffice,
	"homeoffice": models.LeaveHomeOffice,
	"unpaid":     models.LeaveUnpaid,
	"other":      models.LeaveOther,
}

func parseLeaveType(value string) (models.LeaveType, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if t, ok := leaveTypeAliases[key]; ok {
		return t, nil
	}
	t := models.LeaveType(strings.ToUpper(key))
	switch t {
	case models.LeaveAnnual, models.LeaveSick, models.LeaveHomeOffice, models.LeaveUnpaid, models.LeaveOther:
		return t, nil
	}
	return "", fmt.Errorf("unknown leave type %q, use annual, sick, home, unpaid or other", value)
}

func parseStatus(value string) (models.LeaveStatus, bool) {
	s := models.LeaveStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch s {
	case models.StatusDraft, models.StatusPending, models.StatusApproved, models.StatusRejected, models.StatusCancelled:
		return s, true
	}
	return "", false
}

// commandArgs splits a command line into positional words and key=value
// options. The "reason" and "name" options swallow the rest of the line.
type commandArgs struct {
	positional []string
	options    map[string]string
}

func splitArgs(line string) commandArgs {
	args := commandArgs{options: map[string]string{}}
	fields := strings.Fields(line)
	for i, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			args.positional = append(args.positional, field)
			continue
		}
		key = strings.ToLower(key)
		if key == "reason" || key == "name" || key == "comment" {
			rest := append([]string{value}, fields[i+1:]...)
			args.options[key] = strings.TrimSpace(strings.Join(rest, " "))
			break
		}
		args.options[key] = value
	}
	return args
}

func (a commandArgs) option(key string) (string, bool) {
	v, ok := a.options[key]
	return v, ok
}

// leaveArgs is the parsed form of "/leave <type> <start> [end] [options] [reason...]".
type leaveArgs struct {
	Type         models.LeaveType
	StartDate    string
	EndDate      string
	StartTime    *string
	EndTime      *string
	HalfDayStart bool
	HalfDayEnd   bool
	Reason       *string
	URL          *string
	ForUserID    uint
}

func parseLeaveArgs(line string, now time.Time) (*leaveArgs, error) {
	args := splitArgs(line)
	if len(args.positional) < 2 {
		return nil, fmt.Errorf("usage: /leave <type> <start> [end] [half=start|end|both] [time=HH:MM-HH:MM] [for=<user id>] [url=<link>] [reason...]")
	}

	leaveType, err := parseLeaveType(args.positional[0])
	if err != nil {
		return nil, err
	}
	start, err := parseDate(args.positional[1], now)
	if err != nil {
		return nil, err
	}

	out := &leaveArgs{Type: leaveType, StartDate: start, EndDate: start}
	rest := args.positional[2:]
	if len(rest) > 0 && isDate(rest[0], now) {
		if out.EndDate, err = parseDate(rest[0], now); err != nil {
			return nil, err
		}
		rest = rest[1:]
	}

	if v, ok := args.option("reason"); ok && v != "" {
		out.Reason = &v
	} else if len(rest) > 0 {
		reason := strings.Join(rest, " ")
		out.Reason = &reason
	}
	if v, ok := args.option("half"); ok {
		if out.HalfDayStart, out.HalfDayEnd, err = parseHalf(v); err != nil {
			return nil, err
		}
	}
	if v, ok := args.option("time"); ok {
		from, to, err := parseTimeRange(v)
		if err != nil {
			return nil, err
		}
		out.StartTime, out.EndTime = &from, &to
	}
	if v, ok := args.option("url"); ok {
		out.URL = &v
	}
	if v, ok := args.option("for"); ok {
		if out.ForUserID, err = parseID(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseHalf(value string) (start, end bool, err error) {
	switch strings.ToLower(value) {
	case "start":
		return true, false, nil
	case "end":
		return false, true, nil
	case "both":
		return true, true, nil
	case "none", "no":
		return false, false, nil
	}
	return false, false, fmt.Errorf("invalid half %q, use start, end, both or none", value)
}

// parsePeriod reads "[month [year]]" or "<from> <to>" and defaults to the
// current month.
func parsePeriod(positional []string, now time.Time) (string, string, error) {
	if len(positional) == 2 && isDate(positional[0], now) {
		from, _ := parseDate(positional[0], now)
		to, err := parseDate(positional[1], now)
		return from, to, err
	}

	year, month := now.Year(), int(now.Month())
	if len(positional) > 0 {
		m, err := strconv.Atoi(positional[0])
		if err != nil || m < 1 || m > 12 {
			return "", "", fmt.Errorf("invalid month %q", positional[0])
		}
		month = m
	}
	if len(positional) > 1 {
		y, err := strconv.Atoi(positional[1])
		if err != nil {
			return "", "", fmt.Errorf("invalid year %q", positional[1])
		}
		year = y
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return calendar.FormatDate(first), calendar.FormatDate(last), nil
}

func parseYear(value string, now time.Time) (int, error) {
	if value == "" {
		return now.Year(), nil
	}
	year, err := strconv.Atoi(value)
	if err != nil || year < 1900 || year > 9999 {
		return 0, fmt.Errorf("invalid year %q", value)
	}
	return year, nil
}
