package handler

import (
	"testing"
	"time"

	"leave-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var parseNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "07.07.2025", want: "2025-07-07"},
		{in: "2025-07-07", want: "2025-07-07"},
		{in: "07.07.25", want: "2025-07-07"},
		{in: "07.07", want: "2025-07-07"},
		{in: " 01.12 ", want: "2025-12-01"},
		{in: "31.02.2025", wantErr: true},
		{in: "tomorrow", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in, parseNow)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHours(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "40", want: 40},
		{in: "40h", want: 40},
		{in: "5d", want: 40},
		{in: "2.5d", want: 20},
		{in: "1,5", want: 1.5},
		{in: "-1", wantErr: true},
		{in: "five", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHours(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestSplitArgs(t *testing.T) {
	args := splitArgs("12 half=start reason=family trip to the sea")
	assert.Equal(t, []string{"12"}, args.positional)
	assert.Equal(t, "start", args.options["half"])
	assert.Equal(t, "family trip to the sea", args.options["reason"])

	args = splitArgs("  ")
	assert.Empty(t, args.positional)
	assert.Empty(t, args.options)
}

func TestParseLeaveArgs(t *testing.T) {
	args, err := parseLeaveArgs("annual 07.07.2025 18.07.2025 half=end summer trip", parseNow)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveAnnual, args.Type)
	assert.Equal(t, "2025-07-07", args.StartDate)
	assert.Equal(t, "2025-07-18", args.EndDate)
	assert.False(t, args.HalfDayStart)
	assert.True(t, args.HalfDayEnd)
	require.NotNil(t, args.Reason)
	assert.Equal(t, "summer trip", *args.Reason)

	args, err = parseLeaveArgs("sick 10.03 time=09:00-12:30 for=7", parseNow)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveSick, args.Type)
	assert.Equal(t, "2025-03-10", args.StartDate)
	assert.Equal(t, "2025-03-10", args.EndDate)
	require.NotNil(t, args.StartTime)
	assert.Equal(t, "09:00", *args.StartTime)
	assert.Equal(t, "12:30", *args.EndTime)
	assert.Equal(t, uint(7), args.ForUserID)
	assert.Nil(t, args.Reason)

	args, err = parseLeaveArgs("HOME_OFFICE 2025-03-12", parseNow)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveHomeOffice, args.Type)

	for _, line := range []string{
		"",
		"annual",
		"holiday 10.03.2025",
		"annual 10.03.2025 half=middle",
		"annual 10.03.2025 time=9-12",
		"annual 10.03.2025 for=abc",
	} {
		_, err := parseLeaveArgs(line, parseNow)
		assert.Error(t, err, line)
	}
}

func TestParsePeriod(t *testing.T) {
	from, to, err := parsePeriod(nil, parseNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", from)
	assert.Equal(t, "2025-03-31", to)

	from, to, err = parsePeriod([]string{"2", "2024"}, parseNow)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", from)
	assert.Equal(t, "2024-02-29", to)

	from, to, err = parsePeriod([]string{"10.03", "21.03"}, parseNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", from)
	assert.Equal(t, "2025-03-21", to)

	_, _, err = parsePeriod([]string{"13"}, parseNow)
	assert.Error(t, err)
}
