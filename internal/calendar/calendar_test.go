package calendar

import (
	"errors"
	"testing"

	"leave-bot/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingHours(t *testing.T) {
	tests := []struct {
		name     string
		span     Span
		holidays HolidaySet
		want     float64
	}{
		{
			name: "weekend only",
			span: Span{StartDate: "2024-06-01", EndDate: "2024-06-02"},
			want: 0,
		},
		{
			name: "full week",
			span: Span{StartDate: "2024-06-03", EndDate: "2024-06-09"},
			want: 40,
		},
		{
			name:     "holiday excluded",
			span:     Span{StartDate: "2024-06-03", EndDate: "2024-06-07"},
			holidays: NewHolidaySet("2024-06-05"),
			want:     32,
		},
		{
			name: "half day start and end",
			span: Span{StartDate: "2024-06-03", EndDate: "2024-06-04", HalfDayStart: true, HalfDayEnd: true},
			want: 8,
		},
		{
			name: "half days never go negative",
			span: Span{StartDate: "2024-06-03", EndDate: "2024-06-03", HalfDayStart: true, HalfDayEnd: true},
			want: 0,
		},
		{
			name: "half day on weekend range",
			span: Span{StartDate: "2024-06-01", EndDate: "2024-06-02", HalfDayStart: true},
			want: 0,
		},
		{
			name: "partial day on monday",
			span: Span{StartDate: "2024-06-03", EndDate: "2024-06-03", StartTime: "08:00", EndTime: "16:00"},
			want: 8,
		},
		{
			name: "partial day rounds to two decimals",
			span: Span{StartDate: "2024-06-03", EndDate: "2024-06-03", StartTime: "09:00", EndTime: "09:20"},
			want: 0.33,
		},
		{
			name: "partial day on saturday",
			span: Span{StartDate: "2024-06-01", EndDate: "2024-06-01", StartTime: "08:00", EndTime: "16:00"},
			want: 0,
		},
		{
			name:     "partial day on holiday",
			span:     Span{StartDate: "2024-06-03", EndDate: "2024-06-03", StartTime: "08:00", EndTime: "16:00"},
			holidays: NewHolidaySet("2024-06-03"),
			want:     0,
		},
		{
			name: "partial day reversed times",
			span: Span{StartDate: "2024-06-03", EndDate: "2024-06-03", StartTime: "16:00", EndTime: "08:00"},
			want: 0,
		},
		{
			name: "times ignored on multi-day range",
			span: Span{StartDate: "2024-06-03", EndDate: "2024-06-04", StartTime: "08:00", EndTime: "10:00"},
			want: 16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WorkingHours(tt.span, tt.holidays)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkingHoursHalfDayMonotonic(t *testing.T) {
	ranges := [][2]string{
		{"2024-06-03", "2024-06-03"},
		{"2024-06-03", "2024-06-04"},
		{"2024-06-07", "2024-06-10"},
		{"2024-06-01", "2024-06-02"},
		{"2024-06-03", "2024-06-14"},
	}
	for _, r := range ranges {
		none, err := WorkingHours(Span{StartDate: r[0], EndDate: r[1]}, nil)
		require.NoError(t, err)
		one, err := WorkingHours(Span{StartDate: r[0], EndDate: r[1], HalfDayStart: true}, nil)
		require.NoError(t, err)
		other, err := WorkingHours(Span{StartDate: r[0], EndDate: r[1], HalfDayEnd: true}, nil)
		require.NoError(t, err)
		both, err := WorkingHours(Span{StartDate: r[0], EndDate: r[1], HalfDayStart: true, HalfDayEnd: true}, nil)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, none, one, r)
		assert.GreaterOrEqual(t, none, other, r)
		assert.GreaterOrEqual(t, one, both, r)
		assert.GreaterOrEqual(t, other, both, r)
		assert.GreaterOrEqual(t, both, 0.0, r)
	}
}

func TestWorkingHoursInvalidInput(t *testing.T) {
	_, err := WorkingHours(Span{StartDate: "2024-13-01", EndDate: "2024-06-01"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = WorkingHours(Span{StartDate: "2024-06-03", EndDate: "2024-06-03", StartTime: "25:00", EndTime: "16:00"}, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestIsWeekendAndHoliday(t *testing.T) {
	sat, _ := ParseDate("2024-06-01")
	mon, _ := ParseDate("2024-06-03")
	assert.True(t, IsWeekend(sat))
	assert.False(t, IsWeekend(mon))

	set := NewHolidaySet("2024-06-03")
	assert.True(t, IsHoliday(mon, set))
	assert.False(t, IsHoliday(sat, set))
}

func TestDatesOverlap(t *testing.T) {
	assert.True(t, DatesOverlap("2024-06-03", "2024-06-05", "2024-06-05", "2024-06-07"))
	assert.True(t, DatesOverlap("2024-06-03", "2024-06-10", "2024-06-05", "2024-06-06"))
	assert.False(t, DatesOverlap("2024-06-03", "2024-06-04", "2024-06-05", "2024-06-07"))
	assert.False(t, DatesOverlap("2024-06-08", "2024-06-09", "2024-06-05", "2024-06-07"))
}
