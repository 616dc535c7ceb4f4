package holidays

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "year": 2025,
  "months": [
    {"month": 1, "days": "1,2,3,4,5,6,7,8,11,12,18,19,25,26"},
    {"month": 3, "days": "1,2,7*,8,9,15,16,22,23,29,30"},
    {"month": 5, "days": "1,2,3,4,8,9,10,11,17,18,24,25,31"},
    {"month": 11, "days": "1*,2,3+,4,8,9"}
  ],
  "transitions": [{"from": "11.01", "to": "11.03"}]
}`

func TestParse(t *testing.T) {
	days, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	var dates []string
	for _, d := range days {
		dates = append(dates, d.Date)
	}

	assert.Equal(t, []string{
		"2025-01-01", "2025-01-02", "2025-01-03", "2025-01-06", "2025-01-07", "2025-01-08",
		"2025-05-01", "2025-05-02", "2025-05-08", "2025-05-09",
		"2025-11-03", "2025-11-04",
	}, dates)

	last := days[len(days)-2]
	assert.Equal(t, "2025-11-03", last.Date)
	assert.Equal(t, NameTransferred, last.Name)
	assert.Equal(t, NamePublicHoliday, days[0].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `nope`},
		{"bad year", `{"year": 0, "months": []}`},
		{"bad month", `{"year": 2025, "months": [{"month": 13, "days": "1"}]}`},
		{"bad day", `{"year": 2025, "months": [{"month": 1, "days": "x"}]}`},
		{"day out of range", `{"year": 2025, "months": [{"month": 2, "days": "30"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	days, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, days, 12)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
