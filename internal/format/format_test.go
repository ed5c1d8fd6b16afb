package format

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dm/gridmon/internal/model"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name  string
		input int64
		want  string
	}{
		{"zero", 0, "0"},
		{"small", 42, "42"},
		{"three_digits", 999, "999"},
		{"four_digits", 1000, "1,000"},
		{"six_digits", 123456, "123,456"},
		{"seven_digits", 1234567, "1,234,567"},
		{"nine_digits", 12345678, "12,345,678"},
		{"negative", -12345, "-12,345"},
		{"min_int64", math.MinInt64, "-9,223,372,036,854,775,808"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatNumber(tc.input))
		})
	}
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "---", FormatCount(model.Unknown))
	assert.Equal(t, "0", FormatCount(model.Count(0)))
	assert.Equal(t, "1,500", FormatCount(model.Count(1500)))
}

func TestFormatDelta(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"zero", 0, "0/s"},
		{"growth", 1204.3, "+1,204.3/s"},
		{"shrink", -3, "-3.0/s"},
		{"large_shrink", -1000000, "-1,000,000.0/s"},
		{"fraction", 0.5, "+0.5/s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDelta(tc.input))
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		name  string
		input time.Duration
		want  string
	}{
		{"zero", 0, "---"},
		{"millis", 500 * time.Millisecond, "500ms"},
		{"seconds", 2 * time.Second, "2s"},
		{"fractional", 1500 * time.Millisecond, "1.5s"},
		{"minutes", 2 * time.Minute, "2m"},
		{"ninety_seconds", 90 * time.Second, "90s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatInterval(tc.input))
		})
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "never", FormatAge(time.Time{}, now))
	assert.Equal(t, "now", FormatAge(now.Add(-200*time.Millisecond), now))
	assert.Equal(t, "12s ago", FormatAge(now.Add(-12*time.Second), now))
	assert.Equal(t, "3m ago", FormatAge(now.Add(-3*time.Minute), now))
	assert.Equal(t, "2h ago", FormatAge(now.Add(-2*time.Hour), now))
}
