package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dm/gridmon/internal/model"
)

// Placeholder is shown for values that could not be read.
const Placeholder = "---"

// FormatNumber formats an integer with locale-style comma separators.
// Example: 12345678 → "12,345,678".
// Uses strconv.FormatInt directly to avoid abs64 overflow for math.MinInt64.
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		// s starts with "-"; strip it, insert commas, restore sign.
		return "-" + insertCommas(s[1:])
	}
	return insertCommas(s)
}

// FormatCount formats an entry count, or Placeholder when it is unknown.
// A known zero renders as "0".
func FormatCount(c model.EntryCount) string {
	if !c.Known {
		return Placeholder
	}
	return FormatNumber(c.Value)
}

// FormatDelta formats a signed entries-per-second change with comma-separated
// thousands and one decimal place: "+1,204.3/s", "-3.0/s", "0/s".
func FormatDelta(perSec float64) string {
	if perSec == 0 {
		return "0/s"
	}
	sign := "+"
	if perSec < 0 {
		sign = ""
	}
	return sign + formatCommaFloat(perSec) + "/s"
}

// FormatInterval formats a poll interval compactly: "500ms", "2s", "1.5s", "2m".
func FormatInterval(d time.Duration) string {
	switch {
	case d <= 0:
		return Placeholder
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
	}
}

// FormatAge describes how long ago t was relative to now, at second
// resolution: "now", "12s ago", "3m ago".
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// formatCommaFloat formats a float with comma-separated thousands and one decimal place.
func formatCommaFloat(f float64) string {
	formatted := fmt.Sprintf("%.1f", f)
	// Strip leading minus before inserting commas, then restore it
	sign := ""
	if len(formatted) > 0 && formatted[0] == '-' {
		sign = "-"
		formatted = formatted[1:]
	}
	parts := strings.SplitN(formatted, ".", 2)
	intPart := insertCommas(parts[0])
	if len(parts) == 2 {
		return sign + intPart + "." + parts[1]
	}
	return sign + intPart
}

// insertCommas inserts comma separators into a digit string every 3 digits from the right.
func insertCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var buf strings.Builder
	lead := n % 3
	if lead > 0 {
		buf.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(s[i : i+3])
	}
	return buf.String()
}
